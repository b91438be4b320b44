package tools

// Name identifies one of the eleven typed tools in the registry (C3). The
// string value is the kebab-case form used in result envelope headers
// (e.g. "[grep-files-result]"); the orchestrator's marker extraction (C10
// §4.3) maps each upper-snake marker tag to one of these.
type Name string

const (
	ReadShell     Name = "read-shell"
	ListDir       Name = "list-dir"
	ReadFile      Name = "read-file"
	GrepFiles     Name = "grep-files"
	ProjectSearch Name = "project-search"
	ApplyPatch    Name = "apply-patch"
	ExecCommand   Name = "exec-command"
	WriteStdin    Name = "write-stdin"
	WebSearch     Name = "web-search"
	ViewImage     Name = "view-image"
	Skill         Name = "skill"
)

func resultHeader(name Name) string {
	return "[" + string(name) + "-result]\n"
}
