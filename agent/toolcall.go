package agent

import (
	"regexp"
	"strings"

	"github.com/zolt-run/zolt/tools"
)

// ToolCall is the result of matching one of the §4.3 envelope forms against
// a completed assistant message.
type ToolCall struct {
	Name    tools.Name
	Payload string
}

// markerSpec pairs a tool name with the tag/fence vocabulary that signals it.
type markerSpec struct {
	name  tools.Name
	tag   string // <TAG>...</TAG>, uppercase
	fence string // ```fence ... ```, lowercase
}

// precedence order exactly matches spec §4.3 items 1-8; SKILL, READ, and
// APPLY_PATCH each need bespoke handling below and are tried last in that
// same relative order.
var orderedMarkers = []markerSpec{
	{tools.ListDir, "LIST_DIR", "list_dir"},
	{tools.ReadFile, "READ_FILE", "read_file"},
	{tools.GrepFiles, "GREP_FILES", "grep_files"},
	{tools.ProjectSearch, "PROJECT_SEARCH", "project_search"},
	{tools.ExecCommand, "EXEC_COMMAND", "exec_command"},
	{tools.WriteStdin, "WRITE_STDIN", "write_stdin"},
	{tools.WebSearch, "WEB_SEARCH", "web_search"},
	{tools.ViewImage, "VIEW_IMAGE", "view_image"},
}

// ExtractToolCall checks a completed assistant message in the fixed
// precedence order spec §4.3 defines and returns the first match. ok is
// false when the message is a plain user-facing answer.
func ExtractToolCall(message string) (tc ToolCall, ok bool) {
	for _, m := range orderedMarkers {
		if payload, found := extractTagOrFence(message, m.tag, m.fence); found {
			return ToolCall{Name: m.name, Payload: payload}, true
		}
	}

	if payload, found := extractSkill(message); found {
		return ToolCall{Name: tools.Skill, Payload: payload}, true
	}

	if payload, found := extractRead(message); found {
		return ToolCall{Name: tools.ReadShell, Payload: payload}, true
	}

	if payload, found := extractApplyPatch(message); found {
		return ToolCall{Name: tools.ApplyPatch, Payload: payload}, true
	}

	return ToolCall{}, false
}

// extractTagOrFence looks for <TAG>...</TAG> first, then a ```fence block.
// The XML-ish tag form and the fence form are never both present for the
// same marker in practice, but tag wins if they are.
func extractTagOrFence(message, tag, fence string) (string, bool) {
	if payload, ok := extractTag(message, tag); ok {
		return payload, true
	}
	return extractFence(message, fence)
}

func extractTag(message, tag string) (string, bool) {
	open := "<" + tag + ">"
	closeTag := "</" + tag + ">"
	start := strings.Index(message, open)
	if start == -1 {
		return "", false
	}
	start += len(open)
	end := strings.Index(message[start:], closeTag)
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(message[start : start+end]), true
}

func extractFence(message, lang string) (string, bool) {
	re := regexp.MustCompile("(?s)```" + regexp.QuoteMeta(lang) + `\s*\n(.*?)` + "```")
	m := re.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func extractSkill(message string) (string, bool) {
	if payload, ok := extractTagOrFence(message, "SKILL", "skill"); ok {
		return payload, true
	}
	re := regexp.MustCompile(`(?m)^\[tool\]\s+SKILL\s+(.+)$`)
	m := re.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func extractRead(message string) (string, bool) {
	if payload, ok := extractTagOrFence(message, "READ", "read"); ok {
		return payload, true
	}
	patterns := []string{
		`(?m)^READ:\s*(.+)$`,
		`(?m)^READ\s+(.+)$`,
		`(?m)^\[tool\]\s+READ\s+(.+)$`,
	}
	for _, p := range patterns {
		re := regexp.MustCompile(p)
		if m := re.FindStringSubmatch(message); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

const (
	patchBeginMarker = "*** Begin Patch"
	patchEndMarker   = "*** End Patch"
)

// extractApplyPatch: fence/tag form wins over a raw "*** Begin Patch ...
// *** End Patch" block per the extraction-policy redesign flag.
func extractApplyPatch(message string) (string, bool) {
	if payload, ok := extractTagOrFence(message, "APPLY_PATCH", "apply_patch"); ok {
		return payload, true
	}

	start := strings.Index(message, patchBeginMarker)
	if start == -1 {
		return "", false
	}
	endIdx := strings.Index(message[start:], patchEndMarker)
	if endIdx == -1 {
		return "", false
	}
	end := start + endIdx + len(patchEndMarker)
	return strings.TrimSpace(message[start:end]), true
}

// markerLabel maps a tool name back to the uppercase marker keyword used in
// the wire format (spec §4.3) — mechanical upper-casing of the tool name
// would produce READ_SHELL for the read-shell tool, but its marker is READ.
var markerLabel = map[tools.Name]string{
	tools.ReadShell:     "READ",
	tools.ListDir:       "LIST_DIR",
	tools.ReadFile:      "READ_FILE",
	tools.GrepFiles:     "GREP_FILES",
	tools.ProjectSearch: "PROJECT_SEARCH",
	tools.ApplyPatch:    "APPLY_PATCH",
	tools.ExecCommand:   "EXEC_COMMAND",
	tools.WriteStdin:    "WRITE_STDIN",
	tools.WebSearch:     "WEB_SEARCH",
	tools.ViewImage:     "VIEW_IMAGE",
	tools.Skill:         "SKILL",
}

// AuditLine renders the one-line "[tool] NAME" entry the orchestrator
// rewrites the assistant message to before executing the tool (§4.1 step 7e).
func AuditLine(name tools.Name) string {
	label, ok := markerLabel[name]
	if !ok {
		label = strings.ToUpper(strings.ReplaceAll(string(name), "-", "_"))
	}
	return "[tool] " + label
}
