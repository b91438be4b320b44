// Package tools implements C3: the eleven typed tools the agent
// orchestrator dispatches text-marker tool calls to. Every tool returns a
// plain-text result envelope beginning with a "[name-result]" header line —
// there is no structured error return, because per the error-handling
// design a tool failure is rendered inline as an "error: …" line and fed
// back into the conversation rather than bubbled as a Go error.
package tools

import (
	"net/http"
	"time"

	"github.com/zolt-run/zolt/shellsession"
	"github.com/zolt-run/zolt/skills"
)

// VisionConfig configures the optional image-caption request view-image
// issues against an OpenAI-compatible endpoint.
type VisionConfig struct {
	APIKey          string
	BaseURL         string
	ModelCandidates []string
}

// Registry holds the shared dependencies every tool needs and dispatches
// execution by Name.
type Registry struct {
	WorkDir string
	Shells  *shellsession.Manager
	Skills  *skills.Catalog
	Vision  *VisionConfig

	httpClient *http.Client
}

func NewRegistry(workDir string, shells *shellsession.Manager, catalog *skills.Catalog, vision *VisionConfig) *Registry {
	return &Registry{
		WorkDir:    workDir,
		Shells:     shells,
		Skills:     catalog,
		Vision:     vision,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Execute dispatches to the named tool with its raw marker payload and
// returns the full result envelope text.
func (r *Registry) Execute(name Name, payload string) string {
	switch name {
	case ReadShell:
		return r.readShell(payload)
	case ListDir:
		return r.listDir(payload)
	case ReadFile:
		return r.readFile(payload)
	case GrepFiles:
		return r.grepFiles(payload)
	case ProjectSearch:
		return r.projectSearch(payload)
	case ApplyPatch:
		return r.applyPatch(payload)
	case ExecCommand:
		return r.execCommand(payload)
	case WriteStdin:
		return r.writeStdin(payload)
	case WebSearch:
		return r.webSearch(payload)
	case ViewImage:
		return r.viewImage(payload)
	case Skill:
		return r.skillTool(payload)
	default:
		return resultHeader(name) + "error: unknown tool\n"
	}
}
