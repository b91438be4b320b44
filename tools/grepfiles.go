package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

type grepFilesInput struct {
	Query      string `json:"query"`
	Path       string `json:"path"`
	Glob       string `json:"glob"`
	MaxMatches int    `json:"max_matches"`
}

const grepFilesDefaultMax = 200
const grepFilesMaxCap = 2000
const grepFilesOutputCap = 128 * 1024

func (r *Registry) grepFiles(payload string) string {
	header := resultHeader(GrepFiles)
	in, err := parseInput[grepFilesInput](json.RawMessage(payload))
	if err != nil {
		return header + "error: invalid payload: " + err.Error() + "\n"
	}
	if in.Query == "" {
		return header + "error: query is required\n"
	}
	if in.Path == "" {
		in.Path = "."
	}
	if in.MaxMatches <= 0 {
		in.MaxMatches = grepFilesDefaultMax
	}
	if in.MaxMatches > grepFilesMaxCap {
		in.MaxMatches = grepFilesMaxCap
	}

	dir, err := ValidatePath(r.WorkDir, in.Path)
	if err != nil {
		return header + "error: " + err.Error() + "\n"
	}

	matches, err := runRipgrep(dir, in.Query, in.Glob)
	if err != nil {
		return header + "error: " + err.Error() + "\n"
	}

	var sb strings.Builder
	sb.WriteString(header)
	fmt.Fprintf(&sb, "matches: %d\n", len(matches))

	truncatedByCount := len(matches) > in.MaxMatches
	if truncatedByCount {
		matches = matches[:in.MaxMatches]
	}

	truncatedBySize := false
	written := 0
	for _, m := range matches {
		line := fmt.Sprintf("%s:%d:%d:%s\n", m.Path, m.Line, m.Col, m.Text)
		if written+len(line) > grepFilesOutputCap {
			truncatedBySize = true
			break
		}
		sb.WriteString(line)
		written += len(line)
	}

	if truncatedByCount || truncatedBySize {
		sb.WriteString("note: output truncated by limit\n")
	}
	return sb.String()
}
