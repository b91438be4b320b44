package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type projectSearchInput struct {
	Query      string `json:"query"`
	Path       string `json:"path"`
	MaxFiles   int    `json:"max_files"`
	MaxMatches int    `json:"max_matches"`
}

const (
	projectSearchDefaultMaxFiles   = 8
	projectSearchMaxFilesCap       = 24
	projectSearchDefaultMaxMatches = 300
	projectSearchMaxMatchesCap     = 5000
)

type fileHits struct {
	path        string
	hits        int
	firstLine   int
	firstSnippet string
}

func (r *Registry) projectSearch(payload string) string {
	header := resultHeader(ProjectSearch)
	in, err := parseInput[projectSearchInput](json.RawMessage(payload))
	if err != nil {
		return header + "error: invalid payload: " + err.Error() + "\n"
	}
	if in.Query == "" {
		return header + "error: query is required\n"
	}
	if in.Path == "" {
		in.Path = "."
	}
	if in.MaxFiles <= 0 {
		in.MaxFiles = projectSearchDefaultMaxFiles
	}
	if in.MaxFiles > projectSearchMaxFilesCap {
		in.MaxFiles = projectSearchMaxFilesCap
	}
	if in.MaxMatches <= 0 {
		in.MaxMatches = projectSearchDefaultMaxMatches
	}
	if in.MaxMatches > projectSearchMaxMatchesCap {
		in.MaxMatches = projectSearchMaxMatchesCap
	}

	dir, err := ValidatePath(r.WorkDir, in.Path)
	if err != nil {
		return header + "error: " + err.Error() + "\n"
	}

	matches, err := runRipgrep(dir, in.Query, "")
	if err != nil {
		return header + "error: " + err.Error() + "\n"
	}
	if len(matches) > in.MaxMatches {
		matches = matches[:in.MaxMatches]
	}

	byFile := make(map[string]*fileHits)
	var order []string
	for _, m := range matches {
		fh, ok := byFile[m.Path]
		if !ok {
			fh = &fileHits{path: m.Path, firstLine: m.Line, firstSnippet: m.Text}
			byFile[m.Path] = fh
			order = append(order, m.Path)
		}
		fh.hits++
	}

	var files []*fileHits
	for _, p := range order {
		files = append(files, byFile[p])
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].hits != files[j].hits {
			return files[i].hits > files[j].hits
		}
		if files[i].firstLine != files[j].firstLine {
			return files[i].firstLine < files[j].firstLine
		}
		return files[i].path < files[j].path
	})

	truncated := len(files) > in.MaxFiles
	if truncated {
		files = files[:in.MaxFiles]
	}

	var sb strings.Builder
	sb.WriteString(header)
	fmt.Fprintf(&sb, "files: %d\n", len(files))
	for _, f := range files {
		fmt.Fprintf(&sb, "%s\thits:%d\t%d: %s\n", f.path, f.hits, f.firstLine, truncateLine(f.firstSnippet, 200))
	}
	if truncated {
		sb.WriteString("note: output truncated by limit\n")
	}
	return sb.String()
}

func truncateLine(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
