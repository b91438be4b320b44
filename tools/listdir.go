package tools

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type listDirInput struct {
	Path       string `json:"path"`
	Recursive  bool   `json:"recursive"`
	MaxEntries int    `json:"max_entries"`
}

const listDirDefaultMax = 200
const listDirMaxCap = 1000

func parseListDirPayload(payload string) listDirInput {
	trimmed := strings.TrimSpace(payload)
	in, err := parseInput[listDirInput](json.RawMessage(trimmed))
	if err != nil || (in.Path == "" && !strings.HasPrefix(trimmed, "{")) {
		in = listDirInput{Path: trimmed}
	}
	if in.MaxEntries <= 0 {
		in.MaxEntries = listDirDefaultMax
	}
	if in.MaxEntries > listDirMaxCap {
		in.MaxEntries = listDirMaxCap
	}
	return in
}

func entryKind(info fs.FileInfo) string {
	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return "link"
	case mode.IsDir():
		return "dir"
	case mode&os.ModeNamedPipe != 0:
		return "pipe"
	case mode&os.ModeCharDevice != 0:
		return "char"
	case mode&os.ModeDevice != 0:
		return "block"
	case mode&os.ModeSocket != 0:
		return "sock"
	case mode.IsRegular():
		return "file"
	default:
		return "other"
	}
}

type dirEntryLine struct {
	kind string
	rel  string
	size int64
}

func (r *Registry) listDir(payload string) string {
	header := resultHeader(ListDir)
	in := parseListDirPayload(payload)

	dir := r.WorkDir
	if in.Path != "" {
		resolved, err := ValidatePath(r.WorkDir, in.Path)
		if err != nil {
			return header + "error: " + err.Error() + "\n"
		}
		dir = resolved
	}

	info, err := os.Stat(dir)
	if err != nil {
		return header + "error: " + err.Error() + "\n"
	}
	if !info.IsDir() {
		return header + "error: not a directory\n"
	}

	var lines []dirEntryLine
	truncated := false

	if in.Recursive {
		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if path == dir {
				return nil
			}
			if d.IsDir() && shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			if len(lines) >= in.MaxEntries {
				truncated = true
				return filepath.SkipAll
			}
			fi, err := d.Info()
			if err != nil {
				return nil
			}
			rel, _ := filepath.Rel(dir, path)
			lines = append(lines, dirEntryLine{kind: entryKind(fi), rel: filepath.ToSlash(rel), size: fi.Size()})
			return nil
		})
		if err != nil {
			return header + "error: " + err.Error() + "\n"
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return header + "error: " + err.Error() + "\n"
		}
		for _, e := range entries {
			if len(lines) >= in.MaxEntries {
				truncated = true
				break
			}
			fi, err := e.Info()
			if err != nil {
				continue
			}
			lines = append(lines, dirEntryLine{kind: entryKind(fi), rel: e.Name(), size: fi.Size()})
		}
	}

	sort.Slice(lines, func(i, j int) bool {
		return strings.ToLower(lines[i].rel) < strings.ToLower(lines[j].rel)
	})

	var sb strings.Builder
	sb.WriteString(header)
	fmt.Fprintf(&sb, "path: %s\n", dir)
	fmt.Fprintf(&sb, "count: %d\n", len(lines))
	for _, l := range lines {
		if l.kind == "file" {
			fmt.Fprintf(&sb, "%s\t%s\t%d\n", l.kind, l.rel, l.size)
		} else {
			fmt.Fprintf(&sb, "%s\t%s\n", l.kind, l.rel)
		}
	}
	if truncated {
		sb.WriteString("note: output truncated by limit\n")
	}
	return sb.String()
}
