package patch

import (
	"fmt"
	"os"
	"strings"

	"github.com/zolt-run/zolt/internal/safepath"
)

// Result is what apply-patch reports back to the model.
type Result struct {
	Applied     bool
	Error       string
	DiffPreview string
	Included    int
	Omitted     int
}

type plannedWrite struct {
	targetPath string
	content    []byte
	mode       os.FileMode
	delete     bool
	deletePath string
}

// Apply validates every file change against the on-disk content under
// workDir and, only if every change matches cleanly, writes all of them.
// No file is touched if any one change fails to apply.
func Apply(p *Patch, workDir string) (*Result, error) {
	preview, included, omitted := diffPreview(p)
	result := &Result{DiffPreview: preview, Included: included, Omitted: omitted}

	var plan []plannedWrite
	for _, ch := range p.Changes {
		absPath, err := safepath.Validate(workDir, ch.Path)
		if err != nil {
			result.Error = err.Error()
			return result, nil
		}

		switch ch.Kind {
		case KindAdd:
			content := renderAddContent(ch.Hunks)
			if _, err := os.Stat(absPath); err == nil {
				result.Error = fmt.Sprintf("add file %q already exists", ch.Path)
				return result, nil
			}
			plan = append(plan, plannedWrite{targetPath: absPath, content: []byte(content), mode: 0644})

		case KindDelete:
			if _, err := os.Stat(absPath); err != nil {
				result.Error = fmt.Sprintf("delete file %q does not exist", ch.Path)
				return result, nil
			}
			plan = append(plan, plannedWrite{delete: true, deletePath: absPath})

		case KindUpdate:
			existing, err := os.ReadFile(absPath)
			if err != nil {
				result.Error = fmt.Sprintf("update file %q: %v", ch.Path, err)
				return result, nil
			}
			newContent, err := applyHunks(string(existing), ch.Hunks)
			if err != nil {
				result.Error = fmt.Sprintf("hunk match failed in %s: %v", ch.Path, err)
				return result, nil
			}
			targetPath := absPath
			if ch.MoveTo != "" {
				targetPath, err = safepath.Validate(workDir, ch.MoveTo)
				if err != nil {
					result.Error = err.Error()
					return result, nil
				}
			}
			info, err := os.Stat(absPath)
			mode := os.FileMode(0644)
			if err == nil {
				mode = info.Mode()
			}
			plan = append(plan, plannedWrite{targetPath: targetPath, content: []byte(newContent), mode: mode})
			if ch.MoveTo != "" && targetPath != absPath {
				plan = append(plan, plannedWrite{delete: true, deletePath: absPath})
			}
		}
	}

	for _, w := range plan {
		if w.delete {
			if err := os.Remove(w.deletePath); err != nil {
				result.Error = fmt.Sprintf("delete %s: %v", w.deletePath, err)
				return result, nil
			}
			continue
		}
		if err := safepath.AtomicWrite(w.targetPath, w.content, w.mode); err != nil {
			result.Error = err.Error()
			return result, nil
		}
	}

	result.Applied = true
	return result, nil
}

func renderAddContent(hunks []Hunk) string {
	var sb strings.Builder
	for _, h := range hunks {
		for _, l := range h.Lines {
			sb.WriteString(l.Text)
			sb.WriteString("\n")
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// applyHunks applies each hunk's context/add/delete lines against content in
// order, splicing in the replacement text wherever the context+removed block
// is found verbatim.
func applyHunks(content string, hunks []Hunk) (string, error) {
	lines := strings.Split(content, "\n")
	cursor := 0

	for _, h := range hunks {
		var before, after []string
		for _, l := range h.Lines {
			switch l.Kind {
			case LineContext:
				before = append(before, l.Text)
				after = append(after, l.Text)
			case LineDel:
				before = append(before, l.Text)
			case LineAdd:
				after = append(after, l.Text)
			}
		}

		idx := indexOfSubslice(lines, before, cursor)
		if idx == -1 {
			return "", fmt.Errorf("no match for hunk %q", h.Header)
		}

		lines = append(lines[:idx], append(append([]string{}, after...), lines[idx+len(before):]...)...)
		cursor = idx + len(after)
	}

	return strings.Join(lines, "\n"), nil
}

func indexOfSubslice(haystack, needle []string, from int) int {
	if len(needle) == 0 {
		return from
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, n := range needle {
			if haystack[i+j] != n {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// diffPreview renders the patch as "*** ", "@@", "+", "-" lines capped at
// MaxPreviewLines, recording how many lines were included vs. dropped.
func diffPreview(p *Patch) (preview string, included, omitted int) {
	var out []string
	for _, ch := range p.Changes {
		switch ch.Kind {
		case KindAdd:
			out = append(out, "*** Add File: "+ch.Path)
		case KindDelete:
			out = append(out, "*** Delete File: "+ch.Path)
		case KindUpdate:
			out = append(out, "*** Update File: "+ch.Path)
			if ch.MoveTo != "" {
				out = append(out, "*** Move to: "+ch.MoveTo)
			}
		}
		for _, h := range ch.Hunks {
			out = append(out, "@@ "+h.Header)
			for _, l := range h.Lines {
				out = append(out, string(rune(l.Kind))+l.Text)
			}
		}
	}

	total := len(out)
	if total > MaxPreviewLines {
		included = MaxPreviewLines
		omitted = total - MaxPreviewLines
		out = out[:MaxPreviewLines]
	} else {
		included = total
		omitted = 0
	}
	return strings.Join(out, "\n"), included, omitted
}
