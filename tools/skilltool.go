package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type skillInput struct {
	Name string `json:"name"`
}

func (r *Registry) skillTool(payload string) string {
	header := resultHeader(Skill)
	trimmed := strings.TrimSpace(payload)
	in, err := parseInput[skillInput](json.RawMessage(trimmed))
	if err != nil || (in.Name == "" && !strings.HasPrefix(trimmed, "{")) {
		in = skillInput{Name: trimmed}
	}
	if in.Name == "" {
		return header + "error: name is required\n"
	}
	if r.Skills == nil {
		return header + "error: no skills available\n"
	}

	info, ok := r.Skills.Lookup(in.Name)
	if !ok {
		return header + "error: unknown skill " + in.Name + "\n"
	}

	content, err := os.ReadFile(info.Path)
	if err != nil {
		return header + "error: " + err.Error() + "\n"
	}

	var sb strings.Builder
	sb.WriteString(header)
	fmt.Fprintf(&sb, "name: %s\n", info.Name)
	fmt.Fprintf(&sb, "scope: %s\n", info.Scope)
	fmt.Fprintf(&sb, "path: %s\n", info.Path)
	sb.WriteString("---\n")
	sb.Write(content)
	sb.WriteString("\n")
	return sb.String()
}
