package tools

import (
	"fmt"
	"strings"

	"github.com/zolt-run/zolt/patch"
)

func (r *Registry) applyPatch(payload string) string {
	header := resultHeader(ApplyPatch)

	if len(payload) > patch.MaxEnvelopeSize {
		return header + fmt.Sprintf("status: rejected\nerror: patch exceeds %d byte limit\n", patch.MaxEnvelopeSize)
	}

	p, err := patch.Parse(payload)
	if err != nil {
		return header + "status: rejected\nerror: " + err.Error() + "\n"
	}

	result, err := patch.Apply(p, r.WorkDir)
	if err != nil {
		return header + "status: rejected\nerror: " + err.Error() + "\n"
	}

	var sb strings.Builder
	sb.WriteString(header)
	if result.Applied {
		sb.WriteString("status: applied\n")
	} else {
		sb.WriteString("status: rejected\n")
		sb.WriteString("error: " + result.Error + "\n")
	}
	fmt.Fprintf(&sb, "included:%d omitted:%d\n", result.Included, result.Omitted)
	sb.WriteString("diff_preview:\n")
	sb.WriteString(result.DiffPreview)
	sb.WriteString("\n")
	return sb.String()
}
