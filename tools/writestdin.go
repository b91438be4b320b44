package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type writeStdinInput struct {
	SessionID int    `json:"session_id"`
	Chars     string `json:"chars"`
	YieldMs   int    `json:"yield_ms"`
}

func (r *Registry) writeStdin(payload string) string {
	header := resultHeader(WriteStdin)
	in, err := parseInput[writeStdinInput](json.RawMessage(payload))
	if err != nil {
		return header + "error: invalid payload: " + err.Error() + "\n"
	}
	if r.Shells == nil {
		return header + "error: shell sessions unavailable\n"
	}

	session, ok := r.Shells.Get(in.SessionID)
	if !ok {
		return header + "error: unknown session " + strconv.Itoa(in.SessionID) + "\n"
	}

	if err := session.WriteStdin(in.Chars); err != nil {
		return header + "error: " + err.Error() + "\n"
	}

	result := session.Drain(clampYieldMs(in.YieldMs))

	var sb strings.Builder
	sb.WriteString(header)
	fmt.Fprintf(&sb, "session_id: %d\n", session.ID)
	fmt.Fprintf(&sb, "state: %s\n", result.State)
	sb.WriteString("stdout:\n")
	sb.WriteString(result.Stdout)
	sb.WriteString("\nstderr:\n")
	sb.WriteString(result.Stderr)
	sb.WriteString("\n")
	if result.StdoutLimited || result.StderrLimited {
		sb.WriteString("note: output truncated by limit\n")
	}
	return sb.String()
}
