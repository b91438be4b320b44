package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type execCommandInput struct {
	Cmd     string `json:"cmd"`
	YieldMs int    `json:"yield_ms"`
}

const execCommandDefaultYieldMs = 700
const execCommandMaxYieldMs = 5000

func clampYieldMs(ms int) time.Duration {
	if ms <= 0 {
		ms = execCommandDefaultYieldMs
	}
	if ms > execCommandMaxYieldMs {
		ms = execCommandMaxYieldMs
	}
	return time.Duration(ms) * time.Millisecond
}

func (r *Registry) execCommand(payload string) string {
	header := resultHeader(ExecCommand)
	in, err := parseInput[execCommandInput](json.RawMessage(payload))
	if err != nil {
		return header + "error: invalid payload: " + err.Error() + "\n"
	}
	if in.Cmd == "" {
		return header + "error: cmd is required\n"
	}
	if r.Shells == nil {
		return header + "error: shell sessions unavailable\n"
	}

	session, err := r.Shells.Start(in.Cmd, r.WorkDir)
	if err != nil {
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
