//go:build windows

package shellsession

import (
	"fmt"
	"os"
)

func formatExitStatus(ps *os.ProcessState, waitErr error) string {
	if ps == nil {
		return "unknown:0"
	}
	return fmt.Sprintf("exited:%d", ps.ExitCode())
}
