package tools

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// readShellAllowlist is the fixed set of binaries read-shell may invoke.
// git is further restricted to a fixed subcommand set in isGitArgsAllowed.
var readShellAllowlist = map[string]bool{
	"rg": true, "grep": true, "ls": true, "cat": true, "find": true,
	"head": true, "tail": true, "sed": true, "wc": true, "stat": true,
	"pwd": true, "git": true,
}

var gitAllowedSubcommands = map[string]bool{
	"status": true, "diff": true, "show": true, "log": true,
	"rev-parse": true, "ls-files": true,
}

const readShellOutputCap = 24 * 1024

// validateReadShellArgv enforces invariant 7 (§8): argv[0] must not contain
// "/", must be in the allow-list, and if it's git the next token must be an
// allowed subcommand with no leading-dash first argument.
func validateReadShellArgv(argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}
	bin := argv[0]
	if strings.Contains(bin, "/") {
		return fmt.Errorf("command %q must not contain a path separator", bin)
	}
	if !readShellAllowlist[bin] {
		return fmt.Errorf("command %q is not allow-listed", bin)
	}
	if bin == "git" {
		if len(argv) < 2 {
			return fmt.Errorf("git requires a subcommand")
		}
		sub := argv[1]
		if strings.HasPrefix(sub, "-") {
			return fmt.Errorf("git subcommand %q must not start with a dash", sub)
		}
		if !gitAllowedSubcommands[sub] {
			return fmt.Errorf("git subcommand %q is not allow-listed", sub)
		}
	}
	return nil
}

// readShell implements the "read-shell" tool (marker READ): a single
// allow-listed command line executed without a shell.
func (r *Registry) readShell(payload string) string {
	header := resultHeader(ReadShell)
	line := strings.TrimSpace(payload)
	if line == "" {
		return header + "error: empty command\n"
	}

	argv, err := tokenizeShellLine(line)
	if err != nil {
		return header + "error: " + err.Error() + "\n"
	}
	if err := validateReadShellArgv(argv); err != nil {
		return header + "error: " + err.Error() + "\n"
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = r.WorkDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	stdoutStr, stderrStr := stdout.String(), stderr.String()
	outStdout, budgetLeft := capString(stdoutStr, readShellOutputCap)
	outStderr, _ := capString(stderrStr, budgetLeft)
	limited := len(outStdout) < len(stdoutStr) || len(outStderr) < len(stderrStr)

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("stdout:\n")
	sb.WriteString(outStdout)
	sb.WriteString("\nstderr:\n")
	sb.WriteString(outStderr)
	sb.WriteString("\n")
	if limited {
		sb.WriteString("note: output truncated by limit\n")
	}
	if runErr != nil {
		sb.WriteString(fmt.Sprintf("exit_error: %v\n", runErr))
	}
	return sb.String()
}

// capString truncates s to at most max bytes, returning the truncated
// string and the budget remaining (0 if s alone consumed or exceeded max).
func capString(s string, max int) (string, int) {
	if max <= 0 {
		return "", 0
	}
	if len(s) <= max {
		return s, max - len(s)
	}
	return s[:max], 0
}
