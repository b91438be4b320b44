package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeShellLineRespectsQuotes(t *testing.T) {
	tokens, err := tokenizeShellLine(`grep -n "hello world" file.txt`)
	require.NoError(t, err)
	assert.Equal(t, []string{"grep", "-n", "hello world", "file.txt"}, tokens)
}

func TestValidateReadShellArgvRejectsPathSeparator(t *testing.T) {
	err := validateReadShellArgv([]string{"/bin/ls"})
	require.Error(t, err)
}

func TestValidateReadShellArgvRejectsUnlistedBinary(t *testing.T) {
	err := validateReadShellArgv([]string{"curl", "http://example.com"})
	require.Error(t, err)
}

func TestValidateReadShellArgvRejectsUnlistedGitSubcommand(t *testing.T) {
	err := validateReadShellArgv([]string{"git", "push"})
	require.Error(t, err)
}

func TestValidateReadShellArgvRejectsGitLeadingDash(t *testing.T) {
	err := validateReadShellArgv([]string{"git", "--exec-path=/tmp"})
	require.Error(t, err)
}

func TestValidateReadShellArgvAllowsKnownGitSubcommand(t *testing.T) {
	err := validateReadShellArgv([]string{"git", "status"})
	require.NoError(t, err)
}

func TestReadShellExecutesAllowedCommand(t *testing.T) {
	r := NewRegistry(t.TempDir(), nil, nil, nil)
	out := r.readShell("pwd")
	assert.Contains(t, out, "[read-shell-result]")
	assert.Contains(t, out, "stdout:")
}

func TestReadShellRejectsDisallowedCommand(t *testing.T) {
	r := NewRegistry(t.TempDir(), nil, nil, nil)
	out := r.readShell("curl http://example.com")
	assert.Contains(t, out, "error:")
}
