package shellsession

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndDrainCapturesOutput(t *testing.T) {
	m := NewManager()
	s, err := m.Start("echo hello", t.TempDir())
	require.NoError(t, err)

	result := s.Drain(500 * time.Millisecond)
	assert.Equal(t, "hello\n", result.Stdout)
	assert.Contains(t, result.State, "exited:0")
}

func TestWriteStdinRoundTrip(t *testing.T) {
	m := NewManager()
	s, err := m.Start("cat", t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.WriteStdin("ping\n"))
	result := s.Drain(300 * time.Millisecond)
	assert.Equal(t, "ping\n", result.Stdout)

	require.NoError(t, s.WriteStdin("pong\n"))
	m.Destroy(s.ID)
}

func TestDrainReportsRunningBeforeExit(t *testing.T) {
	m := NewManager()
	s, err := m.Start("sleep 2", t.TempDir())
	require.NoError(t, err)
	defer m.Destroy(s.ID)

	result := s.Drain(50 * time.Millisecond)
	assert.Equal(t, "running", result.State)
}

func TestEvictionKeepsSessionCountAtCap(t *testing.T) {
	m := NewManager()
	for i := 0; i < MaxLiveSessions+3; i++ {
		_, err := m.Start("true", t.TempDir())
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}
	assert.LessOrEqual(t, m.LiveCount(), MaxLiveSessions)
}

func TestStdoutCapLimitsPerStreamOutput(t *testing.T) {
	m := NewManager()
	s, err := m.Start(`yes x | head -c 40000`, t.TempDir())
	require.NoError(t, err)

	result := s.Drain(time.Second)
	assert.True(t, result.StdoutLimited)
	assert.LessOrEqual(t, len(result.Stdout), perStreamCap)
	assert.True(t, strings.HasPrefix(result.Stdout, "x"))
}
