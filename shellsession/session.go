// Package shellsession implements C4: long-lived child processes keyed by a
// monotonic session id, with non-blocking-style stdout/stderr draining and
// capacity eviction. There are no OS threads blocked on child I/O from the
// manager's perspective — each pipe is read by its own goroutine into a
// channel, and the drain loop only ever selects on those channels with a
// bounded timeout, mirroring the poll()-with-short-timeouts design the spec
// describes for a single-threaded host language.
package shellsession

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// perStreamCap is the 24 KiB cap each of stdout/stderr accumulates before
// further bytes for that stream are discarded.
const perStreamCap = 24 * 1024

// chunkSize is the read granularity for the pipe-reader goroutines.
const chunkSize = 2 * 1024

// MaxLiveSessions is the eviction threshold (§3/§8 invariant 5).
const MaxLiveSessions = 8

type chunk struct {
	data []byte
	eof  bool
}

// CommandSession is one spawned `bash -lc <cmd>` child process.
type CommandSession struct {
	ID  int
	Cmd string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdoutCh chan chunk
	stderrCh chan chunk

	mu            sync.Mutex
	stdoutBuf     []byte
	stderrBuf     []byte
	stdoutLimited bool
	stderrLimited bool
	stdoutEOF     bool
	stderrEOF     bool
	finished      bool
	exitStatus    string

	waitDone chan struct{}
}

// State reports the session's current lifecycle state, one of "running" or
// "exited:N"/"signal:N"/"stopped:N"/"unknown:N".
func (s *CommandSession) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		return "running"
	}
	return s.exitStatus
}

// Manager owns every live CommandSession, assigning monotonically
// increasing ids starting at 1.
type Manager struct {
	mu       sync.Mutex
	sessions map[int]*CommandSession
	order    []int // insertion order, oldest first
	nextID   int
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[int]*CommandSession), nextID: 1}
}

// Start spawns a new session running `bash -lc cmd` with the given working
// directory, evicting existing sessions first if the manager is at
// capacity.
func (m *Manager) Start(cmd, workDir string) (*CommandSession, error) {
	m.mu.Lock()
	if len(m.sessions) >= MaxLiveSessions {
		m.evictLocked()
	}
	id := m.nextID
	m.nextID++
	m.mu.Unlock()

	c := exec.Command("bash", "-lc", cmd)
	c.Dir = workDir

	stdin, err := c.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	session := &CommandSession{
		ID:       id,
		Cmd:      cmd,
		cmd:      c,
		stdin:    stdin,
		stdoutCh: make(chan chunk, 16),
		stderrCh: make(chan chunk, 16),
		waitDone: make(chan struct{}),
	}

	go pumpPipe(stdout, session.stdoutCh)
	go pumpPipe(stderr, session.stderrCh)
	go func() {
		err := c.Wait()
		session.mu.Lock()
		session.finished = true
		session.exitStatus = formatExitStatus(c.ProcessState, err)
		session.mu.Unlock()
		close(session.waitDone)
	}()

	m.mu.Lock()
	m.sessions[id] = session
	m.order = append(m.order, id)
	m.mu.Unlock()

	return session, nil
}

// pumpPipe reads r in chunkSize pieces, forwarding each as a chunk on ch,
// and sends a final {eof: true} chunk before the reader goroutine exits.
func pumpPipe(r io.Reader, ch chan<- chunk) {
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			ch <- chunk{data: data}
		}
		if err != nil {
			ch <- chunk{eof: true}
			return
		}
	}
}

// Get looks up a session by id.
func (m *Manager) Get(id int) (*CommandSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// LiveCount returns the number of sessions currently tracked (finished or
// not) — used to verify the ≤8 invariant.
func (m *Manager) LiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// evictLocked sweeps finished sessions first; if the manager is still at
// capacity, it force-kills the oldest live session. Caller must hold m.mu.
func (m *Manager) evictLocked() {
	for _, id := range append([]int(nil), m.order...) {
		if s, ok := m.sessions[id]; ok && s.State() != "running" {
			m.destroyLocked(id)
		}
	}
	if len(m.sessions) >= MaxLiveSessions && len(m.order) > 0 {
		oldest := m.order[0]
		if s, ok := m.sessions[oldest]; ok {
			s.cmd.Process.Kill()
			<-s.waitDone
		}
		m.destroyLocked(oldest)
	}
}

func (m *Manager) destroyLocked(id int) {
	delete(m.sessions, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Destroy force-kills and removes a session regardless of state.
func (m *Manager) Destroy(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		if s.State() == "running" {
			s.cmd.Process.Kill()
		}
		m.destroyLocked(id)
	}
}

// WriteStdin writes chars to the session's stdin pipe. Returns an error if
// the session has no open stdin (already closed or process exited).
func (s *CommandSession) WriteStdin(chars string) error {
	if s.stdin == nil {
		return fmt.Errorf("stdin closed for session %d", s.ID)
	}
	_, err := io.WriteString(s.stdin, chars)
	if err != nil {
		s.stdin = nil
		return fmt.Errorf("write stdin: %w", err)
	}
	return nil
}

// DrainResult is the output accumulated since the session started, as
// returned by one Drain call.
type DrainResult struct {
	Stdout        string
	Stderr        string
	StdoutLimited bool
	StderrLimited bool
	State         string
}

// Drain polls both pipes for up to yieldMs (in 200ms slices), stopping
// early once the child has exited and both pipes report EOF. It returns
// everything accumulated across the session's lifetime, not just this call
// — mirroring spec §4.5's per-session running buffer.
func (s *CommandSession) Drain(yieldMs time.Duration) DrainResult {
	deadline := time.Now().Add(yieldMs)
	const sliceDur = 200 * time.Millisecond

	for {
		s.mu.Lock()
		done := s.stdoutEOF && s.stderrEOF
		s.mu.Unlock()
		if done || time.Now().After(deadline) {
			break
		}

		remaining := time.Until(deadline)
		slice := sliceDur
		if remaining < slice {
			slice = remaining
		}
		if slice <= 0 {
			break
		}
		timer := time.NewTimer(slice)

		select {
		case c, ok := <-s.stdoutCh:
			timer.Stop()
			if ok {
				s.appendStdout(c)
			}
		case c, ok := <-s.stderrCh:
			timer.Stop()
			if ok {
				s.appendStderr(c)
			}
		case <-timer.C:
		}
	}

	s.mu.Lock()
	eof := s.stdoutEOF && s.stderrEOF
	s.mu.Unlock()
	if remaining := time.Until(deadline); eof && remaining > 0 {
		select {
		case <-s.waitDone:
		case <-time.After(remaining):
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state := "running"
	if s.finished {
		state = s.exitStatus
	}
	return DrainResult{
		Stdout:        string(s.stdoutBuf),
		Stderr:        string(s.stderrBuf),
		StdoutLimited: s.stdoutLimited,
		StderrLimited: s.stderrLimited,
		State:         state,
	}
}

func (s *CommandSession) appendStdout(c chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.eof {
		s.stdoutEOF = true
		return
	}
	if s.stdoutLimited {
		return
	}
	if len(s.stdoutBuf)+len(c.data) > perStreamCap {
		room := perStreamCap - len(s.stdoutBuf)
		if room > 0 {
			s.stdoutBuf = append(s.stdoutBuf, c.data[:room]...)
		}
		s.stdoutLimited = true
		return
	}
	s.stdoutBuf = append(s.stdoutBuf, c.data...)
}

func (s *CommandSession) appendStderr(c chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.eof {
		s.stderrEOF = true
		return
	}
	if s.stderrLimited {
		return
	}
	if len(s.stderrBuf)+len(c.data) > perStreamCap {
		room := perStreamCap - len(s.stderrBuf)
		if room > 0 {
			s.stderrBuf = append(s.stderrBuf, c.data[:room]...)
		}
		s.stderrLimited = true
		return
	}
	s.stderrBuf = append(s.stderrBuf, c.data...)
}
