package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zolt-run/zolt/llm"
	"github.com/zolt-run/zolt/store"
	"github.com/zolt-run/zolt/tools"
)

// scriptedClient replays one scripted response (or error) per StreamMessage
// call, in order.
type scriptedClient struct {
	texts []string
	errs  []error
	idx   int
}

func (c *scriptedClient) StreamMessage(ctx context.Context, messages []llm.Message) (<-chan llm.StreamEvent, error) {
	i := c.idx
	c.idx++
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	text := ""
	if i < len(c.texts) {
		text = c.texts[i]
	}
	ch := make(chan llm.StreamEvent, 2)
	go func() {
		defer close(ch)
		ch <- llm.StreamEvent{TextDelta: text}
		ch <- llm.StreamEvent{Done: true, FinishReason: "stop", Usage: &llm.Usage{TotalTokens: 10}}
	}()
	return ch, nil
}

func (c *scriptedClient) SendMessage(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	return &llm.Response{Content: "summary"}, nil
}

func (c *scriptedClient) ContextWindow() int { return 100000 }

func newTestAgent(client llm.Client, workDir string) *Agent {
	registry := tools.NewRegistry(workDir, nil, nil, nil)
	tick := int64(1000)
	return New(client, registry, nil, workDir, false, func() int64 { tick++; return tick })
}

func TestTurnReturnsPlainAnswerWithoutToolCall(t *testing.T) {
	client := &scriptedClient{texts: []string{"Hello, how can I help?"}}
	a := newTestAgent(client, t.TempDir())
	conv := &store.Conversation{Title: store.DefaultTitle}

	final, err := a.Turn(context.Background(), conv, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello, how can I help?", final)
	assert.Equal(t, "hi", conv.Title)
}

func TestTurnExecutesToolCallThenAnswers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644))

	client := &scriptedClient{texts: []string{
		`<LIST_DIR>.</LIST_DIR>`,
		"Here's what I found.",
	}}
	a := newTestAgent(client, dir)
	conv := &store.Conversation{Title: store.DefaultTitle}

	final, err := a.Turn(context.Background(), conv, "list files", nil)
	require.NoError(t, err)
	assert.Equal(t, "Here's what I found.", final)

	var sawAudit, sawResult bool
	for _, m := range conv.Messages {
		if m.Content == "[tool] LIST_DIR" {
			sawAudit = true
		}
		if m.Role == "system" && containsResultHeader(m.Content) {
			sawResult = true
		}
	}
	assert.True(t, sawAudit)
	assert.True(t, sawResult)
}

func TestTurnCredentialErrorShortCircuits(t *testing.T) {
	client := &scriptedClient{texts: []string{"unreachable"}}
	a := newTestAgent(client, t.TempDir())
	a.CredentialErr = errors.New("OPENAI_API_KEY not set")
	conv := &store.Conversation{Title: store.DefaultTitle}

	final, err := a.Turn(context.Background(), conv, "hi", nil)
	require.NoError(t, err)
	assert.Contains(t, final, "[local] Missing")
	assert.Contains(t, final, "OPENAI_API_KEY")
}

func TestTurnStreamFailurePersistsLocalErrorMessage(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("permission denied")}}
	a := newTestAgent(client, t.TempDir())
	conv := &store.Conversation{Title: store.DefaultTitle}

	final, err := a.Turn(context.Background(), conv, "hi", nil)
	require.NoError(t, err)
	assert.Contains(t, final, "[local] Request failed")
}

func TestTurnRepeatedToolCallTriggersGuard(t *testing.T) {
	dir := t.TempDir()
	client := &scriptedClient{texts: []string{
		`<LIST_DIR>.</LIST_DIR>`,
		`<LIST_DIR>.</LIST_DIR>`,
		"final answer after the guard fires",
	}}
	a := newTestAgent(client, dir)
	conv := &store.Conversation{Title: store.DefaultTitle}

	final, err := a.Turn(context.Background(), conv, "list twice", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, final)

	var sawGuardNote bool
	for _, m := range conv.Messages {
		if m.Role == "system" && m.Content == toolResultGuardMessage(GuardRepeatedToolCall) {
			sawGuardNote = true
		}
	}
	assert.True(t, sawGuardNote)
}

func TestTurnMaxIterationsGuardSynthesizesFallbackWhenFinalEmpty(t *testing.T) {
	dir := t.TempDir()
	client := &scriptedClient{texts: []string{
		`<LIST_DIR>{"path":".","recursive":false}</LIST_DIR>`,
		`<LIST_DIR>{"path":".","recursive":true}</LIST_DIR>`,
		`<LIST_DIR>{"path":".","max_entries":5}</LIST_DIR>`,
		`<LIST_DIR>{"path":".","max_entries":6}</LIST_DIR>`,
		"",
	}}
	a := newTestAgent(client, dir)
	conv := &store.Conversation{Title: store.DefaultTitle}

	final, err := a.Turn(context.Background(), conv, "explore", nil)
	require.NoError(t, err)
	assert.Contains(t, final, "I completed")
	assert.Contains(t, final, "max_iterations")
}

func TestSynthesizeFallbackNoToolExecuted(t *testing.T) {
	msg := synthesizeFallback(false, "", "", GuardNone)
	assert.Contains(t, msg, "No user-facing response was produced")
}

func TestSummarizeResultLinePrefersStateLine(t *testing.T) {
	result := "[exec-command-result]\nsession_id: 1\nstate: exited:0\nstdout:\n"
	assert.Equal(t, "state:exited:0", summarizeResultLine(result))
}

func containsResultHeader(s string) bool {
	return len(s) > 0 && s[0] == '['
}
