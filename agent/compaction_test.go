package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zolt-run/zolt/llm"
	"github.com/zolt-run/zolt/store"
)

type fakeClient struct {
	resp *llm.Response
	err  error
}

func (f *fakeClient) StreamMessage(ctx context.Context, messages []llm.Message) (<-chan llm.StreamEvent, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeClient) SendMessage(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	return f.resp, f.err
}
func (f *fakeClient) ContextWindow() int { return 100000 }

func messagesOfLen(n int) []store.Message {
	msgs := make([]store.Message, n)
	for i := range msgs {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msgs[i] = store.Message{Role: role, Content: "message content number " + string(rune('a'+i%26))}
	}
	return msgs
}

func TestCompactNoOpBelowKeepRecent(t *testing.T) {
	conv := &store.Conversation{Messages: messagesOfLen(5)}
	changed, err := Compact(context.Background(), nil, conv, false, 1000)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, conv.Messages, 5)
}

func TestCompactNoOpWhenTooFewSourceMessages(t *testing.T) {
	msgs := messagesOfLen(9)
	for i := 0; i < 3; i++ {
		msgs[i] = store.Message{Role: "system", Content: "boilerplate"}
	}
	conv := &store.Conversation{Messages: msgs}
	changed, err := Compact(context.Background(), nil, conv, false, 1000)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCompactUsesModelSummaryWhenAvailable(t *testing.T) {
	conv := &store.Conversation{Messages: messagesOfLen(12)}
	client := &fakeClient{resp: &llm.Response{Content: "- goal: ship feature"}}

	changed, err := Compact(context.Background(), client, conv, true, 2000)
	require.NoError(t, err)
	assert.True(t, changed)

	require.Len(t, conv.Messages, 2+KeepRecent)
	assert.Contains(t, conv.Messages[0].Content, "[compact]")
	assert.Contains(t, conv.Messages[0].Content, "manual")
	assert.Contains(t, conv.Messages[1].Content, "[compact-summary]")
	assert.Contains(t, conv.Messages[1].Content, "goal: ship feature")
	assert.Equal(t, store.TokenUsage{}, conv.LastTokenUsage)
}

func TestCompactFallsBackToLocalSummaryOnModelError(t *testing.T) {
	conv := &store.Conversation{Messages: messagesOfLen(12)}
	client := &fakeClient{err: errors.New("provider down")}

	changed, err := Compact(context.Background(), client, conv, false, 2000)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, conv.Messages[1].Content, "Local fallback summary:")
	assert.Contains(t, conv.Messages[0].Content, "auto")
}

func TestCompactPreservesLeadingAgentsContextMessage(t *testing.T) {
	msgs := append([]store.Message{{Role: "system", Content: "[agents-context]\nrules"}}, messagesOfLen(12)...)
	conv := &store.Conversation{Messages: msgs}
	client := &fakeClient{resp: &llm.Response{Content: "summary"}}

	changed, err := Compact(context.Background(), client, conv, false, 3000)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "[agents-context]\nrules", conv.Messages[0].Content)
}

func TestPreviewTrimCollapsesWhitespaceAndCaps(t *testing.T) {
	long := ""
	for i := 0; i < 300; i++ {
		long += "a"
	}
	result := previewTrim("a   b\n\nc\t\td" + long)
	assert.True(t, len(result) <= previewChars+len("…"))
	assert.Contains(t, result, "…")
}
