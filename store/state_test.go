package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateStartsWithOneConversation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	state, err := LoadOrCreate(path, 1000)
	require.NoError(t, err)
	require.Len(t, state.Conversations, 1)
	assert.Equal(t, state.Conversations[0].ID, state.CurrentConversationID)
	assert.Len(t, state.Conversations[0].ID, 16)
	assert.Equal(t, DefaultTitle, state.Conversations[0].Title)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	state, err := LoadOrCreate(path, 1000)
	require.NoError(t, err)

	conv := state.Current()
	conv.Title = "fix the bug"
	conv.Messages = append(conv.Messages, Message{Role: "user", Content: "hi", TimestampMs: 1001})
	conv.TotalTokenUsage.Add(TokenUsage{TotalTokens: 42})

	require.NoError(t, Save(path, state))

	reloaded, err := LoadOrCreate(path, 2000)
	require.NoError(t, err)
	require.Len(t, reloaded.Conversations, 1)
	assert.Equal(t, "fix the bug", reloaded.Conversations[0].Title)
	assert.Equal(t, 42, reloaded.Conversations[0].TotalTokenUsage.TotalTokens)
	require.Len(t, reloaded.Conversations[0].Messages, 1)
	assert.Equal(t, "hi", reloaded.Conversations[0].Messages[0].Content)
}

func TestLoadOrCreateRepairsMissingCurrentID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	state, err := LoadOrCreate(path, 1000)
	require.NoError(t, err)
	state.CurrentConversationID = "does-not-exist"
	require.NoError(t, Save(path, state))

	reloaded, err := LoadOrCreate(path, 2000)
	require.NoError(t, err)
	assert.Equal(t, reloaded.Conversations[0].ID, reloaded.CurrentConversationID)
}

func TestByIDReturnsNilForUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	state, err := LoadOrCreate(path, 1000)
	require.NoError(t, err)
	assert.Nil(t, state.ByID("nope"))
	assert.NotNil(t, state.ByID(state.CurrentConversationID))
}

func TestLoadOrCreatePropagatesCorruptJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))
	_, err := LoadOrCreate(path, 1000)
	assert.Error(t, err)
}

func TestPercentOfContextWindowRemaining(t *testing.T) {
	cases := []struct {
		name   string
		usage  TokenUsage
		window int
		want   int
	}{
		{"window at or below baseline", TokenUsage{TotalTokens: 0}, 12000, 0},
		{"window below baseline", TokenUsage{TotalTokens: 0}, 5000, 0},
		{"no usage yet", TokenUsage{TotalTokens: 0}, 112000, 100},
		{"fully consumed", TokenUsage{TotalTokens: 100000}, 112000, 0},
		{"over-consumed clamps to 0", TokenUsage{TotalTokens: 999999}, 112000, 0},
		{"half consumed", TokenUsage{TotalTokens: 50000}, 112000, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.usage.PercentOfContextWindowRemaining(tc.window)
			assert.Equal(t, tc.want, got)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		})
	}
}

func TestPercentMonotonicNonIncreasingAsUsageGrows(t *testing.T) {
	window := 112000
	prev := 100
	for total := 0; total <= window; total += 5000 {
		pct := TokenUsage{TotalTokens: total}.PercentOfContextWindowRemaining(window)
		assert.LessOrEqual(t, pct, prev)
		prev = pct
	}
}

func TestBlendedExcludesCachedInputAndClampsNegatives(t *testing.T) {
	u := TokenUsage{InputTokens: 100, CachedInputTokens: 40, OutputTokens: 20}
	assert.Equal(t, 80, u.Blended())

	negative := TokenUsage{InputTokens: 10, CachedInputTokens: 50}
	assert.Equal(t, 0, negative.Blended())
}
