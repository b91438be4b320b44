// Package store implements C8: the ordered collection of conversations
// persisted to state.json, with atomic save and versioned load-or-create.
package store

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/zolt-run/zolt/internal/safepath"
)

const stateVersion = 1

// TokenUsage mirrors llm.Usage's five counters without importing llm, so the
// persisted-state shape stays free of any provider-client dependency.
type TokenUsage struct {
	InputTokens           int `json:"input_tokens"`
	CachedInputTokens     int `json:"cached_input_tokens"`
	OutputTokens          int `json:"output_tokens"`
	ReasoningOutputTokens int `json:"reasoning_output_tokens"`
	TotalTokens           int `json:"total_tokens"`
}

// Add accumulates u into the receiver in place.
func (t *TokenUsage) Add(u TokenUsage) {
	t.InputTokens += u.InputTokens
	t.CachedInputTokens += u.CachedInputTokens
	t.OutputTokens += u.OutputTokens
	t.ReasoningOutputTokens += u.ReasoningOutputTokens
	t.TotalTokens += u.TotalTokens
}

// Blended returns max(0, input-cached) + max(0, output), the spec's blended
// cost metric.
func (t TokenUsage) Blended() int {
	in := t.InputTokens - t.CachedInputTokens
	if in < 0 {
		in = 0
	}
	out := t.OutputTokens
	if out < 0 {
		out = 0
	}
	return in + out
}

// contextBaseline is the token reserve subtracted from the context window
// before computing percent-remaining (spec §3, GLOSSARY:
// percent_of_context_window_remaining).
const contextBaseline = 12000

// PercentOfContextWindowRemaining computes how much of a model's usable
// context window (window - contextBaseline) is left, clamped to [0,100].
// Returns 0 when the window does not exceed the baseline.
func (t TokenUsage) PercentOfContextWindowRemaining(window int) int {
	usable := window - contextBaseline
	if usable <= 0 {
		return 0
	}
	remaining := usable - t.TotalTokens
	if remaining <= 0 {
		return 0
	}
	pct := (remaining * 100) / usable
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

// Message is one persisted conversation entry.
type Message struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// Conversation holds an ordered message sequence plus token accounting.
type Conversation struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	CreatedMs         int64      `json:"created_ms"`
	UpdatedMs         int64      `json:"updated_ms"`
	TotalTokenUsage   TokenUsage `json:"total_token_usage"`
	LastTokenUsage    TokenUsage `json:"last_token_usage"`
	ModelContextWindow int       `json:"model_context_window,omitempty"`
	Messages          []Message  `json:"messages"`
}

// DefaultTitle is the placeholder auto-title replaces on the first prompt.
const DefaultTitle = "New conversation"

// NewConversation creates an empty conversation with a random 16-hex-char id.
func NewConversation(nowMs int64) Conversation {
	return Conversation{
		ID:        newConversationID(),
		Title:     DefaultTitle,
		CreatedMs: nowMs,
		UpdatedMs: nowMs,
		Messages:  []Message{},
	}
}

// newConversationID returns the first 16 lowercase hex characters of a
// UUIDv4 with dashes stripped, per spec §3.
func newConversationID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:16]
}

// AppState is the root of the versioned state.json document.
type AppState struct {
	Version               int            `json:"version"`
	CurrentConversationID  string         `json:"current_conversation_id"`
	SelectedProviderID     string         `json:"selected_provider_id"`
	SelectedModelID        string         `json:"selected_model_id"`
	Conversations          []Conversation `json:"conversations"`
}

// Current returns a pointer to the current conversation, or nil if the
// current id does not resolve (should not happen after LoadOrCreate).
func (s *AppState) Current() *Conversation {
	for i := range s.Conversations {
		if s.Conversations[i].ID == s.CurrentConversationID {
			return &s.Conversations[i]
		}
	}
	return nil
}

// ByID returns the conversation with the given id, or nil.
func (s *AppState) ByID(id string) *Conversation {
	for i := range s.Conversations {
		if s.Conversations[i].ID == id {
			return &s.Conversations[i]
		}
	}
	return nil
}

// LoadOrCreate reads path, or creates a fresh single-conversation state if
// the file does not exist. The invariant "at least one conversation exists,
// current index in range" is always restored before returning.
func LoadOrCreate(path string, nowMs int64) (*AppState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		conv := NewConversation(nowMs)
		return &AppState{
			Version:               stateVersion,
			CurrentConversationID: conv.ID,
			Conversations:         []Conversation{conv},
		}, nil
	}

	var state AppState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if len(state.Conversations) == 0 {
		conv := NewConversation(nowMs)
		state.Conversations = []Conversation{conv}
		state.CurrentConversationID = conv.ID
	}
	if state.Current() == nil {
		state.CurrentConversationID = state.Conversations[0].ID
	}
	state.Version = stateVersion
	return &state, nil
}

// Save writes state to path atomically (temp file + rename), even though
// spec §6 only requires truncate+write+close — the module already has a
// shared atomic-write helper and using it uniformly costs nothing.
func Save(path string, state *AppState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return safepath.AtomicWrite(path, data, 0644)
}
