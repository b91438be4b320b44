package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/zolt-run/zolt/llm"
	"github.com/zolt-run/zolt/store"
)

// KeepRecent is the tail length compaction always preserves untouched.
const KeepRecent = 8

// minSourceMessages is the floor below which compaction is a no-op even
// when the message count exceeds KeepRecent (§4.5 step 3).
const minSourceMessages = 4

const previewChars = 200

// CompactionKind records whether the model-assisted summary succeeded.
type CompactionKind string

const (
	KindModel CompactionKind = "model"
	KindLocal CompactionKind = "local"
)

// Compact runs C9 against conv in place. manual distinguishes a user-invoked
// compaction from an automatic one for the note text; nowMs stamps
// UpdatedMs. Returns false if compaction was a no-op (too few messages).
func Compact(ctx context.Context, client llm.Client, conv *store.Conversation, manual bool, nowMs int64) (bool, error) {
	if len(conv.Messages) <= KeepRecent {
		return false, nil
	}

	splitAt := len(conv.Messages) - KeepRecent
	head := conv.Messages[:splitAt]
	tail := conv.Messages[splitAt:]

	sources := compactionSources(head)
	if len(sources) < minSourceMessages {
		return false, nil
	}

	summary, kind := modelAssistedSummary(ctx, client, sources)
	if summary == "" {
		summary = localFallbackSummary(sources)
		kind = KindLocal
	}

	var rewritten []store.Message
	if len(conv.Messages) > 0 && conv.Messages[0].Role == "system" && strings.HasPrefix(conv.Messages[0].Content, "[agents-context]") {
		rewritten = append(rewritten, conv.Messages[0])
	}

	scope := "auto"
	if manual {
		scope = "manual"
	}
	note := fmt.Sprintf("[compact] (%s) conversation history summarized (%s summary)", scope, kind)
	rewritten = append(rewritten, store.Message{Role: "system", Content: note, TimestampMs: nowMs})
	rewritten = append(rewritten, store.Message{Role: "system", Content: "[compact-summary]\n" + summary, TimestampMs: nowMs})
	rewritten = append(rewritten, tail...)

	conv.Messages = rewritten
	conv.LastTokenUsage = store.TokenUsage{}
	conv.UpdatedMs = nowMs
	return true, nil
}

// compactionSources selects the head messages §4.5 step 3 counts and keeps:
// non-empty user/assistant content that isn't itself a compact marker or a
// parsed tool call.
func compactionSources(head []store.Message) []store.Message {
	var sources []store.Message
	for _, m := range head {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if strings.HasPrefix(m.Content, "[compact]") || strings.HasPrefix(m.Content, "[compact-summary]") {
			continue
		}
		if _, isToolCall := ExtractToolCall(m.Content); isToolCall {
			continue
		}
		sources = append(sources, m)
	}
	return sources
}

const compactSystemPrompt = `You are summarizing a coding-assistant conversation so it can continue with less context. Preserve: the user's goals, constraints, decisions made, unresolved questions, and pending tasks. Do not call any tools. Write short bullet points, not prose.`

const compactUserPromptPrefix = "Summarize the conversation below:\n\n"

// modelAssistedSummary issues a non-streaming completion per §4.5 step 4.
// Returns ("", "") on any failure so the caller falls back to the local path.
func modelAssistedSummary(ctx context.Context, client llm.Client, sources []store.Message) (string, CompactionKind) {
	if client == nil {
		return "", ""
	}
	var body strings.Builder
	body.WriteString(compactUserPromptPrefix)
	for _, m := range sources {
		fmt.Fprintf(&body, "[%s] %s\n\n", m.Role, m.Content)
	}

	resp, err := client.SendMessage(ctx, []llm.Message{
		{Role: "system", Content: compactSystemPrompt},
		{Role: "user", Content: body.String()},
	})
	if err != nil {
		return "", ""
	}
	trimmed := strings.TrimSpace(resp.Content)
	if trimmed == "" {
		return "", ""
	}
	return trimmed, KindModel
}

// localFallbackSummary implements §4.5 step 5: up to the 8 most-recent
// source messages, each preview-trimmed, as "- Role: text" bullets.
func localFallbackSummary(sources []store.Message) string {
	recent := sources
	if len(recent) > KeepRecent {
		recent = recent[len(recent)-KeepRecent:]
	}

	var sb strings.Builder
	sb.WriteString("Local fallback summary:\n")
	for _, m := range recent {
		fmt.Fprintf(&sb, "- %s: %s\n", strings.Title(m.Role), previewTrim(m.Content))
	}
	return sb.String()
}

// previewTrim normalizes whitespace, drops control characters, collapses
// whitespace runs, and caps at previewChars printable characters.
func previewTrim(text string) string {
	var sb strings.Builder
	lastWasSpace := false
	for _, r := range text {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			continue
		}
		isSpace := unicode.IsSpace(r)
		if isSpace {
			if lastWasSpace {
				continue
			}
			r = ' '
		}
		sb.WriteRune(r)
		lastWasSpace = isSpace
	}
	normalized := strings.TrimSpace(sb.String())

	runes := []rune(normalized)
	if len(runes) <= previewChars {
		return normalized
	}
	return string(runes[:previewChars]) + "…"
}
