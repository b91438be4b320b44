// Package agent implements C10: the streaming dialogue loop that assembles
// request messages, invokes the provider, classifies failures, detects
// inline tool-call markers in the assistant's output, dispatches them to
// the tool registry, and re-streams until a user-facing answer emerges or a
// safety guard stops it.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zolt-run/zolt/contextinject"
	"github.com/zolt-run/zolt/interrupt"
	"github.com/zolt-run/zolt/llm"
	"github.com/zolt-run/zolt/skills"
	"github.com/zolt-run/zolt/store"
	"github.com/zolt-run/zolt/tools"
)

// MaxToolIterations bounds the number of tool round-trips in a single turn
// (spec §4.1 step 7: "up to 4 iterations").
const MaxToolIterations = 4

// AutoCompactMessageThreshold and AutoCompactPercentThreshold gate the
// pre-flight compaction check in step 1.
const (
	AutoCompactMessageThreshold = 10
	AutoCompactPercentThreshold = 0.15
)

// GuardReason records why the tool loop stopped early.
type GuardReason string

const (
	GuardNone             GuardReason = "none"
	GuardRepeatedToolCall GuardReason = "repeated_tool_call"
	GuardMaxIterations    GuardReason = "max_iterations"
)

// Observer receives typed turn events; used both by the interactive TUI
// renderer and by headless (`zolt run`) mode per spec §4.1's "Headless mode"
// note. All methods are optional no-ops for callers that only need some.
type Observer interface {
	OnToken(text string)
	OnToolCall(name tools.Name, payload string)
	OnToolResult(name tools.Name, result string)
	OnFinal(text string)
}

// NoopObserver implements Observer with all no-ops.
type NoopObserver struct{}

func (NoopObserver) OnToken(string)                    {}
func (NoopObserver) OnToolCall(tools.Name, string)      {}
func (NoopObserver) OnToolResult(tools.Name, string)    {}
func (NoopObserver) OnFinal(string)                     {}

// Agent orchestrates one conversation's turns against a provider client and
// a tool registry.
type Agent struct {
	Client      llm.Client
	Tools       *tools.Registry
	Skills      *skills.Catalog
	WorkDir     string
	AutoCompact bool
	Logger      zerolog.Logger

	// CredentialErr, when non-nil, short-circuits every turn with a
	// "[local] Missing ..." message — set once at construction (or on
	// provider/model switch) rather than re-resolved per turn, since
	// credential selection is a session-level choice already baked into
	// the constructed Client.
	CredentialErr error

	// Interrupt is optional; when set, its Poll method is consulted after
	// every streamed token (§4.8/§9's token-callback suspension point).
	Interrupt *interrupt.Controller

	nowMs func() int64
}

// New builds an Agent. nowMs is injectable for tests; production callers
// pass time.Now().UnixMilli.
func New(client llm.Client, registry *tools.Registry, catalog *skills.Catalog, workDir string, autoCompact bool, nowMs func() int64) *Agent {
	return &Agent{
		Client:      client,
		Tools:       registry,
		Skills:      catalog,
		WorkDir:     workDir,
		AutoCompact: autoCompact,
		nowMs:       nowMs,
	}
}

func (a *Agent) now() int64 {
	if a.nowMs != nil {
		return a.nowMs()
	}
	return time.Now().UnixMilli()
}

// Turn runs the full §4.1 procedure for one user prompt against conv,
// mutating it in place, and returns the user-facing answer text.
func (a *Agent) Turn(ctx context.Context, conv *store.Conversation, prompt string, observer Observer) (string, error) {
	if observer == nil {
		observer = NoopObserver{}
	}

	// Step 1: pre-flight compaction.
	if a.AutoCompact && len(conv.Messages) >= AutoCompactMessageThreshold {
		if a.percentRemaining(conv) <= AutoCompactPercentThreshold {
			_, _ = Compact(ctx, a.Client, conv, false, a.now())
		}
	}

	// Step 2: auto-title.
	if len(conv.Messages) == 0 && conv.Title == store.DefaultTitle {
		conv.Title = normalizeWhitespace(prompt)
	}

	// Step 3: first-turn context injection.
	if len(conv.Messages) == 0 {
		if _, content, err := contextinject.FindAgentsFile(a.WorkDir); err == nil && content != "" {
			conv.Messages = append(conv.Messages, store.Message{
				Role: "system", Content: contextinject.AgentsContextMessage(content), TimestampMs: a.now(),
			})
		}
		if a.Skills != nil {
			conv.Messages = append(conv.Messages, store.Message{
				Role: "system", Content: contextinject.SkillsContextMessage(a.Skills), TimestampMs: a.now(),
			})
		}
	}

	// Step 4: per-prompt enrichment.
	enrichments := contextinject.Enrich(prompt, a.WorkDir, a.Skills)

	// Step 5: append user message, enrichment messages, empty assistant.
	conv.Messages = append(conv.Messages, store.Message{Role: "user", Content: prompt, TimestampMs: a.now()})
	for _, e := range enrichments {
		conv.Messages = append(conv.Messages, store.Message{Role: "system", Content: e.Message, TimestampMs: a.now()})
	}
	assistantIdx := len(conv.Messages)
	conv.Messages = append(conv.Messages, store.Message{Role: "assistant", Content: "", TimestampMs: a.now()})

	// Step 6: credentials.
	if a.CredentialErr != nil {
		conv.Messages[assistantIdx].Content = "[local] Missing " + a.CredentialErr.Error()
		observer.OnFinal(conv.Messages[assistantIdx].Content)
		return conv.Messages[assistantIdx].Content, nil
	}

	guard := GuardNone
	anyToolExecuted := false
	var lastToolResult string
	var lastToolName tools.Name
	seenSignatures := make(map[string]bool)

	streamFailed := false
	interrupted := false
	answered := false

iterations:
	for iteration := 0; iteration < MaxToolIterations; iteration++ {
		requestMessages := a.buildRequestMessages(conv, assistantIdx, iteration == 0)

		text, failInfo, interruptErr := a.streamOnce(ctx, requestMessages, conv, assistantIdx, observer)
		if interruptErr != nil {
			interrupted = true
			conv.Messages[assistantIdx].Content += "\n[local] Generation interrupted by user (Esc Esc)."
			break iterations
		}
		if failInfo != nil {
			streamFailed = true
			conv.Messages[assistantIdx].Content = fmt.Sprintf("[local] Request failed (%s): %s", failInfo.Code, failInfo.Message)
			break iterations
		}

		tc, isToolCall := ExtractToolCall(text)
		if !isToolCall {
			answered = true
			break iterations
		}

		conv.Messages[assistantIdx].Content = AuditLine(tc.Name)
		observer.OnToolCall(tc.Name, tc.Payload)

		result := a.Tools.Execute(tc.Name, tc.Payload)
		observer.OnToolResult(tc.Name, result)

		anyToolExecuted = true
		lastToolResult = result
		lastToolName = tc.Name

		signature := string(tc.Name) + "\x00" + tc.Payload + "\x00" + result
		if seenSignatures[signature] {
			guard = GuardRepeatedToolCall
			conv.Messages = append(conv.Messages, store.Message{
				Role: "system", Content: result, TimestampMs: a.now(),
			})
			break iterations
		}
		seenSignatures[signature] = true

		conv.Messages = append(conv.Messages, store.Message{Role: "system", Content: result, TimestampMs: a.now()})
		assistantIdx = len(conv.Messages)
		conv.Messages = append(conv.Messages, store.Message{Role: "assistant", Content: "", TimestampMs: a.now()})

		if iteration == MaxToolIterations-1 {
			guard = GuardMaxIterations
		}
	}

	// Step 8: post-loop finalization.
	if anyToolExecuted && !answered && !streamFailed && !interrupted {
		conv.Messages = append(conv.Messages, store.Message{
			Role: "system", Content: toolResultGuardMessage(guard), TimestampMs: a.now(),
		})
		assistantIdx = len(conv.Messages)
		conv.Messages = append(conv.Messages, store.Message{Role: "assistant", Content: "", TimestampMs: a.now()})

		requestMessages := a.buildRequestMessages(conv, assistantIdx, false)
		text, failInfo, interruptErr := a.streamOnce(ctx, requestMessages, conv, assistantIdx, observer)
		if interruptErr != nil {
			conv.Messages[assistantIdx].Content += "\n[local] Generation interrupted by user (Esc Esc)."
		} else if failInfo != nil {
			conv.Messages[assistantIdx].Content = fmt.Sprintf("[local] Request failed (%s): %s", failInfo.Code, failInfo.Message)
		} else {
			_ = text
		}
	}

	// Step 9: sanitize final answer.
	final := conv.Messages[len(conv.Messages)-1].Content
	if _, stillToolCall := ExtractToolCall(final); strings.TrimSpace(final) == "" || stillToolCall {
		final = synthesizeFallback(anyToolExecuted, lastToolName, lastToolResult, guard)
		conv.Messages[len(conv.Messages)-1].Content = final
	}

	// Step 10: persist is the caller's responsibility (store.Save), since
	// the path/atomicity policy lives at the state-file layer, not here.
	conv.UpdatedMs = a.now()
	observer.OnFinal(final)
	return final, nil
}

// percentRemaining estimates context-window headroom using the
// conversation's last recorded token usage, via the spec's named
// percent_of_context_window_remaining metric (store.TokenUsage's
// baseline-reserving PercentOfContextWindowRemaining), returned as a 0..1
// fraction. An unknown window (0, never set) reads as 100% remaining and
// skips compaction rather than tripping the baseline-below-window guard.
func (a *Agent) percentRemaining(conv *store.Conversation) float64 {
	window := conv.ModelContextWindow
	if window == 0 {
		window = a.Client.ContextWindow()
	}
	if window <= 0 {
		return 1.0
	}
	return float64(conv.LastTokenUsage.PercentOfContextWindowRemaining(window)) / 100
}

// buildRequestMessages assembles [tool-system-prompt?] + conversation prefix
// excluding the trailing empty assistant placeholder (§4.1 step 7a).
func (a *Agent) buildRequestMessages(conv *store.Conversation, assistantIdx int, withToolPrompt bool) []llm.Message {
	var out []llm.Message
	if withToolPrompt {
		out = append(out, llm.Message{Role: "system", Content: toolSystemPrompt(a.WorkDir)})
	}
	for i, m := range conv.Messages {
		if i == assistantIdx {
			continue
		}
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// streamOnce drives one streamAssistantOnce invocation including the
// single-retry policy of §4.2. Returns the accumulated text, a non-nil
// StreamFailureInfo on unrecoverable failure, or a non-nil error on
// interruption.
func (a *Agent) streamOnce(ctx context.Context, messages []llm.Message, conv *store.Conversation, assistantIdx int, observer Observer) (string, *StreamFailureInfo, error) {
	text, usage, finishReason, err := a.streamAttempt(ctx, messages, conv, assistantIdx, observer)
	if err == interrupt.ErrStreamInterrupted {
		return text, nil, err
	}
	if err == nil {
		if usage.TotalTokens > 0 {
			conv.LastTokenUsage = usage
			conv.TotalTokenUsage.Add(usage)
		}
		_ = finishReason
		return text, nil, nil
	}

	info := ClassifyFailure(err)
	if info.Retryable {
		if info.ContextRelated && a.AutoCompact {
			_, _ = Compact(ctx, a.Client, conv, false, a.now())
		}
		// Discard any partial text the failed attempt already streamed into
		// the assistant message before retrying, so the retry's deltas
		// don't get appended after stale leftovers.
		conv.Messages[assistantIdx].Content = ""
		retryText, retryUsage, _, retryErr := a.streamAttempt(ctx, messages, conv, assistantIdx, observer)
		if retryErr == interrupt.ErrStreamInterrupted {
			return retryText, nil, retryErr
		}
		if retryErr == nil {
			if retryUsage.TotalTokens > 0 {
				conv.LastTokenUsage = retryUsage
				conv.TotalTokenUsage.Add(retryUsage)
			}
			return retryText, nil, nil
		}
		retryInfo := ClassifyFailure(retryErr)
		return "", &retryInfo, nil
	}
	return "", &info, nil
}

func (a *Agent) streamAttempt(ctx context.Context, messages []llm.Message, conv *store.Conversation, assistantIdx int, observer Observer) (string, llm.Usage, string, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events, err := a.Client.StreamMessage(streamCtx, messages)
	if err != nil {
		return "", llm.Usage{}, "", err
	}

	var interruptErr error
	resp, err := llm.AccumulateStream(events, func(delta string) {
		if interruptErr != nil {
			return
		}
		conv.Messages[assistantIdx].Content += delta
		observer.OnToken(delta)
		if a.Interrupt != nil {
			if _, suspend, pollErr := a.Interrupt.Poll(); pollErr != nil {
				interruptErr = pollErr
				cancel()
			} else if suspend {
				// A Ctrl-Z suspend request reported by Poll is ignored:
				// neither the orchestrator nor cmd/zolt acts on it.
				_ = suspend
			}
		}
	})
	if interruptErr != nil {
		return conv.Messages[assistantIdx].Content, llm.Usage{}, "", interruptErr
	}
	if err != nil {
		return "", llm.Usage{}, "", err
	}
	return resp.Content, resp.Usage, resp.FinishReason, nil
}

func toolResultGuardMessage(guard GuardReason) string {
	switch guard {
	case GuardRepeatedToolCall:
		return "[tool-result] A repeated tool-call loop was detected. Stop calling tools and answer with what you have."
	case GuardMaxIterations:
		return "[tool-result] Tool iteration limit was reached. Stop calling tools and answer with what you have."
	default:
		return "[tool-result] Tool execution completed. Provide a final user-facing answer now. Do not call more tools."
	}
}

// synthesizeFallback builds §4.1 step 9's synthesized answer when the final
// assistant text is empty or still parses as a tool marker.
func synthesizeFallback(anyToolExecuted bool, name tools.Name, result string, guard GuardReason) string {
	if !anyToolExecuted {
		return "No user-facing response was produced (reason: " + string(guardOrNone(guard)) + ")."
	}
	summary := summarizeResultLine(result)
	msg := fmt.Sprintf("I completed `%s`. Last tool result: %s.", AuditLine(name), summary)
	if guard != GuardNone {
		msg += fmt.Sprintf(" I stopped further tool calls (%s)…", guard)
	}
	return msg
}

func guardOrNone(g GuardReason) GuardReason {
	if g == "" {
		return GuardNone
	}
	return g
}

// summarizeResultLine picks the first meaningful line of a tool result
// envelope per §4.1 step 9.
func summarizeResultLine(result string) string {
	for _, line := range strings.Split(result, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "[") {
			continue
		}
		if strings.HasPrefix(line, "state:") {
			return "state:" + strings.TrimSpace(strings.TrimPrefix(line, "state:"))
		}
		if strings.HasPrefix(line, "error:") {
			return "error:" + strings.TrimSpace(strings.TrimPrefix(line, "error:"))
		}
		if len(line) > 120 {
			return line[:120] + "…"
		}
		return line
	}
	return "(no output)"
}

func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// toolSystemPrompt documents the eleven marker envelopes the model may emit.
func toolSystemPrompt(workDir string) string {
	return fmt.Sprintf(`You are Zolt, an AI coding assistant running in the terminal. Use the tools below by emitting an envelope as the ENTIRE content of your message — no other text in that message.

Working directory: %s

Available tools (tag form shown; a fenced code block with the lowercase language tag works the same way):

<LIST_DIR>{"path":".","recursive":false}</LIST_DIR>
<READ_FILE>{"path":"..."}</READ_FILE>
<GREP_FILES>{"query":"...","path":"."}</GREP_FILES>
<PROJECT_SEARCH>{"query":"..."}</PROJECT_SEARCH>
<EXEC_COMMAND>{"cmd":"..."}</EXEC_COMMAND>
<WRITE_STDIN>{"session_id":1,"chars":"..."}</WRITE_STDIN>
<WEB_SEARCH>{"query":"..."}</WEB_SEARCH>
<VIEW_IMAGE>{"path":"..."}</VIEW_IMAGE>
<SKILL>skill-name</SKILL>
READ: rg pattern path
<APPLY_PATCH>
*** Begin Patch
*** Add File: path
+content
*** End Patch
</APPLY_PATCH>

Emit exactly one tool envelope per turn. When you have gathered enough information, answer the user directly with no envelope.`, workDir)
}
