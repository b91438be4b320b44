package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AnthropicClient implements Client against the Anthropic messages API.
type AnthropicClient struct {
	apiKey        string
	model         string
	maxTokens     int
	baseURL       string
	contextWindow int
	http          *http.Client
}

func NewAnthropicClient(apiKey, model string, maxTokens, contextWindow int) *AnthropicClient {
	return &AnthropicClient{
		apiKey:        apiKey,
		model:         model,
		maxTokens:     maxTokens,
		baseURL:       "https://api.anthropic.com/v1",
		contextWindow: contextWindow,
		http:          &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *AnthropicClient) ContextWindow() int { return c.contextWindow }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string              `json:"model"`
	Messages  []anthropicMessage  `json:"messages"`
	System    string              `json:"system,omitempty"`
	MaxTokens int                 `json:"max_tokens"`
	Stream    bool                `json:"stream"`
}

// anthropicEvent covers the union of SSE event payloads the messages API
// emits; unused fields are simply left zero for a given event type.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type         string `json:"type"`
		Text         string `json:"text"`
		StopReason   string `json:"stop_reason"`
	} `json:"delta"`
	Message struct {
		Usage anthropicUsage `json:"usage"`
	} `json:"message"`
	Usage anthropicUsage `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type anthropicUsage struct {
	InputTokens              int `json:"input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	OutputTokens             int `json:"output_tokens"`
}

func (u anthropicUsage) toUsage() Usage {
	return Usage{
		InputTokens:       u.InputTokens,
		CachedInputTokens: u.CacheReadInputTokens,
		OutputTokens:      u.OutputTokens,
		TotalTokens:       u.InputTokens + u.OutputTokens,
	}
}

// splitSystem pulls any leading system-role messages out into Anthropic's
// separate top-level "system" field, since its messages array only accepts
// user/assistant turns.
func splitSystem(messages []Message) (string, []anthropicMessage) {
	var system strings.Builder
	out := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
			continue
		}
		out = append(out, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return system.String(), out
}

func (c *AnthropicClient) newRequest(ctx context.Context, messages []Message, stream bool) (*http.Request, error) {
	system, turns := splitSystem(messages)
	body := anthropicRequest{
		Model:     c.model,
		Messages:  turns,
		System:    system,
		MaxTokens: c.maxTokens,
		Stream:    stream,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	return req, nil
}

func (c *AnthropicClient) StreamMessage(ctx context.Context, messages []Message) (<-chan StreamEvent, error) {
	req, err := c.newRequest(ctx, messages, true)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := doWithRetry(ctx, defaultRetryConfig(), func() (*http.Response, error) {
		return c.http.Do(req)
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
		resp.Body.Close()
		return nil, &ProviderError{Tag: StatusTagForCode(resp.StatusCode), Body: string(body)}
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		var usage Usage
		for scanner.Scan() {
			if ctx.Err() != nil {
				events <- StreamEvent{Err: ctx.Err()}
				return
			}
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				continue
			}
			var ev anthropicEvent
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				continue
			}
			switch ev.Type {
			case "message_start":
				usage = ev.Message.Usage.toUsage()
			case "content_block_delta":
				if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
					events <- StreamEvent{TextDelta: ev.Delta.Text}
				}
			case "message_delta":
				u := ev.Usage.toUsage()
				usage.OutputTokens = u.OutputTokens
				usage.TotalTokens = usage.InputTokens + usage.OutputTokens
				se := StreamEvent{Usage: &usage}
				if ev.Delta.StopReason != "" {
					se.FinishReason = ev.Delta.StopReason
				}
				events <- se
			case "message_stop":
				events <- StreamEvent{Done: true}
				return
			case "error":
				events <- StreamEvent{Err: &ProviderError{Tag: ev.Error.Type, Body: ev.Error.Message}}
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			events <- StreamEvent{Err: err}
		}
	}()
	return events, nil
}

func (c *AnthropicClient) SendMessage(ctx context.Context, messages []Message) (*Response, error) {
	events, err := c.StreamMessage(ctx, messages)
	if err != nil {
		return nil, err
	}
	return AccumulateStream(events, nil)
}
