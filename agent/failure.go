package agent

import (
	"strings"

	"github.com/zolt-run/zolt/llm"
)

// FailureSource is where a stream failure originated.
type FailureSource string

const (
	SourceProvider FailureSource = "provider"
	SourceLocal    FailureSource = "local"
)

// StreamFailureInfo classifies a failed streaming call per spec §4.2.
type StreamFailureInfo struct {
	Code            string
	Message         string
	Retryable       bool
	ContextRelated  bool
	Source          FailureSource
}

var retryableTags = map[string]bool{
	"too_many_requests":   true,
	"request_timeout":     true,
	"conflict":            true,
	"bad_gateway":         true,
	"service_unavailable": true,
	"gateway_timeout":     true,
}

var retryableLocalSubstrings = []string{
	"timedout", "connection", "network", "brokenpipe", "wouldblock",
}

// ClassifyFailure implements §4.2's rules against a raw error and an
// optional provider-detail string of the form "status=TAG body=PREVIEW".
func ClassifyFailure(rawErr error) StreamFailureInfo {
	if rawErr == nil {
		return StreamFailureInfo{}
	}

	var provErr *llm.ProviderError
	if pe, ok := rawErr.(*llm.ProviderError); ok {
		provErr = pe
	}

	detail := rawErr.Error()
	if provErr != nil {
		tag := provErr.Tag
		related := contextRelated(detail)
		return StreamFailureInfo{
			Code:           tag,
			Message:        detail,
			Retryable:      retryableTags[tag] || related,
			ContextRelated: related,
			Source:         SourceProvider,
		}
	}

	name := rawErr.Error()
	related := contextRelated(name)
	return StreamFailureInfo{
		Code:           name,
		Message:        name,
		Retryable:      containsAnyFold(name, retryableLocalSubstrings) || related,
		ContextRelated: related,
		Source:         SourceLocal,
	}
}

// contextRelated implements the §4.2 context-overflow text heuristic.
func contextRelated(text string) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "context") &&
		(strings.Contains(lower, "length") || strings.Contains(lower, "window") || strings.Contains(lower, "token")) {
		return true
	}
	phrases := []string{
		"maximum context length",
		"context window",
		"too many tokens",
		"prompt is too long",
	}
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func containsAnyFold(s string, substrings []string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
