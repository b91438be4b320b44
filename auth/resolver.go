// Package auth resolves provider API credentials from the environment and,
// for OpenAI, from subscription-token auth files shared with the codex and
// opencode CLIs.
package auth

import (
	"fmt"
	"os"
)

// Credentials is what the resolver hands back to the llm package for
// constructing a provider client.
type Credentials struct {
	APIKey             string
	PreferResponsesAPI bool
	BaseURLOverride    string
	ChatGPTAccountID   string
}

// AuthMode selects how the openai provider chooses between a plain API key
// and a ChatGPT subscription token.
type AuthMode string

const (
	AuthModeAuto    AuthMode = "auto"
	AuthModeAPIKey  AuthMode = "api_key"
	AuthModeCodex   AuthMode = "codex"
)

// codexBackendBaseURL is the responses-API endpoint used when a ChatGPT
// subscription token is in play instead of a plain API key.
const codexBackendBaseURL = "https://chatgpt.com/backend-api/codex"

// fallbackEnvVars is the fixed per-provider table consulted when the model
// catalog's declared env-var names are unset.
var fallbackEnvVars = map[string][]string{
	"opencode":   {"OPENCODE_API_KEY"},
	"openai":     {"OPENAI_API_KEY"},
	"openrouter": {"OPENROUTER_API_KEY"},
	"anthropic":  {"ANTHROPIC_API_KEY"},
	"google":     {"GOOGLE_GENERATIVE_AI_API_KEY", "GEMINI_API_KEY"},
	"zenmux":     {"ZENMUX_API_KEY"},
}

// Resolve tries, in order: the catalog's declared env vars, then the fixed
// fallback table for providerID. For providerID "openai" with no plain key
// resolved, it falls through to the subscription-token flow under mode.
func Resolve(providerID string, catalogEnvVars []string, mode AuthMode) (*Credentials, error) {
	if key := firstSetEnv(catalogEnvVars); key != "" {
		return &Credentials{APIKey: key}, nil
	}
	if key := firstSetEnv(fallbackEnvVars[providerID]); key != "" {
		return &Credentials{APIKey: key}, nil
	}
	if providerID != "openai" {
		return nil, fmt.Errorf("no credential found for provider %q: set one of %v", providerID, fallbackEnvVars[providerID])
	}
	return resolveOpenAI(mode)
}

// resolveOpenAI implements the openai-specific auto/api_key/codex ordering
// described for the subscription-token flow.
func resolveOpenAI(mode AuthMode) (*Credentials, error) {
	if mode == "" {
		mode = AuthMode(os.Getenv("OPENAI_AUTH"))
	}
	if mode == "" {
		mode = AuthModeAuto
	}

	attempts := []func() (*Credentials, error){apiKeyAttempt, codexAttempt, opencodeAttempt}
	if mode == AuthModeCodex {
		attempts = []func() (*Credentials, error){codexAttempt, opencodeAttempt, apiKeyAttempt}
	} else if mode == AuthModeAPIKey {
		attempts = []func() (*Credentials, error){apiKeyAttempt}
	}

	for _, attempt := range attempts {
		creds, err := attempt()
		if err != nil {
			continue
		}
		if creds != nil {
			return creds, nil
		}
	}
	return nil, fmt.Errorf("no OpenAI credential found: set OPENAI_API_KEY or sign in via codex/opencode")
}

func apiKeyAttempt() (*Credentials, error) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return &Credentials{APIKey: key}, nil
	}
	return nil, nil
}

func firstSetEnv(names []string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
