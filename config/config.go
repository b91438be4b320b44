// Package config resolves the provider/model catalog, loads .env files, and
// locates XDG-compliant state, config, and data directories.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/zolt-run/zolt/auth"
	"github.com/zolt-run/zolt/llm"
)

// ModelEntry is one selectable model within a provider.
type ModelEntry struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextWindow int    `json:"context_window"`
}

// Provider is one entry of the models.json catalog (spec §6).
type Provider struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	APIBase string       `json:"api_base"`
	EnvVars []string     `json:"env_vars"`
	Models  []ModelEntry `json:"models"`
}

// Catalog is the full provider/model catalog read from models.json.
type Catalog struct {
	Providers []Provider `json:"providers"`
}

// ByID returns the provider with the given id, or nil.
func (c *Catalog) ByID(id string) *Provider {
	for i := range c.Providers {
		if c.Providers[i].ID == id {
			return &c.Providers[i]
		}
	}
	return nil
}

// ModelByID returns the model entry for modelID within the provider, or nil.
func (p *Provider) ModelByID(modelID string) *ModelEntry {
	if p == nil {
		return nil
	}
	for i := range p.Models {
		if p.Models[i].ID == modelID {
			return &p.Models[i]
		}
	}
	return nil
}

// defaultCatalog is the built-in catalog used when no models.json cache
// exists yet (spec §4.7's six providers). A refresh command is expected to
// replace this with live data; the module ships a usable baseline so it
// runs end to end without a network fetch on first launch.
func defaultCatalog() *Catalog {
	return &Catalog{Providers: []Provider{
		{
			ID: "openai", Name: "OpenAI", APIBase: "https://api.openai.com/v1",
			EnvVars: []string{"OPENAI_API_KEY"},
			Models: []ModelEntry{
				{ID: "gpt-4o-mini", Name: "GPT-4o Mini", ContextWindow: 128000},
				{ID: "gpt-5.1-codex-mini", Name: "GPT-5.1 Codex Mini", ContextWindow: 400000},
				{ID: "gpt-5.2-codex", Name: "GPT-5.2 Codex", ContextWindow: 400000},
			},
		},
		{
			ID: "anthropic", Name: "Anthropic", APIBase: "https://api.anthropic.com/v1",
			EnvVars: []string{"ANTHROPIC_API_KEY"},
			Models: []ModelEntry{
				{ID: "claude-opus-4-6", Name: "Claude Opus 4.6", ContextWindow: 200000},
				{ID: "claude-sonnet-4-5-20250929", Name: "Claude Sonnet 4.5", ContextWindow: 200000},
				{ID: "claude-haiku-4-5-20251001", Name: "Claude Haiku 4.5", ContextWindow: 200000},
			},
		},
		{
			ID: "openrouter", Name: "OpenRouter", APIBase: "https://openrouter.ai/api/v1",
			EnvVars: []string{"OPENROUTER_API_KEY"},
			Models: []ModelEntry{
				{ID: "openrouter/auto", Name: "Auto", ContextWindow: 128000},
			},
		},
		{
			ID: "opencode", Name: "opencode", APIBase: "https://opencode.ai/zen/v1",
			EnvVars: []string{"OPENCODE_API_KEY"},
			Models: []ModelEntry{
				{ID: "opencode/grok-code", Name: "Grok Code", ContextWindow: 256000},
			},
		},
		{
			ID: "google", Name: "Google", APIBase: "https://generativelanguage.googleapis.com/v1beta/openai",
			EnvVars: []string{"GOOGLE_GENERATIVE_AI_API_KEY", "GEMINI_API_KEY"},
			Models: []ModelEntry{
				{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", ContextWindow: 1000000},
			},
		},
		{
			ID: "zenmux", Name: "ZenMux", APIBase: "https://zenmux.ai/api/v1",
			EnvVars: []string{"ZENMUX_API_KEY"},
			Models: []ModelEntry{
				{ID: "zenmux/default", Name: "Default", ContextWindow: 128000},
			},
		},
	}}
}

// LoadCatalog reads the models.json cache from dataDir, falling back to the
// built-in catalog when the cache is absent or unparseable (the refresh
// command owns repopulating it; the orchestrator only ever reads).
func LoadCatalog(dataDir string) *Catalog {
	data, err := os.ReadFile(filepath.Join(dataDir, "models.json"))
	if err != nil {
		return defaultCatalog()
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil || len(c.Providers) == 0 {
		return defaultCatalog()
	}
	return &c
}

// SaveCatalog writes the models.json cache atomically-enough for a refresh
// command (truncate+write+close, per spec §6's relaxed durability note).
func SaveCatalog(dataDir string, c *Catalog) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, "models.json"), data, 0o644)
}

// LoadDotEnv loads a .env file in the working directory via godotenv,
// leaving any already-set environment variables untouched (godotenv.Load's
// default behavior). A missing .env file is not an error.
func LoadDotEnv(workDir string) {
	path := filepath.Join(workDir, ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// xdgDir resolves $envVar/appName if envVar is set to an absolute path,
// otherwise home/fallback/appName.
func xdgDir(envVar, fallback, appName string) (string, error) {
	if dir := os.Getenv(envVar); dir != "" && filepath.IsAbs(dir) {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, fallback, appName), nil
}

// ConfigDir returns $XDG_CONFIG_HOME/zolt or ~/.config/zolt.
func ConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config", "zolt")
}

// DataDir returns $XDG_DATA_HOME/zolt or ~/.local/share/zolt. This is where
// models.json, state.json and the skills subtree live.
func DataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", ".local/share", "zolt")
}

// StatePath returns the path to the persisted conversation state.json,
// falling back to a workspace-local .zig-ai directory when the XDG data
// directory cannot be created (spec §7's local-I/O fallback).
func StatePath() (string, error) {
	dataDir, err := DataDir()
	if err == nil {
		if mkErr := os.MkdirAll(dataDir, 0o755); mkErr == nil {
			return filepath.Join(dataDir, "state.json"), nil
		}
	}
	fallback := filepath.Join(".zig-ai")
	if mkErr := os.MkdirAll(fallback, 0o755); mkErr != nil {
		return "", fmt.Errorf("no writable state directory: %w", mkErr)
	}
	return filepath.Join(fallback, "state.json"), nil
}

// CredentialsPath returns the legacy-style credentials env file within the
// config directory, still honored as an additional .env-shaped source.
func CredentialsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "credentials"), nil
}

// LoadCredentialsFile loads $ConfigDir/credentials as a .env-shaped file,
// in addition to the working directory's .env.
func LoadCredentialsFile() {
	path, err := CredentialsPath()
	if err != nil {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// DefaultProviderID is used when no provider has been selected yet.
const DefaultProviderID = "openai"

// DefaultModelID returns the first model of the given provider, or "".
func (c *Catalog) DefaultModelID(providerID string) string {
	p := c.ByID(providerID)
	if p == nil || len(p.Models) == 0 {
		return ""
	}
	return p.Models[0].ID
}

// ResolveAuthMode reads OPENAI_AUTH, defaulting to "auto" (spec §4.7).
func ResolveAuthMode() string {
	mode := strings.TrimSpace(os.Getenv("OPENAI_AUTH"))
	if mode == "" {
		return "auto"
	}
	return mode
}

// defaultMaxTokens mirrors the teacher's flat completion-length cap; the
// catalog does not vary this per model.
const defaultMaxTokens = 16384

// chatGPTAccountHeader is the header codex/opencode's backend expects
// carrying the extracted subscription account id (spec §4.7 S4).
const chatGPTAccountHeader = "chatgpt-account-id"

// BuildClient resolves credentials for providerID/modelID against catalog
// and constructs the matching llm.Client. anthropic gets its own wire
// format; every other catalog provider speaks the OpenAI-compatible chat
// completions shape against its own api_base (spec §4.7's provider list).
func BuildClient(catalog *Catalog, providerID, modelID string) (llm.Client, error) {
	provider := catalog.ByID(providerID)
	if provider == nil {
		return nil, fmt.Errorf("unknown provider %q", providerID)
	}
	model := provider.ModelByID(modelID)
	contextWindow := 0
	if model != nil {
		contextWindow = model.ContextWindow
	}

	creds, err := auth.Resolve(providerID, provider.EnvVars, auth.AuthMode(ResolveAuthMode()))
	if err != nil {
		return nil, err
	}

	if providerID == "anthropic" {
		return llm.NewAnthropicClient(creds.APIKey, modelID, defaultMaxTokens, contextWindow), nil
	}

	client := llm.NewOpenAIClient(creds.APIKey, modelID, defaultMaxTokens, contextWindow, provider.APIBase)
	if creds.PreferResponsesAPI {
		headers := map[string]string{}
		if creds.ChatGPTAccountID != "" {
			headers[chatGPTAccountHeader] = creds.ChatGPTAccountID
		}
		client = client.WithSubscriptionAuth(creds.BaseURLOverride, headers)
	}
	return client, nil
}
