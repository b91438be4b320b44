package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// codexAuthFile is the subset of $CODEX_HOME/auth.json (or ~/.codex/auth.json)
// the resolver reads: an access token used as the bearer credential and an
// id token whose middle segment carries the ChatGPT account id.
type codexAuthFile struct {
	Tokens struct {
		AccessToken string `json:"access_token"`
		IDToken     string `json:"id_token"`
	} `json:"tokens"`
}

func codexAuthPath() string {
	if home := os.Getenv("CODEX_HOME"); home != "" {
		return filepath.Join(home, "auth.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".codex", "auth.json")
}

func codexAttempt() (*Credentials, error) {
	path := codexAuthPath()
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	var parsed codexAuthFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, nil
	}
	if parsed.Tokens.AccessToken == "" {
		return nil, nil
	}

	creds := &Credentials{
		APIKey:             parsed.Tokens.AccessToken,
		PreferResponsesAPI: true,
		BaseURLOverride:    codexBackendBaseURL,
	}
	if parsed.Tokens.IDToken != "" {
		if claims, err := decodeJWTClaims(parsed.Tokens.IDToken); err == nil {
			creds.ChatGPTAccountID = chatGPTAccountIDFromClaims(claims)
		}
	}
	return creds, nil
}

// opencodeAuthFile mirrors the shape opencode writes to its auth.json: a map
// of provider id to either an api-key entry or an oauth entry.
type opencodeAuthFile map[string]struct {
	Type    string `json:"type"`
	Key     string `json:"key"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func opencodeAuthPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "opencode", "auth.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "opencode", "auth.json")
}

func opencodeAttempt() (*Credentials, error) {
	path := opencodeAuthPath()
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	var parsed opencodeAuthFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, nil
	}
	entry, ok := parsed["openai"]
	if !ok {
		return nil, nil
	}

	switch entry.Type {
	case "api":
		if entry.Key == "" {
			return nil, nil
		}
		return &Credentials{APIKey: entry.Key}, nil
	case "oauth":
		if entry.Access == "" {
			return nil, nil
		}
		creds := &Credentials{
			APIKey:             entry.Access,
			PreferResponsesAPI: true,
			BaseURLOverride:    codexBackendBaseURL,
		}
		if claims, err := decodeJWTClaims(entry.Access); err == nil {
			creds.ChatGPTAccountID = chatGPTAccountIDFromClaims(claims)
		}
		return creds, nil
	default:
		return nil, nil
	}
}
