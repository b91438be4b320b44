package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// decodeJWTClaims base64url-decodes and JSON-parses the middle segment of a
// JWT without validating its signature — per spec, extraction of a single
// claim, not verification.
func decodeJWTClaims(token string) (map[string]any, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("not a JWT: expected 3 segments, got %d", len(parts))
	}
	segment := parts[1]
	if m := len(segment) % 4; m != 0 {
		segment += strings.Repeat("=", 4-m)
	}
	raw, err := base64.URLEncoding.DecodeString(segment)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("base64url decode JWT payload: %w", err)
		}
	}
	var claims map[string]any
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("parse JWT payload: %w", err)
	}
	return claims, nil
}

// chatGPTAccountIDFromClaims looks for the account id in three places, in
// the order the codex subscription token is known to carry it.
func chatGPTAccountIDFromClaims(claims map[string]any) string {
	if id, ok := claims["chatgpt_account_id"].(string); ok && id != "" {
		return id
	}
	if auth, ok := claims["https://api.openai.com/auth"].(map[string]any); ok {
		if id, ok := auth["chatgpt_account_id"].(string); ok && id != "" {
			return id
		}
	}
	if orgs, ok := claims["organizations"].([]any); ok {
		for _, o := range orgs {
			if org, ok := o.(map[string]any); ok {
				if id, ok := org["id"].(string); ok && id != "" {
					return id
				}
			}
		}
	}
	return ""
}
