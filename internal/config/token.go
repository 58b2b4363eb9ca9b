package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const tokenFile = "api_token"

// APIToken returns the bearer token guarding the HTTP API. An explicit
// ELICIT_API_TOKEN wins; otherwise a token is generated once and kept in the
// data directory so the CLI and the server agree on it.
func APIToken(cfg Config) (string, error) {
	if cfg.Server.APIToken != "" {
		return cfg.Server.APIToken, nil
	}

	p := filepath.Join(cfg.Storage.DataDir, tokenFile)
	data, err := os.ReadFile(p)
	if err == nil {
		if tok := strings.TrimSpace(string(data)); tok != "" {
			return tok, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading api token: %w", err)
	}

	tok := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o700); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}
	if err := os.WriteFile(p, []byte(tok+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("writing api token: %w", err)
	}
	return tok, nil
}
