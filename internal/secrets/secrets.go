// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Recognized key files: openai-api-key, tavily-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/pkg/types"
)

// Key file names.
const (
	OpenAIKey = "openai-api-key"
	TavilyKey = "tavily-api-key"
)

// DefaultDir is the secrets directory used when none is configured.
const DefaultDir = ".secrets"

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, log *zap.Logger) (map[string]string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply fills API keys left empty in cfg from secrets. Keys already set by
// file, flag or environment win.
func Apply(cfg *types.Config, secrets map[string]string) {
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = secrets[OpenAIKey]
	}
	if cfg.Search.TavilyAPIKey == "" {
		cfg.Search.TavilyAPIKey = secrets[TavilyKey]
	}
}
