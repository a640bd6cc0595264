package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// dotEnvSearchDepth bounds how many parent directories are searched for .env.
const dotEnvSearchDepth = 3

// LoadFile decodes the TOML file at path, fills defaults and applies
// environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		slog.Warn("unknown config keys ignored", "component", "config", "path", path, "keys", fmt.Sprint(undecoded))
	}

	// Zero is meaningful for these, so only default them when absent.
	if !meta.IsDefined("llm", "min_messages") {
		cfg.LLM.MinMessages = Default().LLM.MinMessages
	}
	if !meta.IsDefined("llm", "temperature") {
		cfg.LLM.Temperature = Default().LLM.Temperature
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg, nil
}

// CreateDefaultConfig writes the commented template to path with 0600
// permissions, creating parent directories.
func CreateDefaultConfig(path string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString(GenerateConfigTemplate()); err != nil {
		return fmt.Errorf("failed to write config template: %w", err)
	}
	slog.Info("created default config", "component", "config", "path", path)
	return nil
}

// loadDotEnv loads the nearest .env from the working directory or one of its
// parents. Variables already in the environment win.
func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for range dotEnvSearchDepth + 1 {
		candidate := filepath.Join(dir, ".env")
		if FileExists(candidate) {
			if err := godotenv.Load(candidate); err != nil {
				slog.Warn("failed to load .env", "component", "config", "path", candidate, "error", err)
			}
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
