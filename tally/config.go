package tally

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const defaultConfigFile = "config.json"

// Environment keys read by ApplyEnv.
const (
	EnvModel     = "NERTALLY_MODEL"
	EnvOrtLib    = "NERTALLY_ORT_LIB"
	EnvEngine    = "NERTALLY_ENGINE"
	EnvMaxSeqLen = "NERTALLY_MAX_SEQ_LEN"
)

var envKeys = []string{EnvModel, EnvOrtLib, EnvEngine, EnvMaxSeqLen}

// LoadConfig loads configuration from the given path or the default config.json.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = defaultConfigFile
	}
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// SaveConfig persists configuration to disk.
func SaveConfig(path string, cfg Config) error {
	if path == "" {
		path = defaultConfigFile
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	cfg.ApplyDefaults()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// LoadEnv reads the dotenv file at path, if present, and overlays the
// process environment for the keys nertally understands.
func LoadEnv(path string) (map[string]string, error) {
	env := make(map[string]string)
	if path != "" {
		vals, err := godotenv.Read(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read env file: %w", err)
		}
		for k, v := range vals {
			env[k] = v
		}
	}
	for _, k := range envKeys {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}
	return env, nil
}

// ApplyEnv overrides engine settings from env.
func (c *Config) ApplyEnv(env map[string]string) error {
	if v := strings.TrimSpace(env[EnvModel]); v != "" {
		c.Engine.ModelPath = v
	}
	if v := strings.TrimSpace(env[EnvOrtLib]); v != "" {
		c.Engine.OrtLib = v
	}
	if v := strings.TrimSpace(env[EnvEngine]); v != "" {
		c.Engine.Kind = v
	}
	if v := strings.TrimSpace(env[EnvMaxSeqLen]); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxSeqLen, err)
		}
		c.Engine.MaxSeqLen = n
	}
	return nil
}
