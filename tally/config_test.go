package tally

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, "auto", cfg.Engine.Kind)
	assert.Equal(t, 512, cfg.Engine.MaxSeqLen)
	assert.Equal(t, DefaultCategories, cfg.Categories)
	assert.Equal(t, KeyByCategory, cfg.KeyMode)
	assert.Equal(t, FormatText, cfg.Format)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Config{
		Engine:     EngineConfig{Kind: "onnx", ModelPath: "models/bert-ner", TagAliases: map[string]string{"GPE": "LOCATION"}},
		Categories: []string{"PERSON"},
		KeyMode:    KeyByText,
	}
	require.NoError(t, SaveConfig(path, cfg))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "models/bert-ner", got.Engine.ModelPath)
	assert.Equal(t, "LOCATION", got.Engine.TagAliases["GPE"])
	assert.Equal(t, []string{"PERSON"}, got.Categories)
	assert.Equal(t, KeyByText, got.KeyMode)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "decode config")
}

func TestConfigCloneIsDeep(t *testing.T) {
	cfg := Config{Categories: []string{"PERSON"}}
	clone := cfg.Clone()
	clone.Categories[0] = "LOCATION"
	assert.Equal(t, "PERSON", cfg.Categories[0])
}

func TestLoadEnvAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NERTALLY_MODEL=models/names.tsv\nNERTALLY_MAX_SEQ_LEN=128\n"), 0o644))
	t.Setenv(EnvEngine, "gazetteer")

	env, err := LoadEnv(path)
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, cfg.ApplyEnv(env))
	assert.Equal(t, "models/names.tsv", cfg.Engine.ModelPath)
	assert.Equal(t, 128, cfg.Engine.MaxSeqLen)
	assert.Equal(t, "gazetteer", cfg.Engine.Kind)

	_, err = LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)

	assert.Error(t, cfg.ApplyEnv(map[string]string{EnvMaxSeqLen: "lots"}))
}
