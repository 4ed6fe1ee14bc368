package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("DT_TEST_SET", "value")

	assert.Equal(t, "a=value", expandEnv("a=${DT_TEST_SET}"))
	assert.Equal(t, "a=value", expandEnv("a=${DT_TEST_SET:fallback}"))
	assert.Equal(t, "a=fallback", expandEnv("a=${DT_TEST_UNSET_123:fallback}"))
	assert.Equal(t, "a=", expandEnv("a=${DT_TEST_UNSET_123:}"))
	assert.Equal(t, "a=${DT_TEST_UNSET_123}", expandEnv("a=${DT_TEST_UNSET_123}"))
}

func TestLoadFrom_DefaultsOnly(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Story.MinScenes)
	assert.Equal(t, 10, cfg.Story.MaxScenes)
	assert.Equal(t, 5, cfg.Story.DefaultScenes)
	assert.Equal(t, "Digital Painting", cfg.Story.DefaultArtStyle)
	assert.Equal(t, "Untitled Story", cfg.Story.FallbackTitle)
	assert.Equal(t, int64(42), cfg.Image.BaseSeed)
	assert.Equal(t, 50, cfg.Image.Steps)
	assert.Equal(t, ".story", cfg.Archive.Extension)
	assert.Equal(t, 30*time.Second, cfg.Archive.FetchTimeout)
	assert.Equal(t, "gpt-4", cfg.LLM.Providers["openai"].Model)
	assert.Equal(t, 2000, cfg.LLM.Providers["openai"].MaxTokens)
}

func TestLoadFrom_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	content := `
story:
  default_scenes: ${DT_SCENES:4}
archive:
  dir: /tmp/archives
llm:
  default_provider: local
  providers:
    local:
      model: llama3
      max_tokens: 512
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	t.Setenv("DT_SCENES", "7")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Story.DefaultScenes)
	assert.Equal(t, "/tmp/archives", cfg.Archive.Dir)
	assert.Equal(t, "local", cfg.LLM.DefaultProvider)
	assert.Equal(t, "llama3", cfg.LLM.Providers["local"].Model)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	t.Run("DefaultOutsideBounds", func(t *testing.T) {
		c := *cfg
		c.Story.DefaultScenes = 11
		assert.Error(t, c.Validate())
	})

	t.Run("UnknownImageBackend", func(t *testing.T) {
		c := *cfg
		c.Image.Backend = "gemini"
		assert.Error(t, c.Validate())
	})

	t.Run("ExtensionWithoutDot", func(t *testing.T) {
		c := *cfg
		c.Archive.Extension = "story"
		assert.Error(t, c.Validate())
	})
}

func TestProviderFor(t *testing.T) {
	c := LLMConfig{DefaultProvider: "openai", Workflows: map[string]string{"image_prompt": "mini"}}
	assert.Equal(t, "mini", c.ProviderFor("image_prompt"))
	assert.Equal(t, "openai", c.ProviderFor("story_sketch"))
}
