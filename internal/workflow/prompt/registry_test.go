package prompt

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AllTemplatesFormat(t *testing.T) {
	r := NewRegistry()
	vars := map[string]any{
		"num_scenes":           3,
		"genre":                "Sci-Fi",
		"tone":                 "serious",
		"idea":                 "a ninja in space",
		"character_block":      "",
		"setting_block":        "",
		"sketch":               "sketch",
		"character_hint_block": "",
		"character_profile":    "profile",
		"scene_markers":        "SCENE 1: [first]",
		"input_concept":        "Scene description: x",
		"sketch_preview":       "preview",
		"scene_number":         2,
		"current_text":         "old text",
	}

	for _, id := range AllPrompts {
		t.Run(string(id), func(t *testing.T) {
			msgs, err := r.Render(context.Background(), id, vars)
			require.NoError(t, err)
			require.Len(t, msgs, 2)
			assert.Equal(t, schema.System, msgs[0].Role)
			assert.Equal(t, schema.User, msgs[1].Role)
			assert.NotEmpty(t, strings.TrimSpace(msgs[1].Content))
			assert.NotContains(t, msgs[1].Content, "{")
		})
	}
}

func TestRegistry_CachesTemplates(t *testing.T) {
	r := NewRegistry()
	a, err := r.ChatTemplate(PromptStoryTitleV1)
	require.NoError(t, err)
	b, err := r.ChatTemplate(PromptStoryTitleV1)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestRegistry_UnknownPrompt(t *testing.T) {
	_, err := NewRegistry().ChatTemplate("nope")
	assert.Error(t, err)
}
