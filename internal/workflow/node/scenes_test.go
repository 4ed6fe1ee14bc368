package node

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markedBlob(texts ...string) string {
	var b strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&b, "SCENE %d: %s\n\n", i+1, t)
	}
	return b.String()
}

func TestParseScenes(t *testing.T) {
	t.Run("ExactMarkersRoundTrip", func(t *testing.T) {
		for n := 1; n <= 10; n++ {
			texts := make([]string, n)
			for i := range texts {
				texts[i] = fmt.Sprintf("Scene body number %d.", i+1)
			}
			got := ParseScenes(markedBlob(texts...), n)
			assert.Equal(t, texts, got, "n=%d", n)
		}
	})

	t.Run("UnderProductionFillsPlaceholders", func(t *testing.T) {
		got := ParseScenes(markedBlob("one", "two"), 5)
		require.Len(t, got, 5)
		assert.Equal(t, []string{
			"one",
			"two",
			"Scene 3 description not available.",
			"Scene 4 description not available.",
			"Scene 5 description not available.",
		}, got)
	})

	t.Run("OverProductionTruncates", func(t *testing.T) {
		got := ParseScenes(markedBlob("a", "b", "c", "d", "e"), 3)
		assert.Equal(t, []string{"a", "b", "c"}, got)
	})

	t.Run("NoMarkersAllPlaceholders", func(t *testing.T) {
		got := ParseScenes("Once upon a time there was no structure at all.", 3)
		assert.Equal(t, []string{
			"Scene 1 description not available.",
			"Scene 2 description not available.",
			"Scene 3 description not available.",
		}, got)
	})

	t.Run("PreambleDiscarded", func(t *testing.T) {
		text := "Here are your scenes!\n\nSCENE 1: First.\nSCENE 2: Second."
		assert.Equal(t, []string{"First.", "Second."}, ParseScenes(text, 2))
	})

	t.Run("MultiLineScenesJoinedWithSpaces", func(t *testing.T) {
		text := "SCENE 1:\nThe ship drifts.\n\nStars wheel past.\nSCENE 2: Landing\non the moon."
		assert.Equal(t, []string{"The ship drifts. Stars wheel past.", "Landing on the moon."}, ParseScenes(text, 2))
	})

	t.Run("CaseInsensitiveAndOptionalColon", func(t *testing.T) {
		text := "scene 1\nalpha\nScene 2: beta\n**SCENE 3:** gamma"
		assert.Equal(t, []string{"alpha", "beta", "gamma"}, ParseScenes(text, 3))
	})

	t.Run("MarkerMustStartTheLine", func(t *testing.T) {
		text := "SCENE 1: Opening.\nHere is SCENE 2: the ninja lands.\nSCENE 2: Landing."
		assert.Equal(t, []string{"Opening. Here is SCENE 2: the ninja lands.", "Landing."}, ParseScenes(text, 2))
		assert.Equal(t, 2, CountSceneMarkers(text))
	})

	t.Run("EmptyMarkedSceneIsSkipped", func(t *testing.T) {
		text := "SCENE 1:\n\nSCENE 2: real"
		assert.Equal(t, []string{"real", "Scene 2 description not available."}, ParseScenes(text, 2))
	})

	t.Run("ZeroCount", func(t *testing.T) {
		assert.Nil(t, ParseScenes(markedBlob("a"), 0))
	})
}

func TestCountSceneMarkers(t *testing.T) {
	assert.Equal(t, 3, CountSceneMarkers(markedBlob("a", "b", "c")))
	assert.Equal(t, 0, CountSceneMarkers("nothing here"))
}
