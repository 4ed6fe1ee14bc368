package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoryPrompt_Normalize(t *testing.T) {
	rules := DefaultPromptRules()

	t.Run("defaults", func(t *testing.T) {
		p, err := StoryPrompt{Idea: "  a ninja in space  ", Genre: "Sci-Fi"}.Normalize(rules)
		require.NoError(t, err)
		assert.Equal(t, "a ninja in space", p.Idea)
		assert.Equal(t, 5, p.NumScenes)
		assert.Equal(t, DefaultArtStyle, p.ArtStyle)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		p, err := StoryPrompt{Idea: "x", NumScenes: 3, ArtStyle: "Pixel Art"}.Normalize(rules)
		require.NoError(t, err)
		assert.Equal(t, 3, p.NumScenes)
		assert.Equal(t, "Pixel Art", p.ArtStyle)
	})

	t.Run("empty idea", func(t *testing.T) {
		_, err := StoryPrompt{Idea: "   ", NumScenes: 3}.Normalize(rules)
		var verr *PromptValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "idea", verr.Field)
	})

	for _, n := range []int{-1, 2, 11} {
		_, err := StoryPrompt{Idea: "x", NumScenes: n}.Normalize(rules)
		var verr *PromptValidationError
		require.ErrorAs(t, err, &verr, "numScenes=%d", n)
		assert.Equal(t, "numScenes", verr.Field)
	}
}

func TestStory_ReplaceSceneText(t *testing.T) {
	s := NewStory(StoryPrompt{Idea: "x", NumScenes: 2})
	s.Scenes = append(s.Scenes, Scene{Text: "one"}, Scene{Text: "two", ImageURL: "https://img/2.png"})
	created := s.CreatedAt

	require.NoError(t, s.ReplaceSceneText(1, "new two"))
	assert.Equal(t, "new two", s.Scenes[1].Text)
	assert.Equal(t, "https://img/2.png", s.Scenes[1].ImageURL)
	require.NotNil(t, s.UpdatedAt)
	assert.Equal(t, created, s.CreatedAt)

	assert.Error(t, s.ReplaceSceneText(2, "nope"))
	assert.Error(t, s.ReplaceSceneText(-1, "nope"))
	assert.True(t, s.IsComplete())
	assert.Equal(t, 1, s.ImageCount())
}

func TestStory_Clone(t *testing.T) {
	s := NewStory(StoryPrompt{Idea: "x", NumScenes: 1})
	s.Scenes = append(s.Scenes, Scene{Text: "one"})
	s.Touch()

	cp := s.Clone()
	cp.Scenes[0].Text = "changed"
	*cp.UpdatedAt = cp.UpdatedAt.Add(1)

	assert.Equal(t, "one", s.Scenes[0].Text)
	assert.NotEqual(t, *s.UpdatedAt, *cp.UpdatedAt)
	assert.Nil(t, (*Story)(nil).Clone())
}

func TestStoryJob_Lifecycle(t *testing.T) {
	j := NewStoryJob(StoryPrompt{Idea: "x", NumScenes: 3}, "key-1")
	assert.Equal(t, JobStatusPending, j.Status)
	assert.Equal(t, StagePending, j.Stage)
	assert.False(t, j.IsTerminal())

	j.Start()
	assert.Equal(t, JobStatusRunning, j.Status)
	require.NotNil(t, j.StartedAt)

	j.UpdateProgress(StageScenes, 150, "writing scenes")
	assert.Equal(t, 100, j.Progress)
	j.UpdateProgress(StageScenes, -5, "")
	assert.Equal(t, 0, j.Progress)
	assert.Equal(t, "writing scenes", j.StatusMessage)

	j.Fail("transient", "boom")
	assert.True(t, j.IsTerminal())
	assert.True(t, j.CanRetry(2))
	assert.False(t, j.Cancel())

	j.Retry()
	assert.Equal(t, 1, j.RetryCount)
	assert.Equal(t, JobStatusPending, j.Status)
	assert.Nil(t, j.CompletedAt)

	j.Start()
	assert.Empty(t, j.ErrorKind)
	j.Complete("story-1", "Title", "title.story")
	assert.Equal(t, JobStatusCompleted, j.Status)
	assert.Equal(t, StageDone, j.Stage)
	assert.Equal(t, 100, j.Progress)
	assert.False(t, j.CanRetry(2))
}

func TestStoryJob_Cancel(t *testing.T) {
	j := NewStoryJob(StoryPrompt{Idea: "x"}, "")
	assert.True(t, j.Cancel())
	assert.Equal(t, JobStatusCancelled, j.Status)
	assert.False(t, j.Cancel())
}
