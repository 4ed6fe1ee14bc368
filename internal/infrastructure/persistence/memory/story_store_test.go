package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/domain/repository"
)

func storyAt(id string, created time.Time) *entity.Story {
	return &entity.Story{
		ID:        id,
		Title:     "title " + id,
		Prompt:    entity.StoryPrompt{Idea: "idea", NumScenes: 3},
		Scenes:    []entity.Scene{{Text: "a"}, {Text: "b"}, {Text: "c"}},
		CreatedAt: created,
	}
}

func TestStoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStoryStore(10, time.Hour)
	st := storyAt("s1", time.Now())
	require.NoError(t, s.Put(ctx, st))

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, st.Title, got.Title)

	got.Scenes[0].Text = "mutated"
	again, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Scenes[0].Text)

	ok, err := s.Delete(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Delete(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, "s1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStoryStore_EvictsOldestBeyondCapacity(t *testing.T) {
	ctx := context.Background()
	s := NewStoryStore(3, 0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Put(ctx, storyAt(fmt.Sprintf("s%d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	_, err := s.Get(ctx, "s0")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.Get(ctx, "s1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	page, err := s.List(ctx, repository.NewPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "s4", page.Items[0].ID)
	assert.Equal(t, "s2", page.Items[2].ID)
}

func TestStoryStore_ListPagination(t *testing.T) {
	ctx := context.Background()
	s := NewStoryStore(0, 0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Put(ctx, storyAt(fmt.Sprintf("s%d", i), base.Add(time.Duration(i)*time.Hour))))
	}

	page, err := s.List(ctx, repository.NewPagination(2, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "s2", page.Items[0].ID)
	assert.Equal(t, "s1", page.Items[1].ID)
}

func TestStoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewStoryStore(0, 20*time.Millisecond)
	require.NoError(t, s.Put(ctx, storyAt("s1", time.Now())))
	time.Sleep(40 * time.Millisecond)

	_, err := s.Get(ctx, "s1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	page, err := s.List(ctx, repository.NewPagination(1, 10))
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}
