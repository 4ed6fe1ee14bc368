package story

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/domain/repository"
	"dreamteller-api/internal/infrastructure/persistence/memory"
	"dreamteller-api/internal/workflow/chain"
	workflowport "dreamteller-api/internal/workflow/port"
	apperrors "dreamteller-api/pkg/errors"
)

func newTestService(text *stubText, images *stubImages) (*StoryService, repository.StoryStore) {
	store := memory.NewStoryStore(10, time.Hour)
	return NewStoryService(newTestGenerator(text, images, nil), store), store
}

func TestStoryService_GenerateStoresResult(t *testing.T) {
	svc, store := newTestService(newStubText(), &stubImages{})

	story, err := svc.Generate(context.Background(), ninjaPrompt())
	require.NoError(t, err)

	stored, err := store.Get(context.Background(), story.ID)
	require.NoError(t, err)
	assert.Equal(t, story.Title, stored.Title)
	assert.Len(t, stored.Scenes, 3)

	page, err := svc.List(context.Background(), repository.NewPagination(1, 10))
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
}

func TestStoryService_FailedGenerationIsNotStored(t *testing.T) {
	text := newStubText()
	text.replies[chain.WorkflowSketch] = ""
	svc, _ := newTestService(text, &stubImages{})

	_, err := svc.Generate(context.Background(), ninjaPrompt())
	require.Error(t, err)

	page, err := svc.List(context.Background(), repository.NewPagination(1, 10))
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestStoryService_GetAndDeleteMissing(t *testing.T) {
	svc, _ := newTestService(newStubText(), nil)

	_, err := svc.Get(context.Background(), "nope")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStoryNotFound))
	assert.True(t, apperrors.IsNotFound(err))

	err = svc.Delete(context.Background(), "nope")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStoryNotFound))
}

func TestStoryService_RegenerateStoredScene(t *testing.T) {
	text := newStubText()
	svc, store := newTestService(text, &stubImages{})

	story, err := svc.Generate(context.Background(), ninjaPrompt())
	require.NoError(t, err)
	oldImage := story.Scenes[1].ImageURL

	updated, err := svc.RegenerateStoredScene(context.Background(), story.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "A brand new scene.", updated.Scenes[1].Text)
	assert.Equal(t, oldImage, updated.Scenes[1].ImageURL)
	require.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, story.CreatedAt, updated.CreatedAt)

	stored, err := store.Get(context.Background(), story.ID)
	require.NoError(t, err)
	assert.Equal(t, "A brand new scene.", stored.Scenes[1].Text)
	assert.Equal(t, story.Scenes[0].Text, stored.Scenes[0].Text)

	_, err = svc.RegenerateStoredScene(context.Background(), story.ID, 3)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestStoryService_RegenerateStoredSceneKeepsStoryOnFailure(t *testing.T) {
	text := newStubText()
	svc, store := newTestService(text, &stubImages{})
	story, err := svc.Generate(context.Background(), ninjaPrompt())
	require.NoError(t, err)

	text.errs[chain.WorkflowRegenerate] = apperrors.NewProviderError(apperrors.ProviderRateLimit, "openai", 429, errors.New("slow down"))
	_, err = svc.RegenerateStoredScene(context.Background(), story.ID, 0)
	require.Error(t, err)

	stored, err := store.Get(context.Background(), story.ID)
	require.NoError(t, err)
	assert.Equal(t, story.Scenes[0].Text, stored.Scenes[0].Text)
	assert.Nil(t, stored.UpdatedAt)
}

type fakeArchive struct {
	summaries []*entity.ArchiveSummary
	listCalls int
	saved     []string
	missing   bool
}

func (f *fakeArchive) Save(_ context.Context, s *entity.Story, filename string) (string, error) {
	if filename == "" {
		filename = s.Title + ".story"
	}
	f.saved = append(f.saved, filename)
	f.summaries = append(f.summaries, &entity.ArchiveSummary{ID: s.ID, Title: s.Title, Filename: filename})
	return filename, nil
}

func (f *fakeArchive) Load(context.Context, string) (*entity.ArchivedStory, error) {
	return nil, apperrors.ErrArchiveNotFound
}

func (f *fakeArchive) List(context.Context) ([]*entity.ArchiveSummary, error) {
	f.listCalls++
	return append([]*entity.ArchiveSummary(nil), f.summaries...), nil
}

func (f *fakeArchive) Delete(context.Context, string) (bool, error) {
	return !f.missing, nil
}

func (f *fakeArchive) Path(_ context.Context, filename string) (string, error) {
	return "/archives/" + filename, nil
}

// mapCatalog 进程内的 CatalogCache
type mapCatalog struct {
	cached  []*entity.ArchiveSummary
	valid   bool
	failGet bool
}

func (m *mapCatalog) Catalog(ctx context.Context, _ time.Duration, load func(context.Context) ([]*entity.ArchiveSummary, error)) ([]*entity.ArchiveSummary, error) {
	if m.failGet {
		return nil, errors.New("redis unavailable")
	}
	if m.valid {
		return m.cached, nil
	}
	summaries, err := load(ctx)
	if err != nil {
		return nil, err
	}
	m.cached, m.valid = summaries, true
	return summaries, nil
}

func (m *mapCatalog) Invalidate(context.Context) error {
	m.cached, m.valid = nil, false
	return nil
}

func TestLibrary_CatalogIsCachedAndInvalidated(t *testing.T) {
	archive := &fakeArchive{}
	catalog := &mapCatalog{}
	lib := NewLibrary(archive, catalog, time.Minute)
	ctx := context.Background()

	list, err := lib.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = lib.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, archive.listCalls)

	story := entity.NewStory(ninjaPrompt())
	story.Title = "Orbit"
	name, err := lib.Save(ctx, story, "")
	require.NoError(t, err)
	assert.Equal(t, "Orbit.story", name)

	list, err = lib.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Orbit", list[0].Title)
	assert.Equal(t, 2, archive.listCalls)

	existed, err := lib.Delete(ctx, name)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.False(t, catalog.valid)
}

func TestLibrary_FallsBackWhenCacheFails(t *testing.T) {
	archive := &fakeArchive{summaries: []*entity.ArchiveSummary{{Filename: "a.story"}}}
	lib := NewLibrary(archive, &mapCatalog{failGet: true}, time.Minute)

	list, err := lib.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a.story", list[0].Filename)
}

func TestLibrary_WithoutCache(t *testing.T) {
	archive := &fakeArchive{missing: true}
	lib := NewLibrary(archive, nil, time.Minute)

	_, err := lib.List(context.Background())
	require.NoError(t, err)
	_, err = lib.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, archive.listCalls)

	existed, err := lib.Delete(context.Background(), "gone.story")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestImageService_Defaults(t *testing.T) {
	images := &stubImages{}
	svc := NewImageService(images, 42)

	res, err := svc.Generate(context.Background(), ImageParams{Prompt: "  a red fox  "})
	require.NoError(t, err)
	assert.NotEmpty(t, res.URL)

	require.Len(t, images.reqs, 1)
	req := images.reqs[0]
	assert.Equal(t, "a red fox", req.Prompt)
	assert.Equal(t, workflowport.ImageSize{Width: 768, Height: 512}, req.Size)
	assert.Equal(t, 50, req.Steps)
	assert.InDelta(t, 7.5, req.GuidanceScale, 1e-9)
	assert.Zero(t, req.Seed)
}

func TestImageService_RegenerateSceneUsesSceneSeed(t *testing.T) {
	images := &stubImages{}
	svc := NewImageService(images, 42)

	res, err := svc.RegenerateScene(context.Background(), 3, ImageParams{Prompt: "a castle", Width: 512, Height: 512, Steps: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(45), res.Seed)
	assert.Equal(t, workflowport.ImageSize{Width: 512, Height: 512}, images.reqs[0].Size)
	assert.Equal(t, 20, images.reqs[0].Steps)

	_, err = svc.RegenerateScene(context.Background(), -1, ImageParams{Prompt: "a castle"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestImageService_Errors(t *testing.T) {
	_, err := NewImageService(nil, 42).Generate(context.Background(), ImageParams{Prompt: "x"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeServiceUnavailable))

	svc := NewImageService(&stubImages{}, 42)
	_, err = svc.Generate(context.Background(), ImageParams{Prompt: "   "})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	failing := &stubImages{fn: func(*workflowport.ImageRequest) (*workflowport.ImageResult, error) {
		return nil, apperrors.NewProviderError(apperrors.ProviderInvalidInput, "fal", 400, errors.New("nsfw"))
	}}
	_, err = NewImageService(failing, 42).Generate(context.Background(), ImageParams{Prompt: "x"})
	kind, ok := apperrors.ProviderKindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ProviderInvalidInput, kind)
}
