package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dreamteller-api/internal/application/story"
	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/domain/repository"
	"dreamteller-api/internal/infrastructure/messaging"
	apperrors "dreamteller-api/pkg/errors"
)

// memJobRepo 内存任务仓储，读写都复制一份
type memJobRepo struct {
	mu       sync.Mutex
	jobs     map[string]entity.StoryJob
	progress []entity.Stage
}

func newMemJobRepo(jobs ...*entity.StoryJob) *memJobRepo {
	r := &memJobRepo{jobs: make(map[string]entity.StoryJob)}
	for _, j := range jobs {
		r.jobs[j.ID] = *j
	}
	return r
}

func (r *memJobRepo) Create(_ context.Context, job *entity.StoryJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memJobRepo) GetByID(_ context.Context, id string) (*entity.StoryJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

func (r *memJobRepo) GetByIdempotencyKey(context.Context, string) (*entity.StoryJob, error) {
	return nil, nil
}

func (r *memJobRepo) Update(_ context.Context, job *entity.StoryJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memJobRepo) UpdateProgress(_ context.Context, id string, stage entity.Stage, progress int, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != entity.JobStatusRunning {
		return nil
	}
	j.UpdateProgress(stage, progress, message)
	r.jobs[id] = j
	r.progress = append(r.progress, stage)
	return nil
}

func (r *memJobRepo) List(context.Context, *repository.JobFilter, repository.Pagination) (*repository.PagedResult[*entity.StoryJob], error) {
	return nil, errors.New("not implemented")
}

func (r *memJobRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	return nil
}

func (r *memJobRepo) get(t *testing.T, id string) entity.StoryJob {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	require.True(t, ok)
	return j
}

func (r *memJobRepo) setStatus(id string, status entity.JobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := r.jobs[id]
	j.Status = status
	r.jobs[id] = j
}

type generatorFunc func(ctx context.Context, prompt entity.StoryPrompt, opts ...story.GenerateOption) (*entity.Story, error)

func (f generatorFunc) Generate(ctx context.Context, prompt entity.StoryPrompt, opts ...story.GenerateOption) (*entity.Story, error) {
	return f(ctx, prompt, opts...)
}

type stubArchiver struct {
	err   error
	saved []string
}

func (a *stubArchiver) Save(_ context.Context, s *entity.Story, _ string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.saved = append(a.saved, s.ID)
	return "Tide_20260102_150405.story", nil
}

func jobMessage(t *testing.T, id string) *messaging.Message {
	t.Helper()
	msg, err := messaging.NewMessage(id, messaging.MessageTypeStoryGen, &messaging.StoryJobMessage{JobID: id})
	require.NoError(t, err)
	return msg
}

func pendingJob() *entity.StoryJob {
	p, _ := validPrompt().Normalize(entity.DefaultPromptRules())
	return entity.NewStoryJob(p, "")
}

func generatedStory(prompt entity.StoryPrompt) *entity.Story {
	s := entity.NewStory(prompt)
	s.Title = "Tide"
	for i := 0; i < prompt.NumScenes; i++ {
		s.Scenes = append(s.Scenes, entity.Scene{Text: "scene"})
	}
	return s
}

func TestRunner_CompletesAndArchives(t *testing.T) {
	job := pendingJob()
	repo := newMemJobRepo(job)
	archiver := &stubArchiver{}
	var produced *entity.Story
	gen := generatorFunc(func(_ context.Context, prompt entity.StoryPrompt, _ ...story.GenerateOption) (*entity.Story, error) {
		assert.Equal(t, job.Prompt, prompt)
		assert.Equal(t, entity.JobStatusRunning, repo.get(t, job.ID).Status)
		produced = generatedStory(prompt)
		return produced, nil
	})

	r := NewRunner(repo, gen, archiver, RunnerConfig{MaxRetries: 2, CancelPollInterval: time.Hour})
	require.NoError(t, r.Handle(context.Background(), jobMessage(t, job.ID)))

	got := repo.get(t, job.ID)
	assert.Equal(t, entity.JobStatusCompleted, got.Status)
	assert.Equal(t, entity.StageDone, got.Stage)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, produced.ID, got.StoryID)
	assert.Equal(t, "Tide", got.Title)
	assert.Equal(t, "Tide_20260102_150405.story", got.ArchiveFile)
	assert.Equal(t, []string{produced.ID}, archiver.saved)
}

func TestRunner_ArchiveFailureStillCompletes(t *testing.T) {
	job := pendingJob()
	repo := newMemJobRepo(job)
	gen := generatorFunc(func(_ context.Context, prompt entity.StoryPrompt, _ ...story.GenerateOption) (*entity.Story, error) {
		return generatedStory(prompt), nil
	})

	r := NewRunner(repo, gen, &stubArchiver{err: errors.New("disk full")}, RunnerConfig{CancelPollInterval: time.Hour})
	require.NoError(t, r.Handle(context.Background(), jobMessage(t, job.ID)))

	got := repo.get(t, job.ID)
	assert.Equal(t, entity.JobStatusCompleted, got.Status)
	assert.Empty(t, got.ArchiveFile)
}

func TestRunner_RetriesTransientProviderErrors(t *testing.T) {
	job := pendingJob()
	repo := newMemJobRepo(job)
	calls := 0
	gen := generatorFunc(func(context.Context, entity.StoryPrompt, ...story.GenerateOption) (*entity.Story, error) {
		calls++
		return nil, &story.StageError{
			Stage: entity.StageSketch,
			Err:   apperrors.NewProviderError(apperrors.ProviderTransient, "openai", 503, errors.New("upstream unavailable")),
		}
	})

	r := NewRunner(repo, gen, nil, RunnerConfig{MaxRetries: 1, CancelPollInterval: time.Hour})

	err := r.Handle(context.Background(), jobMessage(t, job.ID))
	require.Error(t, err)
	got := repo.get(t, job.ID)
	assert.Equal(t, entity.JobStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)

	// 重投后再次失败，重试次数用尽
	require.NoError(t, r.Handle(context.Background(), jobMessage(t, job.ID)))
	got = repo.get(t, job.ID)
	assert.Equal(t, entity.JobStatusFailed, got.Status)
	assert.Equal(t, string(apperrors.ProviderTransient), got.ErrorKind)
	assert.Equal(t, 2, calls)
}

func TestRunner_AuthFailureIsNotRetried(t *testing.T) {
	job := pendingJob()
	repo := newMemJobRepo(job)
	gen := generatorFunc(func(context.Context, entity.StoryPrompt, ...story.GenerateOption) (*entity.Story, error) {
		return nil, &story.StageError{
			Stage: entity.StageSketch,
			Err:   apperrors.NewProviderError(apperrors.ProviderAuth, "openai", 401, errors.New("invalid api key")),
		}
	})

	r := NewRunner(repo, gen, nil, RunnerConfig{MaxRetries: 3, CancelPollInterval: time.Hour})
	require.NoError(t, r.Handle(context.Background(), jobMessage(t, job.ID)))

	got := repo.get(t, job.ID)
	assert.Equal(t, entity.JobStatusFailed, got.Status)
	assert.Equal(t, entity.StageFailed, got.Stage)
	assert.Equal(t, "auth", got.ErrorKind)
	assert.Contains(t, got.ErrorMessage, "API key")
	assert.Equal(t, 0, got.RetryCount)
}

func TestRunner_SkipsFinishedAndMissingJobs(t *testing.T) {
	done := pendingJob()
	done.Complete("story-1", "Done", "")
	repo := newMemJobRepo(done)
	gen := generatorFunc(func(context.Context, entity.StoryPrompt, ...story.GenerateOption) (*entity.Story, error) {
		t.Fatal("generator must not run")
		return nil, nil
	})

	r := NewRunner(repo, gen, nil, RunnerConfig{CancelPollInterval: time.Hour})
	assert.NoError(t, r.Handle(context.Background(), jobMessage(t, done.ID)))
	assert.NoError(t, r.Handle(context.Background(), jobMessage(t, "no-such-job")))
	assert.Equal(t, entity.JobStatusCompleted, repo.get(t, done.ID).Status)
}

func TestRunner_StopsWhenJobIsCancelled(t *testing.T) {
	job := pendingJob()
	repo := newMemJobRepo(job)
	gen := generatorFunc(func(ctx context.Context, _ entity.StoryPrompt, _ ...story.GenerateOption) (*entity.Story, error) {
		repo.setStatus(job.ID, entity.JobStatusCancelled)
		select {
		case <-ctx.Done():
			return nil, &story.StageError{Stage: entity.StageCharacter, Err: ctx.Err()}
		case <-time.After(5 * time.Second):
			return nil, errors.New("cancellation was not observed")
		}
	})

	r := NewRunner(repo, gen, nil, RunnerConfig{CancelPollInterval: 10 * time.Millisecond})
	require.NoError(t, r.Handle(context.Background(), jobMessage(t, job.ID)))
	assert.Equal(t, entity.JobStatusCancelled, repo.get(t, job.ID).Status)
}

func TestRunner_RequeuesOnShutdown(t *testing.T) {
	job := pendingJob()
	repo := newMemJobRepo(job)
	ctx, cancel := context.WithCancel(context.Background())
	gen := generatorFunc(func(ctx context.Context, _ entity.StoryPrompt, _ ...story.GenerateOption) (*entity.Story, error) {
		cancel()
		return nil, &story.StageError{Stage: entity.StageScenes, Err: ctx.Err()}
	})

	r := NewRunner(repo, gen, nil, RunnerConfig{CancelPollInterval: time.Hour})
	err := r.Handle(ctx, jobMessage(t, job.ID))
	assert.ErrorIs(t, err, context.Canceled)

	got := repo.get(t, job.ID)
	assert.Equal(t, entity.JobStatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)
}

func TestProgressReporter_WritesStageAndMessage(t *testing.T) {
	job := pendingJob()
	job.Start()
	repo := newMemJobRepo(job)
	p := &progressReporter{ctx: context.Background(), jobs: repo, jobID: job.ID}

	p.OnStatus("ignored until a stage is known")
	p.OnStage(entity.StageScenes, 35)
	p.OnStatus("Developing 5 detailed story scenes...")
	p.OnImageStatus(0, true)

	got := repo.get(t, job.ID)
	assert.Equal(t, entity.StageScenes, got.Stage)
	assert.Equal(t, 35, got.Progress)
	assert.Equal(t, "Developing 5 detailed story scenes...", got.StatusMessage)
	assert.Equal(t, []entity.Stage{entity.StageScenes, entity.StageScenes}, repo.progress)
}
