package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/domain/repository"
	"dreamteller-api/internal/interfaces/http/dto"
	apperrors "dreamteller-api/pkg/errors"
)

type fakeJobs struct {
	byKey      map[string]*entity.StoryJob
	byID       map[string]*entity.StoryJob
	lastStatus entity.JobStatus
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{byKey: map[string]*entity.StoryJob{}, byID: map[string]*entity.StoryJob{}}
}

func (f *fakeJobs) Submit(_ context.Context, prompt entity.StoryPrompt, key string) (*entity.StoryJob, bool, error) {
	if prompt.Idea == "" {
		return nil, false, apperrors.NewValidationError("idea is required")
	}
	if j, ok := f.byKey[key]; ok && key != "" {
		return j, false, nil
	}
	j := entity.NewStoryJob(prompt, key)
	f.byID[j.ID] = j
	if key != "" {
		f.byKey[key] = j
	}
	return j, true, nil
}

func (f *fakeJobs) Get(_ context.Context, id string) (*entity.StoryJob, error) {
	j, ok := f.byID[id]
	if !ok {
		return nil, apperrors.ErrJobNotFound.WithDetail(id)
	}
	return j, nil
}

func (f *fakeJobs) List(_ context.Context, status entity.JobStatus, p repository.Pagination) (*repository.PagedResult[*entity.StoryJob], error) {
	f.lastStatus = status
	var items []*entity.StoryJob
	for _, j := range f.byID {
		if status == "" || j.Status == status {
			items = append(items, j)
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

func (f *fakeJobs) Cancel(ctx context.Context, id string) (*entity.StoryJob, error) {
	j, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !j.Cancel() {
		return nil, apperrors.ErrJobNotCancelable.WithDetail(string(j.Status))
	}
	return j, nil
}

func newJobEngine(jobs JobService) *gin.Engine {
	h := NewJobHandler(jobs)
	r := gin.New()
	r.POST("/v1/stories/jobs", h.Submit)
	r.GET("/v1/jobs", h.ListJobs)
	r.GET("/v1/jobs/:id", h.GetJob)
	r.POST("/v1/jobs/:id/cancel", h.CancelJob)
	return r
}

func submitJob(t *testing.T, r http.Handler, key string) *dto.JobResponse {
	t.Helper()
	w := doJSONWithHeader(t, r, http.MethodPost, "/v1/stories/jobs", ninjaPrompt(), IdempotencyKeyHeader, key)
	require.Contains(t, []int{http.StatusOK, http.StatusAccepted}, w.Code, w.Body.String())
	return decode[*dto.JobResponse](t, w).Data
}

func doJSONWithHeader(t *testing.T, h http.Handler, method, path string, body any, header, value string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSONWith(t, h, method, path, body, func(r *http.Request) {
		if value != "" {
			r.Header.Set(header, value)
		}
	})
}

func TestJobHandler_Submit(t *testing.T) {
	jobs := newFakeJobs()
	r := newJobEngine(jobs)

	w := doJSONWithHeader(t, r, http.MethodPost, "/v1/stories/jobs", ninjaPrompt(), IdempotencyKeyHeader, "k-1")
	require.Equal(t, http.StatusAccepted, w.Code)
	first := decode[*dto.JobResponse](t, w).Data
	assert.Equal(t, "pending", first.Status)
	assert.Equal(t, "a ninja in space", first.Prompt.Idea)

	w = doJSONWithHeader(t, r, http.MethodPost, "/v1/stories/jobs", ninjaPrompt(), IdempotencyKeyHeader, "k-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first.ID, decode[*dto.JobResponse](t, w).Data.ID)

	w = doJSONWithHeader(t, r, http.MethodPost, "/v1/stories/jobs", map[string]any{"genre": "Fantasy"}, IdempotencyKeyHeader, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobHandler_GetAndList(t *testing.T) {
	jobs := newFakeJobs()
	r := newJobEngine(jobs)
	a := submitJob(t, r, "")
	submitJob(t, r, "")
	jobs.byID[a.ID].Start()

	w := doJSON(t, r, http.MethodGet, "/v1/jobs/"+a.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "running", decode[*dto.JobResponse](t, w).Data.Status)

	w = doJSON(t, r, http.MethodGet, "/v1/jobs/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(apperrors.CodeJobNotFound), decode[any](t, w).Error.ErrorCode)

	w = doJSON(t, r, http.MethodGet, "/v1/jobs?status=running", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]*dto.JobResponse](t, w)
	assert.Equal(t, entity.JobStatusRunning, jobs.lastStatus)
	require.Len(t, list.Data, 1)
	assert.Equal(t, a.ID, list.Data[0].ID)
	assert.Equal(t, 1, list.Meta.Total)
}

func TestJobHandler_Cancel(t *testing.T) {
	jobs := newFakeJobs()
	r := newJobEngine(jobs)
	j := submitJob(t, r, "")

	w := doJSON(t, r, http.MethodPost, "/v1/jobs/"+j.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[dto.CancelJobResponse](t, w).Data
	assert.Equal(t, j.ID, got.ID)
	assert.True(t, got.Cancelled)

	jobs.byID[j.ID].Status = entity.JobStatusCompleted
	w = doJSON(t, r, http.MethodPost, "/v1/jobs/"+j.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(apperrors.CodeJobNotCancelable), decode[any](t, w).Error.ErrorCode)
}
