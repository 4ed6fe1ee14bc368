package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"dreamteller-api/internal/application/story"
	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/infrastructure/persistence/memory"
	"dreamteller-api/internal/workflow/chain"
	workflowport "dreamteller-api/internal/workflow/port"
	apperrors "dreamteller-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubText struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
}

func newStubText() *stubText {
	return &stubText{
		replies: map[string]string{
			chain.WorkflowSketch:     "A ninja trains on a space station and must stop a rogue AI.",
			chain.WorkflowCharacter:  "1. PHYSICAL APPEARANCE\nLean, masked, silver armor.\n2. PERSONALITY\nQuiet.",
			chain.WorkflowScenes:     "SCENE 1: The ninja boards the shuttle.\nSCENE 2: A fight in zero gravity.\nSCENE 3: Victory above Earth.",
			chain.WorkflowTitle:      `"Shadows Above Earth"`,
			chain.WorkflowRegenerate: "A brand new scene.",
		},
		errs: map[string]error{},
	}
}

func (s *stubText) Generate(_ context.Context, req *workflowport.TextRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[req.Workflow]; err != nil {
		return "", err
	}
	return s.replies[req.Workflow], nil
}

type stubImages struct {
	mu    sync.Mutex
	seeds []int64
}

func (s *stubImages) GenerateImage(_ context.Context, req *workflowport.ImageRequest) (*workflowport.ImageResult, error) {
	s.mu.Lock()
	s.seeds = append(s.seeds, req.Seed)
	s.mu.Unlock()
	return &workflowport.ImageResult{URL: fmt.Sprintf("https://images.test/%d.png", req.Seed), Seed: req.Seed}, nil
}

// fakeArchive 内存归档
type fakeArchive struct {
	mu    sync.Mutex
	items map[string]*entity.ArchivedStory
	paths map[string]string
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{items: map[string]*entity.ArchivedStory{}, paths: map[string]string{}}
}

func (f *fakeArchive) Save(_ context.Context, s *entity.Story, filename string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if filename == "" {
		filename = "story.zip"
	}
	f.items[filename] = &entity.ArchivedStory{Filename: filename, Story: s}
	return filename, nil
}

func (f *fakeArchive) Load(_ context.Context, filename string) (*entity.ArchivedStory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.items[filename]
	if !ok {
		return nil, apperrors.ErrArchiveNotFound.WithDetail(filename)
	}
	return a, nil
}

func (f *fakeArchive) List(_ context.Context) ([]*entity.ArchiveSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entity.ArchiveSummary, 0, len(f.items))
	for name, a := range f.items {
		out = append(out, &entity.ArchiveSummary{
			ID:        a.Story.ID,
			Title:     a.Story.Title,
			NumScenes: len(a.Story.Scenes),
			Filename:  name,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

func (f *fakeArchive) Delete(_ context.Context, filename string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[filename]
	delete(f.items, filename)
	return ok, nil
}

func (f *fakeArchive) Path(_ context.Context, filename string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.paths[filename]
	if !ok {
		return "", apperrors.ErrArchiveNotFound.WithDetail(filename)
	}
	return p, nil
}

type storyFixture struct {
	engine  *gin.Engine
	text    *stubText
	images  *stubImages
	archive *fakeArchive
	service *story.StoryService
}

func newStoryFixture(t *testing.T) *storyFixture {
	t.Helper()
	text := newStubText()
	images := &stubImages{}
	gen := story.NewGenerator(chain.NewStoryChain(text, nil), images, story.GeneratorConfig{BaseSeed: 42})
	svc := story.NewStoryService(gen, memory.NewStoryStore(10, time.Hour))
	arc := newFakeArchive()

	h := NewStoryHandler(svc, arc)
	ah := NewArchiveHandler(arc)
	r := gin.New()
	v1 := r.Group("/v1")
	v1.POST("/stories/generate", h.Generate)
	v1.POST("/stories/generate/stream", h.Stream)
	v1.POST("/stories/regenerate-text", h.RegenerateText)
	v1.GET("/stories", h.List)
	v1.GET("/stories/:id", h.Get)
	v1.DELETE("/stories/:id", h.Delete)
	v1.PUT("/stories/:id/scenes/:index", h.RegenerateScene)
	v1.POST("/stories/:id/archive", h.Archive)
	v1.GET("/archives", ah.List)
	v1.GET("/archives/:filename", ah.Get)
	v1.DELETE("/archives/:filename", ah.Delete)
	v1.GET("/archives/:filename/download", ah.Download)
	v1.GET("/archives/:filename/images/:index", ah.Image)

	return &storyFixture{engine: r, text: text, images: images, archive: arc, service: svc}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doJSONWith(t, h, method, path, body, nil)
}

func doJSONWith(t *testing.T, h http.Handler, method, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// postStream 通过真实的 HTTP 服务读取完整的 SSE 响应，c.Stream 需要 CloseNotifier
func postStream(t *testing.T, h http.Handler, path string, body any) (*http.Response, string) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	resp, err := srv.Client().Post(srv.URL+path, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

type envelope[T any] struct {
	Code int `json:"code"`
	Data T   `json:"data"`
	Meta *struct {
		Total int `json:"total"`
	} `json:"meta"`
	Error *struct {
		ErrorCode string `json:"error_code"`
		Details   string `json:"details"`
	} `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var out envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func ninjaPrompt() map[string]any {
	return map[string]any{"idea": "a ninja in space", "genre": "Sci-Fi", "tone": "Serious", "numScenes": 3}
}
