package imagegen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	workflowport "dreamteller-api/internal/workflow/port"
	apperrors "dreamteller-api/pkg/errors"
)

// fakeDoer 记录最后一次请求，返回预设响应
type fakeDoer struct {
	body    []byte
	err     error
	lastReq *http.Request
	payload []byte
}

func (f *fakeDoer) DoRequest(req *http.Request) ([]byte, error) {
	f.lastReq = req
	if req.Body != nil {
		f.payload, _ = io.ReadAll(req.Body)
	}
	return f.body, f.err
}

func TestDiffusionClient_GenerateImage(t *testing.T) {
	doer := &fakeDoer{body: []byte(`{"images":[{"url":"https://cdn.test/a.png","width":1024,"height":768,"content_type":"image/png"}],"seed":43}`)}
	c := NewDiffusionClient(DiffusionConfig{Endpoint: "https://fal.test/run", APIKey: "fal-test", SafetyChecker: true}, doer)

	res, err := c.GenerateImage(context.Background(), &workflowport.ImageRequest{
		Prompt:        "a ninja on a space station",
		Size:          workflowport.ImageSize{Named: workflowport.SizeLandscape16x9},
		Steps:         50,
		GuidanceScale: 7.5,
		Seed:          43,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/a.png", res.URL)
	assert.Equal(t, int64(43), res.Seed)
	assert.Equal(t, 1024, res.Width)

	require.NotNil(t, doer.lastReq)
	assert.Equal(t, http.MethodPost, doer.lastReq.Method)
	assert.Equal(t, "https://fal.test/run", doer.lastReq.URL.String())
	assert.Equal(t, "Key fal-test", doer.lastReq.Header.Get("Authorization"))
	assert.Equal(t, "application/json", doer.lastReq.Header.Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(doer.payload, &got))
	assert.Equal(t, "a ninja on a space station", got["prompt"])
	assert.Equal(t, "landscape_16_9", got["image_size"])
	assert.Equal(t, float64(50), got["num_inference_steps"])
	assert.Equal(t, float64(43), got["seed"])
	assert.Equal(t, float64(1), got["num_images"])
	assert.Equal(t, true, got["enable_safety_checker"])
}

func TestDiffusionClient_ExplicitSize(t *testing.T) {
	doer := &fakeDoer{body: []byte(`{"images":[{"url":"https://cdn.test/b.png"}]}`)}
	c := NewDiffusionClient(DiffusionConfig{Endpoint: "https://fal.test/run", APIKey: "k"}, doer)

	res, err := c.GenerateImage(context.Background(), &workflowport.ImageRequest{
		Prompt: "castle",
		Size:   workflowport.ImageSize{Width: 768, Height: 512},
		Seed:   7,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Seed)

	var got struct {
		ImageSize diffusionSize `json:"image_size"`
	}
	require.NoError(t, json.Unmarshal(doer.payload, &got))
	assert.Equal(t, diffusionSize{Width: 768, Height: 512}, got.ImageSize)
}

func TestDiffusionClient_ErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   apperrors.ProviderKind
	}{
		{http.StatusUnauthorized, apperrors.ProviderAuth},
		{http.StatusTooManyRequests, apperrors.ProviderRateLimit},
		{http.StatusUnprocessableEntity, apperrors.ProviderInvalidInput},
		{http.StatusBadGateway, apperrors.ProviderTransient},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			doer := &fakeDoer{err: fmt.Errorf("request failed with status %d: {\"detail\":\"nope\"}", tc.status)}
			c := NewDiffusionClient(DiffusionConfig{Endpoint: "https://fal.test/run", APIKey: "k"}, doer)
			_, err := c.GenerateImage(context.Background(), &workflowport.ImageRequest{Prompt: "x"})
			kind, ok := apperrors.ProviderKindOf(err)
			require.True(t, ok)
			assert.Equal(t, tc.kind, kind)
		})
	}

	doer := &fakeDoer{err: errors.New("dial tcp: connection refused")}
	_, err := NewDiffusionClient(DiffusionConfig{Endpoint: "https://fal.test/run", APIKey: "k"}, doer).
		GenerateImage(context.Background(), &workflowport.ImageRequest{Prompt: "x"})
	kind, ok := apperrors.ProviderKindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ProviderTransient, kind)
}

func TestDiffusionClient_EmptyImagesAndMissingKey(t *testing.T) {
	doer := &fakeDoer{body: []byte(`{"images":[]}`)}
	_, err := NewDiffusionClient(DiffusionConfig{Endpoint: "https://fal.test/run", APIKey: "k"}, doer).
		GenerateImage(context.Background(), &workflowport.ImageRequest{Prompt: "x"})
	assert.Error(t, err)

	doer = &fakeDoer{}
	_, err = NewDiffusionClient(DiffusionConfig{Endpoint: "https://fal.test/run"}, doer).
		GenerateImage(context.Background(), &workflowport.ImageRequest{Prompt: "x"})
	kind, _ := apperrors.ProviderKindOf(err)
	assert.Equal(t, apperrors.ProviderAuth, kind)
	assert.Nil(t, doer.lastReq, "no request without an api key")
}

func TestStatusFromError(t *testing.T) {
	assert.Equal(t, 503, statusFromError(errors.New("unexpected status code: 503")))
	assert.Equal(t, 401, statusFromError(errors.New("HTTP status 401 Unauthorized")))
	assert.Zero(t, statusFromError(errors.New("timeout after 200ms")))
}
