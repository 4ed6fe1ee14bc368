package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"

	workflowport "dreamteller-api/internal/workflow/port"
	apperrors "dreamteller-api/pkg/errors"
)

const diffusionProvider = "diffusion"

// DiffusionConfig 文生图 HTTP 服务配置（fal.ai 风格接口）
type DiffusionConfig struct {
	Endpoint      string
	APIKey        string
	SafetyChecker bool
	Timeout       time.Duration
}

// HTTPDoer 发送已构建好的请求并返回 2xx 响应体，httpkit.ClientInterface 满足它
type HTTPDoer interface {
	DoRequest(req *http.Request) ([]byte, error)
}

// DiffusionClient 调用托管扩散模型的 HTTP 客户端
type DiffusionClient struct {
	cfg    DiffusionConfig
	client HTTPDoer
}

// NewDiffusionClient client 为 nil 时用 httpkit 按 cfg.Timeout 构建
func NewDiffusionClient(cfg DiffusionConfig, client HTTPDoer) *DiffusionClient {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = httpkit.New(timeout)
	}
	return &DiffusionClient{cfg: cfg, client: client}
}

// httpkit 的非 2xx 错误只在消息里带状态码
var statusPattern = regexp.MustCompile(`(?i)status(?:\s*code)?\D{0,3}([1-5]\d{2})`)

func statusFromError(err error) int {
	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	code, _ := strconv.Atoi(m[1])
	return code
}

type diffusionSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type diffusionRequest struct {
	Prompt              string  `json:"prompt"`
	NegativePrompt      string  `json:"negative_prompt,omitempty"`
	ImageSize           any     `json:"image_size"`
	NumInferenceSteps   int     `json:"num_inference_steps,omitempty"`
	GuidanceScale       float64 `json:"guidance_scale,omitempty"`
	Seed                int64   `json:"seed"`
	NumImages           int     `json:"num_images"`
	EnableSafetyChecker bool    `json:"enable_safety_checker"`
}

type diffusionImage struct {
	URL         string `json:"url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ContentType string `json:"content_type"`
}

type diffusionResponse struct {
	Images []diffusionImage `json:"images"`
	Seed   int64            `json:"seed"`
}

// GenerateImage 同步生成一张图片并返回其 URL
func (c *DiffusionClient) GenerateImage(ctx context.Context, req *workflowport.ImageRequest) (*workflowport.ImageResult, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("image prompt is required")
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, apperrors.NewProviderError(apperrors.ProviderAuth, diffusionProvider, 0,
			fmt.Errorf("image api key is not configured"))
	}

	body, err := json.Marshal(diffusionRequest{
		Prompt:              req.Prompt,
		NegativePrompt:      req.NegativePrompt,
		ImageSize:           sizeParam(req.Size),
		NumInferenceSteps:   req.Steps,
		GuidanceScale:       req.GuidanceScale,
		Seed:                req.Seed,
		NumImages:           1,
		EnableSafetyChecker: c.cfg.SafetyChecker,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode diffusion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build diffusion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Key "+c.cfg.APIKey)

	respBody, err := c.client.DoRequest(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.ClassifyProviderError(diffusionProvider, statusFromError(err),
			fmt.Errorf("diffusion request failed: %w", err))
	}

	var out diffusionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, apperrors.NewProviderError(apperrors.ProviderTransient, diffusionProvider, http.StatusOK,
			fmt.Errorf("failed to decode diffusion response: %w", err))
	}
	if len(out.Images) == 0 || out.Images[0].URL == "" {
		return nil, apperrors.NewProviderError(apperrors.ProviderTransient, diffusionProvider, http.StatusOK,
			fmt.Errorf("diffusion response contained no images"))
	}

	img := out.Images[0]
	seed := out.Seed
	if seed == 0 {
		seed = req.Seed
	}
	return &workflowport.ImageResult{
		URL:         img.URL,
		ContentType: img.ContentType,
		Width:       img.Width,
		Height:      img.Height,
		Seed:        seed,
	}, nil
}

// sizeParam 预设尺寸用名称传递，否则传宽高
func sizeParam(s workflowport.ImageSize) any {
	if s.Named != "" {
		return string(s.Named)
	}
	if s.Width > 0 && s.Height > 0 {
		return diffusionSize{Width: s.Width, Height: s.Height}
	}
	return string(workflowport.SizeLandscape4x3)
}
