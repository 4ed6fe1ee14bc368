package archive

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shouni/go-http-kit/pkg/httpkit"

	"dreamteller-api/pkg/logger"
	"dreamteller-api/pkg/metrics"
)

// HTTPClient 只需要按 URL 取字节，httpkit.ClientInterface 满足它
type HTTPClient interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// FetcherConfig 图片下载参数
type FetcherConfig struct {
	Timeout      time.Duration
	RetryTimeout time.Duration
	MaxBytes     int64
	CacheTTL     time.Duration
}

// ImageFetcher 下载场景插图：首次用短超时客户端，失败后换长超时客户端重试一次。
// 成功结果按 URL 短期缓存，重复保存同一故事时不再下载。
type ImageFetcher struct {
	client      HTTPClient
	retryClient HTTPClient
	cfg         FetcherConfig
	cache       *cache.Cache
}

// NewImageFetcher client 为 nil 时按配置超时用 httpkit 构建
func NewImageFetcher(cfg FetcherConfig, client, retryClient HTTPClient) *ImageFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryTimeout <= 0 {
		cfg.RetryTimeout = 2 * cfg.Timeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 20 << 20
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if client == nil {
		client = httpkit.New(cfg.Timeout)
	}
	if retryClient == nil {
		retryClient = httpkit.New(cfg.RetryTimeout)
	}
	return &ImageFetcher{
		client:      client,
		retryClient: retryClient,
		cfg:         cfg,
		cache:       cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
}

// Fetch 返回图片字节，data URL 直接解码
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if isDataURL(rawURL) {
		return decodeDataURL(rawURL)
	}
	if cached, ok := f.cache.Get(rawURL); ok {
		if data, ok := cached.([]byte); ok {
			return data, nil
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		metrics.ArchiveImageFetchTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("unsupported image url %q", rawURL)
	}

	data, err := f.get(ctx, f.client, rawURL, f.cfg.Timeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn(ctx, "image download failed, retrying with longer timeout",
			"url", rawURL, "error", err.Error())
		data, err = f.get(ctx, f.retryClient, rawURL, f.cfg.RetryTimeout)
		if err != nil {
			metrics.ArchiveImageFetchTotal.WithLabelValues("failed").Inc()
			return nil, err
		}
		metrics.ArchiveImageFetchTotal.WithLabelValues("retried").Inc()
	} else {
		metrics.ArchiveImageFetchTotal.WithLabelValues("ok").Inc()
	}

	f.cache.SetDefault(rawURL, data)
	return data, nil
}

func (f *ImageFetcher) get(ctx context.Context, client HTTPClient, rawURL string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := client.FetchBytes(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("image download failed: %w", err)
	}
	if int64(len(data)) > f.cfg.MaxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", f.cfg.MaxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image download returned empty body")
	}
	return data, nil
}

// decodeDataURL 解析 data:<mime>;base64,<payload>
func decodeDataURL(raw string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data url")
	}
	if !strings.HasSuffix(header, ";base64") {
		text, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("malformed data url payload: %w", err)
		}
		return []byte(text), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed data url payload: %w", err)
	}
	return data, nil
}

func isDataURL(raw string) bool {
	return strings.HasPrefix(raw, "data:")
}

func encodeDataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
