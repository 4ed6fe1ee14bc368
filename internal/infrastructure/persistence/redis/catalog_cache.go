package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"dreamteller-api/internal/domain/entity"
)

// CatalogCache 缓存归档目录的摘要列表。
// 键带上归档目录，多个实例指向不同目录时互不干扰。
type CatalogCache struct {
	client *Client
	key    string
	group  singleflight.Group
}

// NewCatalogCache 为指定归档目录创建列表缓存
func NewCatalogCache(client *Client, archiveDir string) *CatalogCache {
	return &CatalogCache{client: client, key: client.key("archive", "catalog", archiveDir)}
}

// Catalog 命中时直接返回缓存；未命中时由 load 扫描目录，同一时刻只有一个扫描在跑
func (c *CatalogCache) Catalog(ctx context.Context, ttl time.Duration, load func(context.Context) ([]*entity.ArchiveSummary, error)) ([]*entity.ArchiveSummary, error) {
	ctx, span := tracer.Start(ctx, "redis.CatalogCache.Catalog")
	defer span.End()

	if summaries, ok, err := c.read(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	} else if ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return summaries, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	v, err, shared := c.group.Do(c.key, func() (any, error) {
		summaries, err := load(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to encode archive catalog: %w", err)
		}
		if err := c.client.rdb.Set(ctx, c.key, raw, ttl).Err(); err != nil {
			span.RecordError(err)
		}
		return summaries, nil
	})
	span.SetAttributes(attribute.Bool("cache.shared", shared))
	if err != nil {
		return nil, err
	}
	return v.([]*entity.ArchiveSummary), nil
}

// Invalidate 在归档写入或删除后清掉缓存
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.CatalogCache.Invalidate")
	defer span.End()
	return c.client.rdb.Del(ctx, c.key).Err()
}

func (c *CatalogCache) read(ctx context.Context) ([]*entity.ArchiveSummary, bool, error) {
	raw, err := c.client.rdb.Get(ctx, c.key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var summaries []*entity.ArchiveSummary
	if err := json.Unmarshal(raw, &summaries); err != nil {
		// 旧格式或损坏的缓存按未命中处理
		return nil, false, nil
	}
	return summaries, true, nil
}
