package story

import (
	"context"
	"time"

	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/domain/repository"
	"dreamteller-api/pkg/logger"
)

// CatalogCache 归档列表缓存
type CatalogCache interface {
	Catalog(ctx context.Context, ttl time.Duration, load func(context.Context) ([]*entity.ArchiveSummary, error)) ([]*entity.ArchiveSummary, error)
	Invalidate(ctx context.Context) error
}

// Library 故事归档库：在归档编解码之上加列表缓存
type Library struct {
	archive repository.ArchiveRepository
	catalog CatalogCache
	ttl     time.Duration
}

// NewLibrary 创建归档库，catalog 为 nil 或 ttl 非正时不缓存列表
func NewLibrary(archive repository.ArchiveRepository, catalog CatalogCache, ttl time.Duration) *Library {
	if ttl <= 0 {
		catalog = nil
	}
	return &Library{archive: archive, catalog: catalog, ttl: ttl}
}

// Save 写入归档并使列表缓存失效
func (l *Library) Save(ctx context.Context, story *entity.Story, filename string) (string, error) {
	name, err := l.archive.Save(ctx, story, filename)
	if err != nil {
		return "", err
	}
	l.invalidate(ctx)
	logger.Info(ctx, "story archived", "story_id", story.ID, "filename", name)
	return name, nil
}

func (l *Library) Load(ctx context.Context, filename string) (*entity.ArchivedStory, error) {
	return l.archive.Load(ctx, filename)
}

// List 返回归档摘要；缓存不可用时直接扫描目录
func (l *Library) List(ctx context.Context) ([]*entity.ArchiveSummary, error) {
	if l.catalog == nil {
		return l.archive.List(ctx)
	}

	summaries, err := l.catalog.Catalog(ctx, l.ttl, l.archive.List)
	if err == nil {
		return summaries, nil
	}
	logger.Warn(ctx, "archive catalog cache unavailable, scanning directory", "error", err.Error())
	return l.archive.List(ctx)
}

// Delete 删除归档，返回文件是否存在
func (l *Library) Delete(ctx context.Context, filename string) (bool, error) {
	existed, err := l.archive.Delete(ctx, filename)
	if err != nil {
		return false, err
	}
	if existed {
		l.invalidate(ctx)
	}
	return existed, nil
}

func (l *Library) Path(ctx context.Context, filename string) (string, error) {
	return l.archive.Path(ctx, filename)
}

func (l *Library) invalidate(ctx context.Context) {
	if l.catalog == nil {
		return
	}
	if err := l.catalog.Invalidate(ctx); err != nil {
		logger.Warn(ctx, "failed to invalidate archive catalog", "error", err.Error())
	}
}
