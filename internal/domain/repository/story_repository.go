package repository

import (
	"context"

	"dreamteller-api/internal/domain/entity"
)

// StoryStore 已生成故事的存储
// 实现需要有容量或过期上限，不做无界增长
type StoryStore interface {
	// Get 获取故事，不存在时返回 ErrNotFound
	Get(ctx context.Context, id string) (*entity.Story, error)

	// Put 写入或覆盖故事
	Put(ctx context.Context, story *entity.Story) error

	// Delete 删除故事，返回是否存在
	Delete(ctx context.Context, id string) (bool, error)

	// List 按创建时间倒序列出故事
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.Story], error)
}
