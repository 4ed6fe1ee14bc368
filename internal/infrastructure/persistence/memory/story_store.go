// Package memory 提供进程内的故事存储
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/domain/repository"
)

var _ repository.StoryStore = (*StoryStore)(nil)

// StoryStore 基于 go-cache 的故事存储：条目按 TTL 过期，超过容量时淘汰创建时间最早的故事。
// 存取都做深拷贝，调用方修改返回值不会影响已存储的数据。
type StoryStore struct {
	mu       sync.Mutex
	items    *cache.Cache
	capacity int
}

// NewStoryStore capacity <= 0 表示不限容量，ttl <= 0 表示不过期
func NewStoryStore(capacity int, ttl time.Duration) *StoryStore {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl / 2
		if cleanup < time.Minute {
			cleanup = time.Minute
		}
	}
	return &StoryStore{items: cache.New(expiration, cleanup), capacity: capacity}
}

func (s *StoryStore) Get(_ context.Context, id string) (*entity.Story, error) {
	v, ok := s.items.Get(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return v.(*entity.Story).Clone(), nil
}

func (s *StoryStore) Put(_ context.Context, story *entity.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items.SetDefault(story.ID, story.Clone())
	if s.capacity <= 0 {
		return nil
	}

	live := s.items.Items()
	if len(live) <= s.capacity {
		return nil
	}
	stories := make([]*entity.Story, 0, len(live))
	for _, item := range live {
		stories = append(stories, item.Object.(*entity.Story))
	}
	sort.Slice(stories, func(i, j int) bool { return older(stories[i], stories[j]) })
	for _, st := range stories[:len(stories)-s.capacity] {
		s.items.Delete(st.ID)
	}
	return nil
}

func (s *StoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items.Get(id); !ok {
		return false, nil
	}
	s.items.Delete(id)
	return true, nil
}

func (s *StoryStore) List(_ context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Story], error) {
	live := s.items.Items()
	stories := make([]*entity.Story, 0, len(live))
	for _, item := range live {
		stories = append(stories, item.Object.(*entity.Story).Clone())
	}
	sort.Slice(stories, func(i, j int) bool { return older(stories[j], stories[i]) })
	return repository.Page(stories, pagination), nil
}

// older 创建时间早的在前，时间相同时按 ID 排序保证稳定
func older(a, b *entity.Story) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
