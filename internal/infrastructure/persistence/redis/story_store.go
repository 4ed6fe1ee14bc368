package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/domain/repository"
)


var _ repository.StoryStore = (*StoryStore)(nil)

// StoryStore 以 JSON 形式存放故事，键带 TTL；有序集合按创建时间索引，超过容量时淘汰最旧的故事
type StoryStore struct {
	client   *Client
	capacity int
	ttl      time.Duration
}

func NewStoryStore(client *Client, capacity int, ttl time.Duration) *StoryStore {
	return &StoryStore{client: client, capacity: capacity, ttl: ttl}
}

func (s *StoryStore) storyKey(id string) string {
	return s.client.key("story", id)
}

func (s *StoryStore) indexKey() string {
	return s.client.key("stories", "index")
}

func (s *StoryStore) Get(ctx context.Context, id string) (*entity.Story, error) {
	ctx, span := tracer.Start(ctx, "redis.StoryStore.Get")
	defer span.End()

	raw, err := s.client.rdb.Get(ctx, s.storyKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, repository.ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	var story entity.Story
	if err := json.Unmarshal(raw, &story); err != nil {
		return nil, fmt.Errorf("failed to decode story %s: %w", id, err)
	}
	return &story, nil
}

func (s *StoryStore) Put(ctx context.Context, story *entity.Story) error {
	ctx, span := tracer.Start(ctx, "redis.StoryStore.Put")
	defer span.End()

	raw, err := json.Marshal(story)
	if err != nil {
		return fmt.Errorf("failed to encode story: %w", err)
	}

	pipe := s.client.rdb.TxPipeline()
	pipe.Set(ctx, s.storyKey(story.ID), raw, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(story.CreatedAt.UnixMilli()), Member: story.ID})
	countCmd := pipe.ZCard(ctx, s.indexKey())
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to put story: %w", err)
	}

	if excess := countCmd.Val() - int64(s.capacity); s.capacity > 0 && excess > 0 {
		evicted, err := s.client.rdb.ZPopMin(ctx, s.indexKey(), excess).Result()
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to evict stories: %w", err)
		}
		keys := make([]string, 0, len(evicted))
		for _, z := range evicted {
			keys = append(keys, s.storyKey(fmt.Sprint(z.Member)))
		}
		if len(keys) > 0 {
			if err := s.client.rdb.Del(ctx, keys...).Err(); err != nil {
				span.RecordError(err)
			}
		}
	}
	return nil
}

func (s *StoryStore) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.StoryStore.Delete")
	defer span.End()

	pipe := s.client.rdb.TxPipeline()
	delCmd := pipe.Del(ctx, s.storyKey(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to delete story: %w", err)
	}
	return delCmd.Val() > 0, nil
}

// List 按创建时间倒序分页；已过期的索引项会被顺带清理
func (s *StoryStore) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Story], error) {
	ctx, span := tracer.Start(ctx, "redis.StoryStore.List")
	defer span.End()

	start := int64(pagination.Offset())
	stop := start + int64(pagination.Limit()) - 1
	ids, err := s.client.rdb.ZRevRange(ctx, s.indexKey(), start, stop).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	total, err := s.client.rdb.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to count stories: %w", err)
	}
	if len(ids) == 0 {
		return repository.NewPagedResult([]*entity.Story{}, total, pagination), nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.storyKey(id)
	}
	values, err := s.client.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load stories: %w", err)
	}

	stories := make([]*entity.Story, 0, len(values))
	var expired []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var story entity.Story
		if err := json.Unmarshal([]byte(raw), &story); err != nil {
			expired = append(expired, ids[i])
			continue
		}
		stories = append(stories, &story)
	}
	if len(expired) > 0 {
		_ = s.client.rdb.ZRem(ctx, s.indexKey(), expired...).Err()
		total -= int64(len(expired))
	}
	return repository.NewPagedResult(stories, total, pagination), nil
}
