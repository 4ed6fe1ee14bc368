package story

import (
	"context"
	"errors"

	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/domain/repository"
	apperrors "dreamteller-api/pkg/errors"
	"dreamteller-api/pkg/logger"
)

// StoryService 生成故事并保存到故事存储
type StoryService struct {
	gen   *Generator
	store repository.StoryStore
}

func NewStoryService(gen *Generator, store repository.StoryStore) *StoryService {
	return &StoryService{gen: gen, store: store}
}

// Rules 返回生成参数校验规则
func (s *StoryService) Rules() entity.PromptRules {
	return s.gen.Rules()
}

// Generate 生成故事并写入存储。写入失败只记录日志，生成结果仍然返回。
func (s *StoryService) Generate(ctx context.Context, prompt entity.StoryPrompt, opts ...GenerateOption) (*entity.Story, error) {
	story, err := s.gen.Generate(ctx, prompt, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, story); err != nil {
		logger.Error(ctx, "failed to store generated story", err, "story_id", story.ID)
	}
	return story, nil
}

// Get 获取已生成的故事
func (s *StoryService) Get(ctx context.Context, id string) (*entity.Story, error) {
	story, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrStoryNotFound.WithDetail(id)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to load story")
	}
	return story, nil
}

// List 按创建时间倒序分页列出故事
func (s *StoryService) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Story], error) {
	result, err := s.store.List(ctx, pagination)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to list stories")
	}
	return result, nil
}

// Delete 删除故事，不存在时返回 StoryNotFound
func (s *StoryService) Delete(ctx context.Context, id string) error {
	existed, err := s.store.Delete(ctx, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeCacheError, "failed to delete story")
	}
	if !existed {
		return apperrors.ErrStoryNotFound.WithDetail(id)
	}
	return nil
}

// RegenerateText 基于调用方提供的上下文重写一个场景
func (s *StoryService) RegenerateText(ctx context.Context, prompt entity.StoryPrompt, currentText string, sceneIndex int) (string, error) {
	return s.gen.RegenerateScene(ctx, prompt, currentText, sceneIndex)
}

// RegenerateStoredScene 重写已保存故事中的一个场景并回写，插图保持不变
func (s *StoryService) RegenerateStoredScene(ctx context.Context, id string, sceneIndex int) (*entity.Story, error) {
	story, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sceneIndex < 0 || sceneIndex >= len(story.Scenes) {
		return nil, apperrors.NewValidationError("sceneIndex must be between 0 and %d, got %d", len(story.Scenes)-1, sceneIndex)
	}

	ctx = logger.WithContext(ctx, logger.StoryIDKey, id)
	text, err := s.gen.RegenerateScene(ctx, story.Prompt, story.Scenes[sceneIndex].Text, sceneIndex)
	if err != nil {
		return nil, err
	}
	if err := story.ReplaceSceneText(sceneIndex, text); err != nil {
		return nil, apperrors.NewValidationError("%s", err.Error())
	}
	if err := s.store.Put(ctx, story); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to store story")
	}
	logger.Info(ctx, "scene regenerated", "scene_index", sceneIndex)
	return story, nil
}
