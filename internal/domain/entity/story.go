// Package entity 定义领域实体
package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultArtStyle 默认画风，生成图像提示词时不追加风格后缀
const DefaultArtStyle = "Digital Painting"

// Stage 生成流水线阶段
type Stage string

const (
	StagePending      Stage = "pending"
	StageSketch       Stage = "sketch"
	StageCharacter    Stage = "character"
	StageScenes       Stage = "scenes"
	StageIllustration Stage = "illustration"
	StageTitle        Stage = "title"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// StoryPrompt 用户提交的生成参数
type StoryPrompt struct {
	Idea          string `json:"idea"`
	Genre         string `json:"genre"`
	Tone          string `json:"tone"`
	MainCharacter string `json:"mainCharacter,omitempty"`
	Setting       string `json:"setting,omitempty"`
	ArtStyle      string `json:"artStyle"`
	NumScenes     int    `json:"numScenes"`
}

// PromptRules 生成参数的校验规则
type PromptRules struct {
	MinScenes       int
	MaxScenes       int
	DefaultScenes   int
	DefaultArtStyle string
}

// DefaultPromptRules 返回内置的校验规则
func DefaultPromptRules() PromptRules {
	return PromptRules{MinScenes: 3, MaxScenes: 10, DefaultScenes: 5, DefaultArtStyle: DefaultArtStyle}
}

// PromptValidationError 参数校验失败
type PromptValidationError struct {
	Field  string
	Reason string
}

func (e *PromptValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Normalize 校验并补全默认值，返回规范化后的副本
// NumScenes 为 0 时取默认值，越界直接拒绝
func (p StoryPrompt) Normalize(rules PromptRules) (StoryPrompt, error) {
	p.Idea = strings.TrimSpace(p.Idea)
	p.Genre = strings.TrimSpace(p.Genre)
	p.Tone = strings.TrimSpace(p.Tone)
	p.MainCharacter = strings.TrimSpace(p.MainCharacter)
	p.Setting = strings.TrimSpace(p.Setting)
	p.ArtStyle = strings.TrimSpace(p.ArtStyle)

	if p.Idea == "" {
		return p, &PromptValidationError{Field: "idea", Reason: "must not be empty"}
	}
	if p.NumScenes == 0 {
		p.NumScenes = rules.DefaultScenes
	}
	if p.NumScenes < rules.MinScenes || p.NumScenes > rules.MaxScenes {
		return p, &PromptValidationError{
			Field:  "numScenes",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", rules.MinScenes, rules.MaxScenes, p.NumScenes),
		}
	}
	if p.ArtStyle == "" {
		p.ArtStyle = rules.DefaultArtStyle
	}
	return p, nil
}

// Scene 故事中的一个场景
type Scene struct {
	Text        string `json:"text"`
	ImageURL    string `json:"imageUrl,omitempty"`
	ImagePrompt string `json:"imagePrompt,omitempty"`
}

// HasImage 场景是否已有插图
func (s Scene) HasImage() bool {
	return s.ImageURL != ""
}

// Story 生成结果
type Story struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Prompt    StoryPrompt `json:"prompt"`
	Scenes    []Scene     `json:"scenes"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty"`
}

// NewStory 创建新故事，CreatedAt 此后不再修改
func NewStory(prompt StoryPrompt) *Story {
	return &Story{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Scenes:    make([]Scene, 0, prompt.NumScenes),
		CreatedAt: time.Now().UTC(),
	}
}

// IsComplete 场景数量是否与请求一致
func (s *Story) IsComplete() bool {
	return len(s.Scenes) == s.Prompt.NumScenes
}

// ReplaceSceneText 替换场景文本并记录修改时间
func (s *Story) ReplaceSceneText(index int, text string) error {
	if index < 0 || index >= len(s.Scenes) {
		return fmt.Errorf("scene index %d out of range [0, %d)", index, len(s.Scenes))
	}
	s.Scenes[index].Text = text
	s.Touch()
	return nil
}

// Touch 更新修改时间
func (s *Story) Touch() {
	now := time.Now().UTC()
	s.UpdatedAt = &now
}

// ImageCount 已有插图的场景数
func (s *Story) ImageCount() int {
	n := 0
	for _, sc := range s.Scenes {
		if sc.HasImage() {
			n++
		}
	}
	return n
}

// Clone 深拷贝，供并发读者使用
func (s *Story) Clone() *Story {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Scenes = append([]Scene(nil), s.Scenes...)
	if s.UpdatedAt != nil {
		t := *s.UpdatedAt
		cp.UpdatedAt = &t
	}
	return &cp
}
