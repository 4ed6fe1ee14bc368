package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	wfmodel "dreamteller-api/internal/workflow/model"
	"dreamteller-api/internal/workflow/node"
	workflowport "dreamteller-api/internal/workflow/port"
	workflowprompt "dreamteller-api/internal/workflow/prompt"
)

// 各生成阶段的工作流名，用于 provider 路由与指标
const (
	WorkflowSketch      = "story_sketch"
	WorkflowCharacter   = "character_profile"
	WorkflowScenes      = "story_scenes"
	WorkflowImagePrompt = "image_prompt"
	WorkflowTitle       = "story_title"
	WorkflowRegenerate  = "scene_regenerate"
)

// StoryChain 组装各阶段提示词并调用文本生成
type StoryChain struct {
	text     workflowport.TextGenerator
	registry *workflowprompt.Registry
}

func NewStoryChain(text workflowport.TextGenerator, registry *workflowprompt.Registry) *StoryChain {
	if registry == nil {
		registry = workflowprompt.NewRegistry()
	}
	return &StoryChain{text: text, registry: registry}
}

// Sketch 生成故事草稿
func (c *StoryChain) Sketch(ctx context.Context, in *wfmodel.SketchInput) (string, error) {
	if in == nil || strings.TrimSpace(in.Prompt.Idea) == "" {
		return "", fmt.Errorf("idea is required")
	}
	p := in.Prompt
	return c.invoke(ctx, WorkflowSketch, workflowprompt.PromptStorySketchV1, map[string]any{
		"num_scenes":      p.NumScenes,
		"genre":           p.Genre,
		"tone":            strings.ToLower(p.Tone),
		"idea":            p.Idea,
		"character_block": node.OptionalBlock("The main character is described as: %s", p.MainCharacter),
		"setting_block":   node.OptionalBlock("The story is set in: %s", p.Setting),
	}, wfmodel.GenerationOptions{})
}

// Character 生成主角档案
func (c *StoryChain) Character(ctx context.Context, in *wfmodel.CharacterInput) (string, error) {
	if in == nil || strings.TrimSpace(in.Sketch) == "" {
		return "", fmt.Errorf("story sketch is required")
	}
	return c.invoke(ctx, WorkflowCharacter, workflowprompt.PromptCharacterProfileV1, map[string]any{
		"sketch": strings.TrimSpace(in.Sketch),
		"character_hint_block": node.OptionalBlock(
			"ADDITIONAL CHARACTER INFORMATION FROM USER:\n%s\n\nIncorporate these details into your character profile.",
			in.CharacterHint),
	}, wfmodel.GenerationOptions{})
}

// Scenes 生成带场景标记的全部场景文本（未解析）
func (c *StoryChain) Scenes(ctx context.Context, in *wfmodel.ScenesInput) (string, error) {
	if in == nil || strings.TrimSpace(in.Sketch) == "" {
		return "", fmt.Errorf("story sketch is required")
	}
	if in.NumScenes < 1 {
		return "", fmt.Errorf("num_scenes must be positive")
	}
	return c.invoke(ctx, WorkflowScenes, workflowprompt.PromptStoryScenesV1, map[string]any{
		"num_scenes":        in.NumScenes,
		"sketch":            strings.TrimSpace(in.Sketch),
		"character_profile": strings.TrimSpace(in.CharacterProfile),
		"scene_markers":     node.BuildSceneMarkers(in.NumScenes),
	}, wfmodel.GenerationOptions{})
}

// ImagePrompt 结合角色外貌把场景改写为图像提示词
func (c *StoryChain) ImagePrompt(ctx context.Context, in *wfmodel.ImagePromptInput) (string, error) {
	if in == nil || strings.TrimSpace(in.SceneText) == "" {
		return "", fmt.Errorf("scene text is required")
	}
	physical := node.ExtractPhysicalAppearance(in.CharacterProfile)
	return c.invoke(ctx, WorkflowImagePrompt, workflowprompt.PromptImagePromptV1, map[string]any{
		"input_concept": node.BuildImageConcept(in.SceneText, physical),
	}, wfmodel.GenerationOptions{})
}

// Title 生成故事标题，返回前去掉引号
func (c *StoryChain) Title(ctx context.Context, in *wfmodel.TitleInput) (string, error) {
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}
	preview := in.PreviewRunes
	if preview <= 0 {
		preview = 200
	}
	out, err := c.invoke(ctx, WorkflowTitle, workflowprompt.PromptStoryTitleV1, map[string]any{
		"idea":           strings.TrimSpace(in.Idea),
		"sketch_preview": node.TruncateByRunes(strings.TrimSpace(in.Sketch), preview),
	}, wfmodel.GenerationOptions{})
	if err != nil {
		return "", err
	}
	return node.CleanTitle(out), nil
}

// RegenerateScene 重写单个场景
func (c *StoryChain) RegenerateScene(ctx context.Context, in *wfmodel.RegenerateSceneInput) (string, error) {
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.CurrentText) == "" {
		return "", fmt.Errorf("current scene text is required")
	}
	if in.SceneIndex < 0 {
		return "", fmt.Errorf("scene index must not be negative")
	}
	p := in.Prompt
	return c.invoke(ctx, WorkflowRegenerate, workflowprompt.PromptSceneRegenerateV1, map[string]any{
		"scene_number":    in.SceneIndex + 1,
		"genre":           p.Genre,
		"tone":            p.Tone,
		"idea":            p.Idea,
		"current_text":    strings.TrimSpace(in.CurrentText),
		"character_block": node.OptionalBlock("MAIN CHARACTER:\n%s", p.MainCharacter),
		"setting_block":   node.OptionalBlock("SETTING:\n%s", p.Setting),
	}, in.Options)
}

func (c *StoryChain) invoke(ctx context.Context, workflow string, id workflowprompt.PromptID, vars map[string]any, opts wfmodel.GenerationOptions) (string, error) {
	if c == nil || c.text == nil {
		return "", fmt.Errorf("text generator not configured")
	}
	msgs, err := c.format(ctx, id, vars)
	if err != nil {
		return "", err
	}
	out, err := c.text.Generate(ctx, &workflowport.TextRequest{
		Workflow:    workflow,
		Messages:    msgs,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *StoryChain) format(ctx context.Context, id workflowprompt.PromptID, vars map[string]any) ([]*schema.Message, error) {
	return c.registry.Render(ctx, id, vars)
}
