// Package prompt 管理故事各阶段的内嵌提示词模板
package prompt

import (
	"context"
	"embed"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// PromptID 模板标识，对应 templates/<id>.system.txt 与 templates/<id>.user.txt
type PromptID string

const (
	PromptStorySketchV1      PromptID = "story_sketch_v1"
	PromptCharacterProfileV1 PromptID = "character_profile_v1"
	PromptStoryScenesV1      PromptID = "story_scenes_v1"
	PromptImagePromptV1      PromptID = "image_prompt_v1"
	PromptStoryTitleV1       PromptID = "story_title_v1"
	PromptSceneRegenerateV1  PromptID = "scene_regenerate_v1"
)

// AllPrompts 流水线用到的全部模板
var AllPrompts = []PromptID{
	PromptStorySketchV1,
	PromptCharacterProfileV1,
	PromptStoryScenesV1,
	PromptImagePromptV1,
	PromptStoryTitleV1,
	PromptSceneRegenerateV1,
}

// Registry 创建时解析全部模板，之后只读，可并发使用。
// 模板使用 FString 语法（{var}）。
type Registry struct {
	templates map[PromptID]einoprompt.ChatTemplate
	broken    map[PromptID]error
}

func NewRegistry() *Registry {
	r := &Registry{
		templates: make(map[PromptID]einoprompt.ChatTemplate, len(AllPrompts)),
		broken:    make(map[PromptID]error),
	}
	for _, id := range AllPrompts {
		tpl, err := load(id)
		if err != nil {
			r.broken[id] = err
			continue
		}
		r.templates[id] = tpl
	}
	return r
}

// ChatTemplate 返回已解析的模板
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if tpl, ok := r.templates[id]; ok {
		return tpl, nil
	}
	if err, ok := r.broken[id]; ok {
		return nil, fmt.Errorf("prompt %s failed to load: %w", id, err)
	}
	return nil, fmt.Errorf("unknown prompt id: %s", id)
}

// Render 用 vars 渲染模板，得到 system + user 两条消息
func (r *Registry) Render(ctx context.Context, id PromptID, vars map[string]any) ([]*schema.Message, error) {
	tpl, err := r.ChatTemplate(id)
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt %s: %w", id, err)
	}
	return msgs, nil
}

func load(id PromptID) (einoprompt.ChatTemplate, error) {
	system, err := readTemplate(fmt.Sprintf("templates/%s.system.txt", id))
	if err != nil {
		return nil, err
	}
	user, err := readTemplate(fmt.Sprintf("templates/%s.user.txt", id))
	if err != nil {
		return nil, err
	}
	return einoprompt.FromMessages(schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	), nil
}

func readTemplate(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
