package model

import "dreamteller-api/internal/domain/entity"

// GenerationOptions 单次调用的模型参数覆盖
type GenerationOptions struct {
	Temperature *float32
	MaxTokens   *int
}

type SketchInput struct {
	Prompt entity.StoryPrompt
}

type CharacterInput struct {
	Sketch        string
	CharacterHint string
}

type ScenesInput struct {
	Sketch           string
	CharacterProfile string
	NumScenes        int
}

type ImagePromptInput struct {
	SceneText        string
	CharacterProfile string
}

type TitleInput struct {
	Idea         string
	Sketch       string
	PreviewRunes int
}

type RegenerateSceneInput struct {
	Prompt      entity.StoryPrompt
	CurrentText string
	SceneIndex  int
	Options     GenerationOptions
}
