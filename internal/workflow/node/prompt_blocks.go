package node

import (
	"fmt"
	"strings"
)

// OptionalBlock value 为空时返回空串，否则按 format 渲染并前后留空行
func OptionalBlock(format, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return "\n" + fmt.Sprintf(format, value) + "\n"
}

// BuildSceneMarkers 生成场景格式示例，每个场景一个 SCENE 标记
func BuildSceneMarkers(n int) string {
	lines := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		switch i {
		case 1:
			lines = append(lines, "SCENE 1: [Vivid, detailed description of the first scene. Make it highly visual and descriptive, focusing on the character's experience.]")
		case 2:
			lines = append(lines, "SCENE 2: [Vivid, detailed description of the second scene that builds from the first. Again, make it visual and incorporate character details.]")
		default:
			lines = append(lines, fmt.Sprintf("SCENE %d: [Vivid, detailed description of scene %d that advances the story. Make it visual and ensure character continuity.]", i, i))
		}
	}
	return strings.Join(lines, "\n\n")
}

// BuildImageConcept 组合场景文本与角色外貌，作为提示词增强的输入
func BuildImageConcept(sceneText, physical string) string {
	return fmt.Sprintf("Scene description: %s\n\nMain character appearance: %s",
		strings.TrimSpace(sceneText), strings.TrimSpace(physical))
}
