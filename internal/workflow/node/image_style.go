package node

import (
	"strings"

	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/workflow/port"
)

var styleSizes = map[string]port.NamedSize{
	"Digital Painting":             port.SizeLandscape4x3,
	"Watercolor":                   port.SizeLandscape4x3,
	"3D Rendered":                  port.SizeLandscape4x3,
	"Children's Book Illustration": port.SizeLandscape4x3,
	"Pixel Art":                    port.SizeSquareHD,
	"Comic Book":                   port.SizeLandscape16x9,
	"Concept Art":                  port.SizeLandscape16x9,
}

// ImageSizeForStyle 按画风选择预定义尺寸，未知画风使用 4:3 横图
func ImageSizeForStyle(style string) port.NamedSize {
	if size, ok := styleSizes[strings.TrimSpace(style)]; ok {
		return size
	}
	return port.SizeLandscape4x3
}

// ApplyStyleSuffix 非默认画风时追加风格说明
func ApplyStyleSuffix(prompt, style string) string {
	style = strings.TrimSpace(style)
	if style == "" || style == entity.DefaultArtStyle {
		return prompt
	}
	return prompt + " in " + style + " style"
}

// SceneSeed 场景的确定性随机种子
func SceneSeed(base int64, sceneIndex int) int64 {
	return base + int64(sceneIndex)
}
