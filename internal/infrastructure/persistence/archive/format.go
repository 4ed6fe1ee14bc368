package archive

import (
	"fmt"
	"net/http"
	"time"

	"dreamteller-api/internal/domain/entity"
)

const (
	metadataFile = "metadata.json"
	imageDir     = "images"
)

// metadata 归档内 metadata.json 的结构
type metadata struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Prompt       entity.StoryPrompt `json:"prompt"`
	NumScenes    int                `json:"num_scenes"`
	CreationDate string             `json:"creation_date,omitempty"`
	UpdatedAt    string             `json:"updated_at,omitempty"`
	Scenes       []sceneMetadata    `json:"scenes"`
}

type sceneMetadata struct {
	Index       *int   `json:"index"`
	Text        string `json:"text"`
	ImageURL    string `json:"imageUrl"`
	ImagePrompt string `json:"imagePrompt"`
	ImageFile   string `json:"image_file,omitempty"`
}

func imagePath(index int, ext string) string {
	return fmt.Sprintf("%s/scene_%d.%s", imageDir, index, ext)
}

// imageExt 按内容嗅探扩展名，无法识别时按 png 处理
func imageExt(data []byte) (ext, contentType string) {
	contentType = http.DetectContentType(data)
	switch contentType {
	case "image/jpeg":
		return "jpg", contentType
	case "image/gif":
		return "gif", contentType
	case "image/webp":
		return "webp", contentType
	case "image/bmp":
		return "bmp", contentType
	default:
		return "png", "image/png"
	}
}

// 写入使用 RFC3339；读取同时兼容不带时区的 ISO-8601
var creationDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range creationDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
