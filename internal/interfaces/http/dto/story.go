package dto

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"dreamteller-api/internal/domain/entity"
)

// StoryPromptRequest 生成参数，字段名与前端保持一致
type StoryPromptRequest struct {
	Idea          string `json:"idea" binding:"max=4000"`
	Genre         string `json:"genre" binding:"max=64"`
	Tone          string `json:"tone" binding:"max=64"`
	MainCharacter string `json:"mainCharacter" binding:"max=2000"`
	Setting       string `json:"setting" binding:"max=2000"`
	ArtStyle      string `json:"artStyle" binding:"max=64"`
	NumScenes     int    `json:"numScenes" binding:"min=0"`
}

// ToEntity 转换为领域参数，校验由领域层统一完成
func (r StoryPromptRequest) ToEntity() entity.StoryPrompt {
	return entity.StoryPrompt{
		Idea:          r.Idea,
		Genre:         r.Genre,
		Tone:          r.Tone,
		MainCharacter: r.MainCharacter,
		Setting:       r.Setting,
		ArtStyle:      r.ArtStyle,
		NumScenes:     r.NumScenes,
	}
}

// RegenerateTextRequest 重写单个场景
type RegenerateTextRequest struct {
	Prompt      StoryPromptRequest `json:"prompt"`
	CurrentText string             `json:"current_text" binding:"required"`
	SceneIndex  *int               `json:"scene_index" binding:"required"`
}

// RegenerateTextResponse 重写结果
type RegenerateTextResponse struct {
	Text string `json:"text"`
}

// SceneResponse 场景
type SceneResponse struct {
	Index       int    `json:"index"`
	Text        string `json:"text"`
	ImageURL    string `json:"imageUrl,omitempty"`
	ImagePrompt string `json:"imagePrompt,omitempty"`
}

// StoryResponse 故事
type StoryResponse struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Prompt    entity.StoryPrompt `json:"prompt"`
	Scenes    []SceneResponse    `json:"scenes"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt *time.Time         `json:"updated_at,omitempty"`
}

// ToStoryResponse 将领域实体转换为响应 DTO
func ToStoryResponse(s *entity.Story) *StoryResponse {
	if s == nil {
		return nil
	}
	resp := &StoryResponse{
		ID:        s.ID,
		Title:     s.Title,
		Prompt:    s.Prompt,
		Scenes:    make([]SceneResponse, 0, len(s.Scenes)),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for i, sc := range s.Scenes {
		resp.Scenes = append(resp.Scenes, SceneResponse{
			Index:       i,
			Text:        sc.Text,
			ImageURL:    sc.ImageURL,
			ImagePrompt: sc.ImagePrompt,
		})
	}
	return resp
}

// ToStoryListResponse 将领域实体列表转换为响应 DTO
func ToStoryListResponse(stories []*entity.Story) []*StoryResponse {
	out := make([]*StoryResponse, 0, len(stories))
	for _, s := range stories {
		out = append(out, ToStoryResponse(s))
	}
	return out
}

// ArchiveStoryRequest 归档已保存的故事，filename 为空时自动生成
type ArchiveStoryRequest struct {
	Filename string `json:"filename" binding:"max=255"`
}

// ArchiveFileResponse 归档文件名
type ArchiveFileResponse struct {
	Filename string `json:"filename"`
}

// DeleteResponse 删除结果
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// ArchivedStoryResponse 读取的归档。有内嵌图像的场景 imageUrl 指向本服务的图像路由，
// originalImageUrl 保留归档中记录的地址。
type ArchivedStoryResponse struct {
	Filename string         `json:"filename"`
	Story    *StoryResponse `json:"story"`
	Original map[int]string `json:"originalImageUrls,omitempty"`
}

// ArchiveImagePath 归档内嵌图像的访问路径
func ArchiveImagePath(filename string, index int) string {
	return fmt.Sprintf("/v1/archives/%s/images/%d", url.PathEscape(filename), index)
}

// ToArchivedStoryResponse 将归档转换为响应 DTO
func ToArchivedStoryResponse(a *entity.ArchivedStory) *ArchivedStoryResponse {
	if a == nil {
		return nil
	}
	resp := &ArchivedStoryResponse{
		Filename: a.Filename,
		Story:    ToStoryResponse(a.Story),
	}
	for i := range resp.Story.Scenes {
		if _, ok := a.Image(i); !ok {
			continue
		}
		if orig := resp.Story.Scenes[i].ImageURL; orig != "" && !strings.HasPrefix(orig, "data:") {
			if resp.Original == nil {
				resp.Original = make(map[int]string)
			}
			resp.Original[i] = orig
		}
		resp.Story.Scenes[i].ImageURL = ArchiveImagePath(a.Filename, i)
	}
	return resp
}
