package entity

import "time"

// ArchiveSummary 归档目录中的一条记录，只来自归档内的元数据
type ArchiveSummary struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Prompt       StoryPrompt `json:"prompt"`
	NumScenes    int         `json:"num_scenes"`
	CreationDate *time.Time  `json:"creation_date,omitempty"`
	Filename     string      `json:"filename"`
	FileSize     int64       `json:"file_size"`
}

// ArchiveImage 归档内嵌的一张场景插图
type ArchiveImage struct {
	Path        string
	ContentType string
	Data        []byte
}

// ArchivedStory 从归档恢复的故事。
// 场景的 ImageURL 保留保存时记录的原始地址，内嵌图片按场景下标放在 Images 中。
type ArchivedStory struct {
	Filename string
	Story    *Story
	Images   map[int]ArchiveImage
}

// Image 返回场景的内嵌图片
func (a *ArchivedStory) Image(index int) (ArchiveImage, bool) {
	if a == nil || a.Images == nil {
		return ArchiveImage{}, false
	}
	img, ok := a.Images[index]
	return img, ok && len(img.Data) > 0
}
