package repository

import (
	"context"

	"dreamteller-api/internal/domain/entity"
)

// ArchiveRepository 单文件故事归档的存取
type ArchiveRepository interface {
	// Save 保存故事，filename 为空时由标题与时间戳生成，返回最终文件名
	Save(ctx context.Context, story *entity.Story, filename string) (string, error)

	// Load 读取归档，文件不存在返回 NotFound，缺少元数据返回格式错误
	Load(ctx context.Context, filename string) (*entity.ArchivedStory, error)

	// List 列出全部归档摘要，损坏的归档被跳过
	List(ctx context.Context) ([]*entity.ArchiveSummary, error)

	// Delete 删除归档，返回文件是否存在
	Delete(ctx context.Context, filename string) (bool, error)

	// Path 返回归档在磁盘上的路径，供下载使用
	Path(ctx context.Context, filename string) (string, error)
}
