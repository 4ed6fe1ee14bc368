package archive

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"dreamteller-api/internal/config"
	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/domain/repository"
	apperrors "dreamteller-api/pkg/errors"
	"dreamteller-api/pkg/logger"
	"dreamteller-api/pkg/metrics"
)

var _ repository.ArchiveRepository = (*Codec)(nil)

// Codec 把故事保存为单个 zip 归档（metadata.json + images/scene_<i>.<ext>）并能还原
type Codec struct {
	dir      string
	ext      string
	maxImage int64
	fetcher  *ImageFetcher
	now      func() time.Time
}

// NewCodec 创建归档编解码器，目录不存在时自动创建
func NewCodec(cfg config.ArchiveConfig, fetcher *ImageFetcher) (*Codec, error) {
	ext := cfg.Extension
	if ext == "" {
		ext = ".story"
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, apperrors.NewFilesystemError(err, "cannot create archive directory %s", cfg.Dir)
	}
	if fetcher == nil {
		fetcher = NewImageFetcher(FetcherConfig{
			Timeout:      cfg.FetchTimeout,
			RetryTimeout: cfg.RetryTimeout,
			MaxBytes:     cfg.MaxImageBytes,
		}, nil, nil)
	}
	maxImage := cfg.MaxImageBytes
	if maxImage <= 0 {
		maxImage = 20 << 20
	}
	return &Codec{dir: cfg.Dir, ext: ext, maxImage: maxImage, fetcher: fetcher, now: time.Now}, nil
}

type pendingImage struct {
	path string
	data []byte
}

// Save 下载插图并原子地写出归档。单张插图下载失败只会让该场景缺少 image_file。
func (c *Codec) Save(ctx context.Context, story *entity.Story, filename string) (string, error) {
	if story == nil {
		return "", apperrors.NewValidationError("story is required")
	}
	if strings.TrimSpace(filename) == "" {
		filename = deriveFilename(story.Title, c.now())
	}
	name, err := normalizeFilename(filename, c.ext)
	if err != nil {
		return "", err
	}

	meta := metadata{
		ID:        story.ID,
		Title:     story.Title,
		Prompt:    story.Prompt,
		NumScenes: len(story.Scenes),
		Scenes:    make([]sceneMetadata, 0, len(story.Scenes)),
	}
	created := story.CreatedAt
	if created.IsZero() {
		created = c.now()
	}
	meta.CreationDate = formatDate(created)
	if story.UpdatedAt != nil {
		meta.UpdatedAt = formatDate(*story.UpdatedAt)
	}

	var images []pendingImage
	for i, scene := range story.Scenes {
		index := i
		sm := sceneMetadata{
			Index:       &index,
			Text:        scene.Text,
			ImageURL:    scene.ImageURL,
			ImagePrompt: scene.ImagePrompt,
		}
		if scene.ImageURL != "" {
			data, err := c.fetcher.Fetch(ctx, scene.ImageURL)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return "", ctxErr
				}
				logger.Warn(ctx, "scene image could not be fetched, saving without it",
					"scene_index", i, "error", err.Error())
			} else {
				ext, _ := imageExt(data)
				sm.ImageFile = imagePath(i, ext)
				images = append(images, pendingImage{path: sm.ImageFile, data: data})
				// 内联图像已落盘为 image_file，metadata 不再重复保存 base64
				if isDataURL(scene.ImageURL) {
					sm.ImageURL = ""
				}
			}
		}
		meta.Scenes = append(meta.Scenes, sm)
	}

	if err := c.write(name, &meta, images); err != nil {
		metrics.ArchiveOperationTotal.WithLabelValues("save", "error").Inc()
		return "", err
	}
	metrics.ArchiveOperationTotal.WithLabelValues("save", "success").Inc()
	logger.Info(ctx, "story archived", "filename", name, "scenes", len(meta.Scenes), "images", len(images))
	return name, nil
}

// write 先写同目录临时文件再 rename，失败时不会留下截断的归档
func (c *Codec) write(name string, meta *metadata, images []pendingImage) (err error) {
	tmp, err := os.CreateTemp(c.dir, ".archive-*.tmp")
	if err != nil {
		return apperrors.NewFilesystemError(err, "cannot create archive file in %s", c.dir)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, img := range images {
		// 图片本身已压缩，直接存储
		w, werr := zw.CreateHeader(&zip.FileHeader{Name: img.path, Method: zip.Store, Modified: c.now()})
		if werr != nil {
			return apperrors.NewFilesystemError(werr, "cannot write %s", img.path)
		}
		if _, werr = w.Write(img.data); werr != nil {
			return apperrors.NewFilesystemError(werr, "cannot write %s", img.path)
		}
	}

	body, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode archive metadata: %w", err)
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: metadataFile, Method: zip.Deflate, Modified: c.now()})
	if err != nil {
		return apperrors.NewFilesystemError(err, "cannot write %s", metadataFile)
	}
	if _, err = w.Write(body); err != nil {
		return apperrors.NewFilesystemError(err, "cannot write %s", metadataFile)
	}

	if err = zw.Close(); err != nil {
		return apperrors.NewFilesystemError(err, "cannot finalize archive %s", name)
	}
	if err = tmp.Sync(); err != nil {
		return apperrors.NewFilesystemError(err, "cannot flush archive %s", name)
	}
	if err = tmp.Close(); err != nil {
		return apperrors.NewFilesystemError(err, "cannot close archive %s", name)
	}
	if err = os.Rename(tmp.Name(), filepath.Join(c.dir, name)); err != nil {
		return apperrors.NewFilesystemError(err, "cannot move archive into place as %s", name)
	}
	return nil
}

// Load 还原故事，场景按记录的 index 重新排序
func (c *Codec) Load(ctx context.Context, filename string) (*entity.ArchivedStory, error) {
	path, name, err := c.existing(filename)
	if err != nil {
		metrics.ArchiveOperationTotal.WithLabelValues("load", "error").Inc()
		return nil, err
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		metrics.ArchiveOperationTotal.WithLabelValues("load", "error").Inc()
		return nil, apperrors.NewFormatError(err, "archive %s is not a readable zip file", name)
	}
	defer zr.Close()

	meta, err := readMetadata(&zr.Reader)
	if err != nil {
		metrics.ArchiveOperationTotal.WithLabelValues("load", "error").Inc()
		return nil, apperrors.NewFormatError(err, "archive %s has invalid metadata", name)
	}

	out, err := c.restore(ctx, meta, &zr.Reader)
	if err != nil {
		metrics.ArchiveOperationTotal.WithLabelValues("load", "error").Inc()
		return nil, apperrors.NewFormatError(err, "archive %s has invalid metadata", name)
	}
	out.Filename = name
	metrics.ArchiveOperationTotal.WithLabelValues("load", "success").Inc()
	return out, nil
}

func (c *Codec) restore(ctx context.Context, meta *metadata, zr *zip.Reader) (*entity.ArchivedStory, error) {
	scenes := append([]sceneMetadata(nil), meta.Scenes...)
	seen := make(map[int]bool, len(scenes))
	for _, sm := range scenes {
		if sm.Index == nil || *sm.Index < 0 {
			return nil, errors.New("scene record without a valid index")
		}
		if seen[*sm.Index] {
			return nil, fmt.Errorf("duplicate scene index %d", *sm.Index)
		}
		seen[*sm.Index] = true
	}
	sort.SliceStable(scenes, func(i, j int) bool { return *scenes[i].Index < *scenes[j].Index })

	story := &entity.Story{
		ID:     meta.ID,
		Title:  meta.Title,
		Prompt: meta.Prompt,
		Scenes: make([]entity.Scene, 0, len(scenes)),
	}
	if story.ID == "" {
		story.ID = uuid.New().String()
	}
	if story.Prompt.ArtStyle == "" {
		story.Prompt.ArtStyle = entity.DefaultArtStyle
	}
	if story.Prompt.NumScenes == 0 {
		story.Prompt.NumScenes = len(scenes)
	}
	if meta.CreationDate != "" {
		t, err := parseDate(meta.CreationDate)
		if err != nil {
			return nil, err
		}
		story.CreatedAt = t
	}
	if meta.UpdatedAt != "" {
		if t, err := parseDate(meta.UpdatedAt); err == nil {
			story.UpdatedAt = &t
		}
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	images := make(map[int]entity.ArchiveImage)
	for i, sm := range scenes {
		story.Scenes = append(story.Scenes, entity.Scene{
			Text:        sm.Text,
			ImageURL:    sm.ImageURL,
			ImagePrompt: sm.ImagePrompt,
		})
		if sm.ImageFile == "" {
			continue
		}
		f, ok := files[sm.ImageFile]
		if !ok {
			logger.Warn(ctx, "archive references a missing image payload", "image_file", sm.ImageFile)
			continue
		}
		data, err := c.readEntry(f)
		if err != nil {
			logger.Warn(ctx, "archive image payload unreadable", "image_file", sm.ImageFile, "error", err.Error())
			continue
		}
		_, contentType := imageExt(data)
		images[i] = entity.ArchiveImage{Path: sm.ImageFile, ContentType: contentType, Data: data}
		if sm.ImageURL == "" {
			story.Scenes[i].ImageURL = encodeDataURL(contentType, data)
		}
	}

	return &entity.ArchivedStory{Story: story, Images: images}, nil
}

func (c *Codec) readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, c.maxImage+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.maxImage {
		return nil, fmt.Errorf("entry %s exceeds %d bytes", f.Name, c.maxImage)
	}
	return data, nil
}

func readMetadata(zr *zip.Reader) (*metadata, error) {
	for _, f := range zr.File {
		if f.Name != metadataFile {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		var meta metadata
		if err := json.NewDecoder(rc).Decode(&meta); err != nil {
			return nil, fmt.Errorf("decode %s: %w", metadataFile, err)
		}
		return &meta, nil
	}
	return nil, fmt.Errorf("%s not found", metadataFile)
}

// List 列出目录下的全部归档，按创建时间倒序，无时间的排在最后
func (c *Codec) List(ctx context.Context) ([]*entity.ArchiveSummary, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		metrics.ArchiveOperationTotal.WithLabelValues("list", "error").Inc()
		return nil, apperrors.NewFilesystemError(err, "cannot read archive directory %s", c.dir)
	}

	summaries := make([]*entity.ArchiveSummary, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), c.ext) {
			continue
		}
		s, err := c.summary(e.Name())
		if err != nil {
			logger.Warn(ctx, "skipping unreadable archive", "filename", e.Name(), "error", err.Error())
			continue
		}
		summaries = append(summaries, s)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].CreationDate, summaries[j].CreationDate
		switch {
		case a != nil && b != nil:
			if !a.Equal(*b) {
				return a.After(*b)
			}
		case a != nil:
			return true
		case b != nil:
			return false
		}
		return summaries[i].Filename < summaries[j].Filename
	})
	metrics.ArchiveOperationTotal.WithLabelValues("list", "success").Inc()
	return summaries, nil
}

func (c *Codec) summary(name string) (*entity.ArchiveSummary, error) {
	path := filepath.Join(c.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	meta, err := readMetadata(&zr.Reader)
	if err != nil {
		return nil, err
	}
	s := &entity.ArchiveSummary{
		ID:        meta.ID,
		Title:     meta.Title,
		Prompt:    meta.Prompt,
		NumScenes: meta.NumScenes,
		Filename:  name,
		FileSize:  info.Size(),
	}
	if meta.CreationDate != "" {
		if t, err := parseDate(meta.CreationDate); err == nil {
			s.CreationDate = &t
		}
	}
	return s, nil
}

// Delete 删除归档；文件不存在时返回 false 而不是错误
func (c *Codec) Delete(ctx context.Context, filename string) (bool, error) {
	name, err := normalizeFilename(filename, c.ext)
	if err != nil {
		return false, err
	}
	if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn(ctx, "archive not found for deletion", "filename", name)
			return false, nil
		}
		metrics.ArchiveOperationTotal.WithLabelValues("delete", "error").Inc()
		return false, apperrors.NewFilesystemError(err, "cannot delete archive %s", name)
	}
	metrics.ArchiveOperationTotal.WithLabelValues("delete", "success").Inc()
	logger.Info(ctx, "archive deleted", "filename", name)
	return true, nil
}

func (c *Codec) Path(_ context.Context, filename string) (string, error) {
	path, _, err := c.existing(filename)
	return path, err
}

func (c *Codec) existing(filename string) (path, name string, err error) {
	name, err = normalizeFilename(filename, c.ext)
	if err != nil {
		return "", "", err
	}
	path = filepath.Join(c.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", apperrors.ErrArchiveNotFound.WithDetail(name)
		}
		return "", "", apperrors.NewFilesystemError(err, "cannot stat archive %s", name)
	}
	if !info.Mode().IsRegular() {
		return "", "", apperrors.ErrArchiveNotFound.WithDetail(name)
	}
	return path, name, nil
}
