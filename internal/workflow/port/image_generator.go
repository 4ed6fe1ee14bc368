package port

import "context"

// NamedSize 预定义的图像尺寸
type NamedSize string

const (
	SizeSquareHD      NamedSize = "square_hd"
	SizeSquare        NamedSize = "square"
	SizeLandscape4x3  NamedSize = "landscape_4_3"
	SizeLandscape16x9 NamedSize = "landscape_16_9"
	SizePortrait4x3   NamedSize = "portrait_4_3"
	SizePortrait16x9  NamedSize = "portrait_16_9"
)

// ImageSize 图像尺寸：Named 非空时优先，否则使用宽高
type ImageSize struct {
	Named  NamedSize
	Width  int
	Height int
}

// ImageRequest 一次图像生成请求
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	Size           ImageSize
	Steps          int
	GuidanceScale  float64
	Seed           int64
}

// ImageResult 图像生成结果，URL 可能是远程地址或 data URL
type ImageResult struct {
	URL         string
	Data        []byte
	ContentType string
	Width       int
	Height      int
	Seed        int64
}

// ImageGenerator 图像生成能力
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error)
}
