package dto

// GenerateImageRequest 独立图像生成请求，未填写的数值取服务端默认值
type GenerateImageRequest struct {
	Prompt         string  `json:"prompt" binding:"required,max=4000"`
	NegativePrompt string  `json:"negative_prompt" binding:"max=2000"`
	Width          int     `json:"width" binding:"min=0,max=2048"`
	Height         int     `json:"height" binding:"min=0,max=2048"`
	Steps          int     `json:"steps" binding:"min=0,max=150"`
	GuidanceScale  float64 `json:"guidance_scale" binding:"min=0"`
	Seed           *int64  `json:"seed"`
}

// ImageResponse 图像生成结果
type ImageResponse struct {
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt"`
	Seed     int64  `json:"seed,omitempty"`
}
