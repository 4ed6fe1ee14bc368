package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers) {
	stories := v1.Group("/stories")
	{
		stories.POST("/generate", h.Story.Generate)
		stories.POST("/generate/stream", h.Story.Stream) // SSE
		stories.POST("/regenerate-text", h.Story.RegenerateText)
		stories.GET("", h.Story.List)
		stories.GET("/:id", h.Story.Get)
		stories.DELETE("/:id", h.Story.Delete)
		stories.PUT("/:id/scenes/:index", h.Story.RegenerateScene)
		stories.POST("/:id/archive", h.Story.Archive)
		if h.Job != nil {
			stories.POST("/jobs", h.Job.Submit)
		}
	}

	archives := v1.Group("/archives")
	{
		archives.GET("", h.Archive.List)
		archives.GET("/:filename", h.Archive.Get)
		archives.DELETE("/:filename", h.Archive.Delete)
		archives.GET("/:filename/download", h.Archive.Download)
		archives.GET("/:filename/images/:index", h.Archive.Image)
	}

	images := v1.Group("/images")
	{
		images.POST("/generate", h.Image.Generate)
		images.POST("/regenerate/:scene_index", h.Image.RegenerateScene)
	}

	if h.Job != nil {
		jobs := v1.Group("/jobs")
		{
			jobs.GET("", h.Job.ListJobs)
			jobs.GET("/:id", h.Job.GetJob)
			jobs.POST("/:id/cancel", h.Job.CancelJob)
		}
	}
}
