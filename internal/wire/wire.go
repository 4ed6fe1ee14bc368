//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"dreamteller-api/internal/application/story"
	"dreamteller-api/internal/config"
	"dreamteller-api/internal/interfaces/http/router"
)

// InitializeApp 初始化 api-gateway（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		DataSet,
		CoreSet,
		JobSet,
		HandlerSet,
		ProvideRouter,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化 job-worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		DataSet,
		CoreSet,
		ProvideConsumer,
		ProvideRunner,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// InitializeCore 初始化不依赖外部存储的生成核心（storyctl）
func InitializeCore(cfg *config.Config) (*Core, error) {
	wire.Build(
		ProvideMemoryStore,
		CoreSet,
		ProvideLibraryWithoutCache,
		wire.Struct(new(Core), "*"),
	)
	return nil, nil
}

// DataSet 存储与消息队列
var DataSet = wire.NewSet(
	ProvideRedisClient,
	ProvidePostgresClient,
	ProvideStoryStore,
	ProvideCatalogCache,
	ProvideRateLimiter,
	ProvideJobRepository,
	ProvideMessagingProducer,
	ProvideLibrary,
)

// CoreSet 文本、图像与归档
var CoreSet = wire.NewSet(
	ProvideTextGenerator,
	ProvideStoryChain,
	ProvideImageGenerator,
	ProvideGenerator,
	ProvideArchiveCodec,
	ProvideImageService,
	story.NewStoryService,
)

// JobSet 异步任务
var JobSet = wire.NewSet(
	ProvideJobService,
	ProvideJobHandler,
)

// HandlerSet HTTP 处理器
var HandlerSet = wire.NewSet(
	ProvideHealthHandler,
	ProvideStoryHandler,
	ProvideArchiveHandler,
	ProvideImageHandler,
	wire.Struct(new(router.Handlers), "*"),
)
