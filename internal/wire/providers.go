// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"os"

	"github.com/google/uuid"

	"dreamteller-api/internal/application/job"
	"dreamteller-api/internal/application/story"
	"dreamteller-api/internal/config"
	"dreamteller-api/internal/domain/repository"
	"dreamteller-api/internal/infrastructure/imagegen"
	"dreamteller-api/internal/infrastructure/llm"
	"dreamteller-api/internal/infrastructure/messaging"
	"dreamteller-api/internal/infrastructure/persistence/archive"
	"dreamteller-api/internal/infrastructure/persistence/memory"
	"dreamteller-api/internal/infrastructure/persistence/postgres"
	"dreamteller-api/internal/infrastructure/persistence/redis"
	"dreamteller-api/internal/interfaces/http/handler"
	"dreamteller-api/internal/interfaces/http/middleware"
	"dreamteller-api/internal/interfaces/http/router"
	"dreamteller-api/internal/workflow/chain"
	workflowport "dreamteller-api/internal/workflow/port"
	workflowprompt "dreamteller-api/internal/workflow/prompt"
	"dreamteller-api/pkg/logger"
)

// Core 生成与归档核心，storyctl 直接使用，不依赖 Redis 与 PostgreSQL
type Core struct {
	Stories *story.StoryService
	Library *story.Library
	Images  *story.ImageService
}

// Worker job-worker 依赖
type Worker struct {
	Consumer *messaging.Consumer
	Runner   *job.Runner
	Config   *config.Config
}

// ProvideRedisClient 提供 Redis 客户端。
// 仅当 redis 存储后端或异步任务启用时 Redis 是必需的，否则连接失败只降级。
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(ctx, &cfg.Cache.Redis)
	if err != nil {
		if cfg.Store.Backend == "redis" || cfg.Jobs.Enabled {
			return nil, nil, err
		}
		logger.Warn(ctx, "redis not available, catalog cache and shared rate limit disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvidePostgresClient 提供 PostgreSQL 客户端，异步任务关闭时不连接
func ProvidePostgresClient(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	if !cfg.Jobs.Enabled {
		return nil, func() {}, nil
	}
	client, err := postgres.NewClient(ctx, &cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideStoryStore 按配置选择故事存储后端
func ProvideStoryStore(cfg *config.Config, client *redis.Client) repository.StoryStore {
	if cfg.Store.Backend == "redis" && client != nil {
		return redis.NewStoryStore(client, cfg.Store.Capacity, cfg.Store.TTL)
	}
	return memory.NewStoryStore(cfg.Store.Capacity, cfg.Store.TTL)
}

// ProvideMemoryStore 进程内故事存储
func ProvideMemoryStore(cfg *config.Config) repository.StoryStore {
	return memory.NewStoryStore(cfg.Store.Capacity, cfg.Store.TTL)
}

// ProvideCatalogCache 归档目录缓存，Redis 不可用时返回 nil
func ProvideCatalogCache(client *redis.Client, cfg *config.Config) story.CatalogCache {
	if client == nil {
		return nil
	}
	return redis.NewCatalogCache(client, cfg.Archive.Dir)
}

// ProvideRateLimiter 共享限流器，Redis 不可用时返回 nil
func ProvideRateLimiter(client *redis.Client) middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvideTextGenerator 提供按 workflow 路由的文本生成器
func ProvideTextGenerator(cfg *config.Config) workflowport.TextGenerator {
	return llm.NewTextProvider(llm.NewEinoFactory(cfg), cfg)
}

// ProvideStoryChain 提供故事生成链
func ProvideStoryChain(text workflowport.TextGenerator) *chain.StoryChain {
	return chain.NewStoryChain(text, workflowprompt.NewRegistry())
}

// ProvideImageGenerator 提供图像后端
func ProvideImageGenerator(cfg *config.Config) (workflowport.ImageGenerator, error) {
	return imagegen.New(cfg)
}

// ProvideGenerator 提供故事生成器
func ProvideGenerator(storyChain *chain.StoryChain, images workflowport.ImageGenerator, cfg *config.Config) *story.Generator {
	return story.NewGenerator(storyChain, images, story.NewGeneratorConfig(cfg))
}

// ProvideArchiveCodec 提供归档编解码器
func ProvideArchiveCodec(cfg *config.Config) (*archive.Codec, error) {
	fetcher := archive.NewImageFetcher(archive.FetcherConfig{
		Timeout:      cfg.Archive.FetchTimeout,
		RetryTimeout: cfg.Archive.RetryTimeout,
		MaxBytes:     cfg.Archive.MaxImageBytes,
	}, nil, nil)
	return archive.NewCodec(cfg.Archive, fetcher)
}

// ProvideLibrary 提供带目录缓存的归档库
func ProvideLibrary(codec *archive.Codec, catalog story.CatalogCache, cfg *config.Config) *story.Library {
	return story.NewLibrary(codec, catalog, cfg.Archive.CatalogTTL)
}

// ProvideLibraryWithoutCache 不带目录缓存的归档库
func ProvideLibraryWithoutCache(codec *archive.Codec) *story.Library {
	return story.NewLibrary(codec, nil, 0)
}

// ProvideImageService 提供独立图像服务
func ProvideImageService(images workflowport.ImageGenerator, cfg *config.Config) *story.ImageService {
	return story.NewImageService(images, cfg.Image.BaseSeed)
}

// ProvideJobRepository 任务仓储，PostgreSQL 未连接时返回 nil
func ProvideJobRepository(client *postgres.Client) repository.JobRepository {
	if client == nil {
		return nil
	}
	return postgres.NewJobRepository(client)
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(client *redis.Client, cfg *config.Config) *messaging.Producer {
	if client == nil {
		return nil
	}
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(client.Redis(), messaging.StreamStoryGen, maxLen)
}

// ProvideJobService 异步任务服务，任务关闭时返回 nil
func ProvideJobService(cfg *config.Config, jobs repository.JobRepository, producer *messaging.Producer, gen *story.Generator) *job.Service {
	if !cfg.Jobs.Enabled || jobs == nil || producer == nil {
		return nil
	}
	return job.NewService(jobs, producer, gen.Rules())
}

// ProvideJobHandler 任务处理器，服务为 nil 时不注册任务路由
func ProvideJobHandler(svc *job.Service) *handler.JobHandler {
	if svc == nil {
		return nil
	}
	return handler.NewJobHandler(svc)
}

// ProvideHealthHandler 就绪检查只包含已连接的依赖
func ProvideHealthHandler(cfg *config.Config, rc *redis.Client, pg *postgres.Client) *handler.HealthHandler {
	var deps []handler.Dependency
	if rc != nil {
		deps = append(deps, handler.Dependency{
			Name:     "redis",
			Checker:  rc,
			Required: cfg.Store.Backend == "redis" || cfg.Jobs.Enabled,
		})
	}
	if pg != nil {
		deps = append(deps, handler.Dependency{Name: "postgres", Checker: pg, Required: true})
	}
	return handler.NewHealthHandler(cfg.App.Version, deps...)
}

// ProvideStoryHandler 提供故事处理器
func ProvideStoryHandler(stories *story.StoryService, library *story.Library) *handler.StoryHandler {
	return handler.NewStoryHandler(stories, library)
}

// ProvideArchiveHandler 提供归档处理器
func ProvideArchiveHandler(library *story.Library) *handler.ArchiveHandler {
	return handler.NewArchiveHandler(library)
}

// ProvideImageHandler 提供图像处理器
func ProvideImageHandler(images *story.ImageService) *handler.ImageHandler {
	return handler.NewImageHandler(images)
}

// ProvideRouter 提供 HTTP 路由器
func ProvideRouter(cfg *config.Config, h router.Handlers, limiter middleware.RateLimiter) *router.Router {
	return router.New(cfg, h, limiter)
}

// ProvideConsumer 创建 story_gen 消费者，消费者名取主机名以便 pending 归属可追踪
func ProvideConsumer(client *redis.Client, cfg *config.Config) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	return messaging.NewConsumer(client.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamStoryGen,
		Group:         messaging.ConsumerGroupStoryWorker.WithPrefix(rs.ConsumerGroupPrefix),
		ConsumerName:  consumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
}

// ProvideRunner 创建任务执行器。
// 业务重试次数比队列投递上限少一次，保证最后一次失败能写回任务状态。
func ProvideRunner(cfg *config.Config, jobs repository.JobRepository, stories *story.StoryService, library *story.Library) *job.Runner {
	var archiver job.Archiver
	if cfg.Jobs.AutoArchive {
		archiver = library
	}
	limit := cfg.Messaging.RedisStream.RetryLimit
	if limit <= 0 {
		limit = 3
	}
	return job.NewRunner(jobs, stories, archiver, job.RunnerConfig{MaxRetries: limit - 1})
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}
