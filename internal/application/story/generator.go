package story

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"dreamteller-api/internal/config"
	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/workflow/chain"
	wfmodel "dreamteller-api/internal/workflow/model"
	"dreamteller-api/internal/workflow/node"
	workflowport "dreamteller-api/internal/workflow/port"
	"dreamteller-api/pkg/logger"
	"dreamteller-api/pkg/metrics"
	"dreamteller-api/pkg/tracer"
)

// GeneratorConfig 生成流程参数
type GeneratorConfig struct {
	Rules              entity.PromptRules
	FallbackTitle      string
	BaseSeed           int64
	Steps              int
	GuidanceScale      float64
	Concurrency        int
	SketchPreviewRunes int
	EnhancePrompts     bool
	// 重写场景时的模型参数
	RegenTemperature *float32
	RegenMaxTokens   *int
}

// NewGeneratorConfig 从全局配置构造生成参数
func NewGeneratorConfig(cfg *config.Config) GeneratorConfig {
	gc := GeneratorConfig{
		Rules: entity.PromptRules{
			MinScenes:       cfg.Story.MinScenes,
			MaxScenes:       cfg.Story.MaxScenes,
			DefaultScenes:   cfg.Story.DefaultScenes,
			DefaultArtStyle: cfg.Story.DefaultArtStyle,
		},
		FallbackTitle:      cfg.Story.FallbackTitle,
		BaseSeed:           cfg.Image.BaseSeed,
		Steps:              cfg.Image.Steps,
		GuidanceScale:      cfg.Image.GuidanceScale,
		Concurrency:        cfg.Story.IllustrationConcurrency,
		SketchPreviewRunes: cfg.Story.SketchPreviewRunes,
		EnhancePrompts:     cfg.Story.EnhancePrompts,
	}
	if p, ok := cfg.LLM.Providers[cfg.LLM.ProviderFor(chain.WorkflowRegenerate)]; ok {
		temp := float32(p.Temperature + 0.1)
		gc.RegenTemperature = &temp
		if p.MaxTokens > 1 {
			maxTokens := p.MaxTokens / 2
			gc.RegenMaxTokens = &maxTokens
		}
	}
	return gc
}

func (c GeneratorConfig) withDefaults() GeneratorConfig {
	if c.Rules.MaxScenes == 0 {
		c.Rules = entity.DefaultPromptRules()
	}
	if c.FallbackTitle == "" {
		c.FallbackTitle = "Untitled Story"
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.SketchPreviewRunes <= 0 {
		c.SketchPreviewRunes = 200
	}
	return c
}

// Generator 故事生成编排器：SKETCH -> CHARACTER -> SCENES -> ILLUSTRATION -> DONE
type Generator struct {
	chain  *chain.StoryChain
	images workflowport.ImageGenerator
	cfg    GeneratorConfig
}

func NewGenerator(storyChain *chain.StoryChain, images workflowport.ImageGenerator, cfg GeneratorConfig) *Generator {
	return &Generator{chain: storyChain, images: images, cfg: cfg.withDefaults()}
}

// Rules 返回生成参数校验规则
func (g *Generator) Rules() entity.PromptRules {
	return g.cfg.Rules
}

// GenerateOption 单次生成的可选项
type GenerateOption func(*generateOptions)

type generateOptions struct {
	observer Observer
	draft    *Draft
}

// WithObserver 设置进度观察者
func WithObserver(o Observer) GenerateOption {
	return func(opts *generateOptions) {
		if o != nil {
			opts.observer = o
		}
	}
}

// WithDraft 让调用方在生成过程中读取中间结果
func WithDraft(d *Draft) GenerateOption {
	return func(opts *generateOptions) {
		opts.draft = d
	}
}

// Generate 执行完整生成流程。SKETCH/CHARACTER/SCENES 失败时返回错误且不产出故事；
// 单个场景的插图或提示词增强失败、标题失败都以回退值继续。
func (g *Generator) Generate(ctx context.Context, prompt entity.StoryPrompt, opts ...GenerateOption) (*entity.Story, error) {
	o := generateOptions{observer: NopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.draft == nil {
		o.draft = NewDraft()
	}

	normalized, err := prompt.Normalize(g.cfg.Rules)
	if err != nil {
		return nil, validationError(err)
	}

	story := entity.NewStory(normalized)
	ctx = logger.WithContext(ctx, logger.StoryIDKey, story.ID)
	ctx, span := tracer.Start(ctx, "story.generate")

	metrics.ActiveGenerations.Inc()
	defer metrics.ActiveGenerations.Dec()
	start := time.Now()

	obs := o.observer
	if g.cfg.Concurrency > 1 {
		obs = &syncObserver{inner: obs}
	}
	r := &run{g: g, obs: obs, draft: o.draft, story: story}
	o.draft.begin(story)
	logger.Info(ctx, "story generation started",
		"num_scenes", normalized.NumScenes,
		"genre", normalized.Genre,
		"art_style", normalized.ArtStyle,
	)

	err = r.execute(ctx)
	tracer.EndWithError(span, err)
	metrics.StoryGenerationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		status := "failed"
		if IsCancelled(err) {
			status = "cancelled"
		}
		metrics.StoryGenerationTotal.WithLabelValues(status).Inc()
		r.enter(ctx, entity.StageFailed, int(r.progress.Load()), "Error generating story: "+UserMessage(err))
		logger.Error(ctx, "story generation failed", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	metrics.StoryGenerationTotal.WithLabelValues("done").Inc()
	logger.Info(ctx, "story generation completed",
		"title", story.Title,
		"images", story.ImageCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return story, nil
}

// RegenerateScene 重写一个场景的文本。失败直接返回给调用方，不做回退。
func (g *Generator) RegenerateScene(ctx context.Context, prompt entity.StoryPrompt, currentText string, sceneIndex int) (string, error) {
	normalized, err := prompt.Normalize(g.cfg.Rules)
	if err != nil {
		return "", validationError(err)
	}
	if currentText == "" {
		return "", validationError(&entity.PromptValidationError{Field: "currentText", Reason: "must not be empty"})
	}
	if sceneIndex < 0 || sceneIndex >= normalized.NumScenes {
		return "", validationError(&entity.PromptValidationError{
			Field:  "sceneIndex",
			Reason: fmt.Sprintf("must be between 0 and %d, got %d", normalized.NumScenes-1, sceneIndex),
		})
	}

	ctx, span := tracer.Start(ctx, "story.regenerate_scene")
	text, err := g.chain.RegenerateScene(ctx, &wfmodel.RegenerateSceneInput{
		Prompt:      normalized,
		CurrentText: currentText,
		SceneIndex:  sceneIndex,
		Options: wfmodel.GenerationOptions{
			Temperature: g.cfg.RegenTemperature,
			MaxTokens:   g.cfg.RegenMaxTokens,
		},
	})
	if err == nil && text == "" {
		err = emptyOutputError(entity.StageScenes)
	}
	tracer.EndWithError(span, err)
	if err != nil {
		logger.Error(ctx, "scene regeneration failed", err, "scene_index", sceneIndex)
		return "", err
	}
	return text, nil
}

// run 单次生成的状态，story 只由生成协程写入
type run struct {
	g     *Generator
	obs   Observer
	draft *Draft
	story *entity.Story

	imagesDone atomic.Int32
	progress   atomic.Int32
}

func (r *run) execute(ctx context.Context) error {
	p := r.story.Prompt
	n := p.NumScenes

	r.enter(ctx, entity.StageSketch, 5, fmt.Sprintf("Creating a %d-scene %s story sketch...", n, p.Genre))
	sketch, err := r.textStage(ctx, entity.StageSketch, func(ctx context.Context) (string, error) {
		return r.g.chain.Sketch(ctx, &wfmodel.SketchInput{Prompt: p})
	})
	if err != nil {
		return err
	}

	r.enter(ctx, entity.StageCharacter, 20, "Creating detailed character profile...")
	profile, err := r.textStage(ctx, entity.StageCharacter, func(ctx context.Context) (string, error) {
		return r.g.chain.Character(ctx, &wfmodel.CharacterInput{Sketch: sketch, CharacterHint: p.MainCharacter})
	})
	if err != nil {
		return err
	}

	r.enter(ctx, entity.StageScenes, 35, fmt.Sprintf("Developing %d detailed story scenes...", n))
	raw, err := r.textStage(ctx, entity.StageScenes, func(ctx context.Context) (string, error) {
		return r.g.chain.Scenes(ctx, &wfmodel.ScenesInput{Sketch: sketch, CharacterProfile: profile, NumScenes: n})
	})
	if err != nil {
		return err
	}
	texts := node.ParseScenes(raw, n)
	if found := node.CountSceneMarkers(raw); found < n {
		logger.Warn(ctx, "scene output had fewer markers than requested, filling placeholders",
			"requested", n, "found", found)
		metrics.SceneFallbackTotal.WithLabelValues("placeholder_scene").Add(float64(n - found))
	}
	r.draft.setSceneTexts(texts)

	if err := ctx.Err(); err != nil {
		return &StageError{Stage: entity.StageIllustration, Err: err}
	}
	r.enter(ctx, entity.StageIllustration, 45, "Generating illustrations...")
	r.story.Scenes = r.illustrate(ctx, texts, profile)

	if err := ctx.Err(); err != nil {
		return &StageError{Stage: entity.StageTitle, Err: err}
	}
	r.enter(ctx, entity.StageTitle, 92, "Generating story title...")
	r.story.Title = r.title(ctx, sketch)
	r.draft.setTitle(r.story.Title)

	r.enter(ctx, entity.StageDone, 100, "Story and images generated successfully!")
	return nil
}

// textStage 执行一个必须产出非空文本的阶段
func (r *run) textStage(ctx context.Context, stage entity.Stage, call func(ctx context.Context) (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &StageError{Stage: stage, Err: err}
	}

	ctx, span := tracer.Start(ctx, "story.stage."+string(stage))
	start := time.Now()
	out, err := call(ctx)
	if err == nil && out == "" {
		err = emptyOutputError(stage)
	}
	tracer.EndWithError(span, err)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.StageDuration.WithLabelValues(string(stage), status).Observe(time.Since(start).Seconds())

	if err != nil {
		if _, ok := FailedStage(err); ok {
			return "", err
		}
		return "", &StageError{Stage: stage, Err: err}
	}
	logger.Debug(ctx, "stage completed", "stage", stage, "chars", len(out))
	return out, nil
}

// illustrate 为每个场景生成插图；并发度大于 1 时使用有界协程池，结果仍按场景下标排列
func (r *run) illustrate(ctx context.Context, texts []string, profile string) []entity.Scene {
	start := time.Now()
	scenes := make([]entity.Scene, len(texts))

	if r.g.cfg.Concurrency <= 1 {
		for i, text := range texts {
			scenes[i] = r.illustrateScene(ctx, i, text, profile)
		}
	} else {
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(r.g.cfg.Concurrency)
		for i, text := range texts {
			eg.Go(func() error {
				scenes[i] = r.illustrateScene(egCtx, i, text, profile)
				return nil
			})
		}
		_ = eg.Wait()
	}

	metrics.StageDuration.WithLabelValues(string(entity.StageIllustration), "ok").Observe(time.Since(start).Seconds())
	return scenes
}

// illustrateScene 不返回错误：任何失败都只让该场景缺少插图
func (r *run) illustrateScene(ctx context.Context, index int, text, profile string) entity.Scene {
	release := r.trackImage(index)
	defer release()

	ctx = logger.WithContext(ctx, logger.StageKey, string(entity.StageIllustration))
	n := r.story.Prompt.NumScenes
	r.obs.OnStatus(fmt.Sprintf("Generating image %d of %d...", index+1, n))

	prompt := r.imagePrompt(ctx, index, text, profile)
	scene := entity.Scene{Text: text, ImagePrompt: prompt}

	if r.g.images == nil {
		metrics.SceneFallbackTotal.WithLabelValues("image").Inc()
	} else if url, err := r.renderImage(ctx, index, prompt); err != nil {
		metrics.SceneFallbackTotal.WithLabelValues("image").Inc()
		logger.Warn(ctx, "image generation failed, scene left without illustration",
			"scene_index", index, "error", err.Error())
	} else {
		scene.ImageURL = url
	}

	r.draft.setScene(index, scene)
	done := int(r.imagesDone.Add(1))
	r.stageProgress(entity.StageIllustration, 45+47*done/n)
	return scene
}

func (r *run) imagePrompt(ctx context.Context, index int, text, profile string) string {
	prompt := text
	if r.g.cfg.EnhancePrompts {
		enhanced, err := r.g.chain.ImagePrompt(ctx, &wfmodel.ImagePromptInput{SceneText: text, CharacterProfile: profile})
		switch {
		case err != nil:
			metrics.SceneFallbackTotal.WithLabelValues("prompt_enhance").Inc()
			logger.Warn(ctx, "image prompt enhancement failed, using scene text",
				"scene_index", index, "error", err.Error())
		case enhanced == "":
			metrics.SceneFallbackTotal.WithLabelValues("prompt_enhance").Inc()
		default:
			prompt = enhanced
		}
	}
	return node.ApplyStyleSuffix(prompt, r.story.Prompt.ArtStyle)
}

func (r *run) renderImage(ctx context.Context, index int, prompt string) (string, error) {
	res, err := r.g.images.GenerateImage(ctx, &workflowport.ImageRequest{
		Prompt:        prompt,
		Size:          workflowport.ImageSize{Named: node.ImageSizeForStyle(r.story.Prompt.ArtStyle)},
		Steps:         r.g.cfg.Steps,
		GuidanceScale: r.g.cfg.GuidanceScale,
		Seed:          node.SceneSeed(r.g.cfg.BaseSeed, index),
	})
	if err != nil {
		return "", err
	}
	if res == nil || res.URL == "" {
		return "", fmt.Errorf("image provider returned no image")
	}
	return res.URL, nil
}

func (r *run) title(ctx context.Context, sketch string) string {
	title, err := r.g.chain.Title(ctx, &wfmodel.TitleInput{
		Idea:         r.story.Prompt.Idea,
		Sketch:       sketch,
		PreviewRunes: r.g.cfg.SketchPreviewRunes,
	})
	if err != nil || title == "" {
		metrics.SceneFallbackTotal.WithLabelValues("title").Inc()
		if err != nil {
			logger.Warn(ctx, "title generation failed, using fallback", "error", err.Error())
		}
		return r.g.cfg.FallbackTitle
	}
	return title
}

// trackImage 发出 loading=true，返回的释放函数保证 loading=false 恰好发出一次
func (r *run) trackImage(index int) func() {
	r.obs.OnImageStatus(index, true)
	var once sync.Once
	return func() {
		once.Do(func() { r.obs.OnImageStatus(index, false) })
	}
}

func (r *run) enter(ctx context.Context, stage entity.Stage, progress int, message string) {
	r.draft.setStage(stage)
	r.stageProgress(stage, progress)
	r.obs.OnStatus(message)
	logger.Debug(ctx, "stage entered", "stage", stage, "progress", progress)
}

func (r *run) stageProgress(stage entity.Stage, progress int) {
	r.progress.Store(int32(progress))
	if so, ok := r.obs.(StageObserver); ok {
		so.OnStage(stage, progress)
	}
}
