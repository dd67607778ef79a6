package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	llmctx "libra-lite/internal/domain/service"
	wfmodel "libra-lite/internal/workflow/model"
	"libra-lite/internal/workflow/node"
	workflowport "libra-lite/internal/workflow/port"
	workflowprompt "libra-lite/internal/workflow/prompt"
	"libra-lite/pkg/logger"
	"libra-lite/pkg/metrics"
	"libra-lite/pkg/tracer"
)

// ErrEmptySummary 摘要为空或只包含空白
var ErrEmptySummary = errors.New("summary is empty")

// StageError 必需阶段失败，整次运行终止
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Observer 接收状态迁移与阶段结果，阶段完成后立即推送
type Observer interface {
	OnEvent(ctx context.Context, ev wfmodel.Event)
}

// ObserverFunc 函数形式的 Observer
type ObserverFunc func(ctx context.Context, ev wfmodel.Event)

func (f ObserverFunc) OnEvent(ctx context.Context, ev wfmodel.Event) { f(ctx, ev) }

// Options 流水线运行参数
type Options struct {
	TextProvider    string
	ImageProvider   string
	PromptSet       workflowprompt.Set
	ImageEnabled    bool
	ConcurrentImage bool
	StoryMaxTokens  int
}

// StoryChain 摘要 -> 标题 -> 角色 -> 故事，可选插图阶段
// 阶段描述在构造时确定，运行之间不共享可变状态
type StoryChain struct {
	factory workflowport.ChatModelFactory
	prompts *workflowprompt.Registry
	opts    Options
	stages  []Stage
	image   Stage
}

func NewStoryChain(factory workflowport.ChatModelFactory, prompts *workflowprompt.Registry, opts Options) *StoryChain {
	if prompts == nil {
		prompts = workflowprompt.NewRegistry()
	}
	return &StoryChain{
		factory: factory,
		prompts: prompts,
		opts:    opts,
		stages:  DefaultStages(opts.PromptSet, opts.StoryMaxTokens),
		image:   ImageStage(),
	}
}

// Stages 返回文本阶段描述的副本
func (c *StoryChain) Stages() []Stage {
	return append([]Stage(nil), c.stages...)
}

// Run 执行一次完整生成。必需阶段失败时返回 StageError，已完成的产物保留在 artifact 中；
// 插图阶段失败不影响结果，只记录在 artifact.ImageError。
func (c *StoryChain) Run(ctx context.Context, runID, summary string, obs Observer) (*wfmodel.StoryArtifact, error) {
	ctx, span := tracer.StartRun(ctx, runID)
	art, err := c.run(ctx, runID, summary, obs)
	tracer.End(span, err)
	return art, err
}

func (c *StoryChain) run(ctx context.Context, runID, summary string, obs Observer) (*wfmodel.StoryArtifact, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if strings.TrimSpace(summary) == "" {
		return nil, ErrEmptySummary
	}

	obs = newSyncObserver(obs)
	ctx = logger.WithContext(ctx, logger.RunIDKey, runID)
	ctx = llmctx.WithRunID(ctx, runID)

	art := &wfmodel.StoryArtifact{
		RunID:     runID,
		Summary:   summary,
		State:     wfmodel.StateIdle,
		StartedAt: time.Now(),
	}
	fields := wfmodel.Fields{wfmodel.FieldSummary: summary}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var g errgroup.Group
	imageStarted := false
	// usage 可能被插图协程并发追加
	var usageMu sync.Mutex
	addUsage := func(u wfmodel.LLMUsageMeta) {
		usageMu.Lock()
		art.Usage = append(art.Usage, u)
		usageMu.Unlock()
	}

	for _, stage := range c.stages {
		c.transition(runCtx, art, obs, stage.Requested)

		out, usage, err := c.runTextStage(runCtx, stage, fields)
		addUsage(usage)
		if err != nil {
			cancel()
			_ = g.Wait()
			c.transition(ctx, art, obs, wfmodel.StateFailed)
			art.FinishedAt = time.Now()
			logger.Error(ctx, "story run failed", err, "stage", stage.Name)
			return art, &StageError{Stage: stage.Name, Err: err}
		}

		text := out[stage.Output]
		fields[stage.Output] = text
		setArtifactField(art, stage.Output, text)
		obs.OnEvent(runCtx, wfmodel.Event{Kind: stage.Event, State: stage.Received, Text: text})
		c.transition(runCtx, art, obs, stage.Received)

		if stage.Name == StageTitle && c.opts.ImageEnabled && c.opts.ConcurrentImage {
			imageStarted = true
			snapshot := fields.Clone()
			g.Go(func() error {
				c.runImageStage(runCtx, art, obs, snapshot, addUsage, false)
				return nil
			})
		}
	}

	if c.opts.ImageEnabled {
		if imageStarted {
			_ = g.Wait()
		} else {
			c.runImageStage(runCtx, art, obs, fields, addUsage, true)
		}
	}

	c.transition(ctx, art, obs, wfmodel.StateComplete)
	art.FinishedAt = time.Now()
	logger.Info(ctx, "story run complete",
		"title", art.Title,
		"story_chars", len(art.Story),
		"has_image", art.Image != nil,
		"duration_ms", art.FinishedAt.Sub(art.StartedAt).Milliseconds(),
	)
	return art, nil
}

// GenerateImage 使用自由提示词单独生成图片（不经过文本阶段）
func (c *StoryChain) GenerateImage(ctx context.Context, prompt string) (*wfmodel.Image, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptySummary
	}
	stage := c.image
	stage.Prompt = workflowprompt.PromptImagePromptV1
	stage.Inputs = []string{"prompt"}

	img, _, err := c.generateImage(ctx, stage, wfmodel.Fields{"prompt": prompt})
	return img, err
}

func (c *StoryChain) transition(ctx context.Context, art *wfmodel.StoryArtifact, obs Observer, to wfmodel.RunState) {
	art.State = to
	logger.Debug(ctx, "story run state", "state", string(to))
	obs.OnEvent(ctx, wfmodel.Event{Kind: wfmodel.EventState, State: to})
}

func (c *StoryChain) runTextStage(ctx context.Context, stage Stage, fields wfmodel.Fields) (out wfmodel.Fields, usage wfmodel.LLMUsageMeta, err error) {
	msg, usage, err := c.invoke(ctx, stage, fields)
	if err != nil {
		return nil, usage, err
	}
	out, err = stage.Adapter(msg)
	if err != nil {
		return nil, usage, err
	}
	logger.Info(logger.WithContext(ctx, logger.StageKey, stage.Name), "stage complete",
		"preview", node.TruncateByRunes(out[stage.Output], 60),
	)
	return out, usage, nil
}

// runImageStage 插图失败只降级，不终止运行。
// track 为 false 时（并发模式）只推送状态事件，artifact 状态由主流程维护
func (c *StoryChain) runImageStage(ctx context.Context, art *wfmodel.StoryArtifact, obs Observer, fields wfmodel.Fields, addUsage func(wfmodel.LLMUsageMeta), track bool) {
	enter := func(to wfmodel.RunState) {
		if track {
			c.transition(ctx, art, obs, to)
			return
		}
		obs.OnEvent(ctx, wfmodel.Event{Kind: wfmodel.EventState, State: to})
	}
	enter(wfmodel.StateImageRequested)

	img, usage, err := c.generateImage(ctx, c.image, fields)
	addUsage(usage)
	if err != nil {
		status := "error"
		if errors.Is(err, node.ErrImageBlockNotFound) {
			status = "no_image"
		}
		metrics.ImageGenerationTotal.WithLabelValues(status).Inc()
		logger.Warn(logger.WithContext(ctx, logger.StageKey, StageImage), "image stage failed, continuing without image",
			"error", err.Error(),
		)
		art.ImageError = err.Error()
		obs.OnEvent(ctx, wfmodel.Event{Kind: wfmodel.EventImageFailed, State: wfmodel.StateImageFailed, Err: err})
		enter(wfmodel.StateImageFailed)
		return
	}

	metrics.ImageGenerationTotal.WithLabelValues("success").Inc()
	art.Image = img
	obs.OnEvent(ctx, wfmodel.Event{Kind: wfmodel.EventImage, State: wfmodel.StateImageReceived, Image: img})
	enter(wfmodel.StateImageReceived)
}

func (c *StoryChain) generateImage(ctx context.Context, stage Stage, fields wfmodel.Fields) (*wfmodel.Image, wfmodel.LLMUsageMeta, error) {
	msg, usage, err := c.invoke(ctx, stage, fields)
	if err != nil {
		return nil, usage, err
	}
	img, err := node.AdaptImage(msg)
	return img, usage, err
}

// invoke 渲染模板并调用模型，一次阻塞调用（重试由模型包装层负责）
func (c *StoryChain) invoke(ctx context.Context, stage Stage, fields wfmodel.Fields) (msg *schema.Message, usage wfmodel.LLMUsageMeta, err error) {
	provider := c.opts.TextProvider
	if stage.Role == RoleImage {
		provider = c.opts.ImageProvider
	}

	start := time.Now()
	usage = wfmodel.LLMUsageMeta{Stage: stage.Name, Provider: provider}
	ctx = logger.WithContext(ctx, logger.StageKey, stage.Name)
	ctx = llmctx.WithStageProvider(ctx, stage.Name, provider)
	ctx, span := tracer.StartStage(ctx, llmctx.RunIDFromContext(ctx), stage.Name)
	ctx, stats := llmctx.WithCallStats(ctx)
	defer func() {
		usage.Model = stats.Model
		usage.Attempts = stats.Attempts
		usage.Duration = time.Since(start)
		usage.GeneratedAt = time.Now()
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.StageDuration.WithLabelValues(stage.Name, status).Observe(usage.Duration.Seconds())
		tracer.End(span, err)
	}()

	tpl, err := c.prompts.Template(stage.Prompt)
	if err != nil {
		return nil, usage, err
	}
	msgs, err := tpl.Render(ctx, stage.inputs(fields))
	if err != nil {
		return nil, usage, err
	}

	chatModel, err := c.factory.Get(ctx, provider)
	if err != nil {
		return nil, usage, err
	}

	logger.Debug(ctx, "stage requested", "provider", provider, "prompt", string(stage.Prompt))
	msg, err = chatModel.Generate(ctx, msgs, stage.Options...)
	if err != nil {
		return nil, usage, err
	}
	if msg == nil {
		return nil, usage, fmt.Errorf("empty llm response")
	}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		usage.PromptTokens = msg.ResponseMeta.Usage.PromptTokens
		usage.CompletionTokens = msg.ResponseMeta.Usage.CompletionTokens
	}
	return msg, usage, nil
}

func setArtifactField(art *wfmodel.StoryArtifact, field, text string) {
	switch field {
	case wfmodel.FieldTitle:
		art.Title = text
	case wfmodel.FieldCharacters:
		art.Characters = text
	case wfmodel.FieldStory:
		art.Story = text
	}
}

// syncObserver 串行化事件投递，插图协程与主流程可能同时推送
type syncObserver struct {
	mu    sync.Mutex
	inner Observer
}

func newSyncObserver(obs Observer) Observer {
	if obs == nil {
		return ObserverFunc(func(context.Context, wfmodel.Event) {})
	}
	return &syncObserver{inner: obs}
}

func (o *syncObserver) OnEvent(ctx context.Context, ev wfmodel.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inner.OnEvent(ctx, ev)
}
