// Package main 命令行故事生成：摘要 -> 标题 -> 角色 -> 故事，结果逐段打印
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	storyapp "libra-lite/internal/application/story"
	"libra-lite/internal/config"
	"libra-lite/internal/interfaces/console"
	einoobs "libra-lite/internal/observability/eino"
	wfmodel "libra-lite/internal/workflow/model"
	"libra-lite/internal/wire"
	"libra-lite/pkg/logger"

	"github.com/joho/godotenv"
)

var (
	summary   = flag.String("summary", storyapp.DefaultSummary, "story summary; a positional argument takes precedence")
	withImage = flag.Bool("image", false, "also generate an illustration from the title")
	out       = flag.String("out", "", "illustration output path (defaults to output.image_path)")
	promptSet = flag.String("prompt-set", "", "prompt set: classic or lite (defaults to pipeline.prompt_set)")
	configDir = flag.String("config", config.DefaultDir, "directory containing config.yaml")
	states    = flag.Bool("v", false, "print state transitions")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()
	_ = godotenv.Load()

	input := *summary
	if flag.NArg() > 0 {
		input = strings.Join(flag.Args(), " ")
	}

	cfg, err := config.LoadFromDir(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *withImage {
		cfg.Pipeline.ImageEnabled = true
	}
	if *promptSet != "" {
		cfg.Pipeline.PromptSet = *promptSet
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		return 1
	}

	// 日志写 stderr，stdout 只输出故事
	logger.InitWithWriter(os.Stderr, cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	einoobs.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := wire.InitializeStoryService(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		return 1
	}

	opts := []console.Option{console.WithImageSaver(func(img *wfmodel.Image) (string, error) {
		return svc.SaveImage(img, *out)
	})}
	if *states {
		opts = append(opts, console.WithStates())
	}
	presenter := console.NewPresenter(os.Stdout, opts...)

	if strings.TrimSpace(input) == "" {
		presenter.Warning(storyapp.WarningEmptySummary)
		return 2
	}

	if _, err := svc.Generate(ctx, input, presenter); err != nil {
		presenter.Failure(err)
		return 1
	}
	return 0
}
