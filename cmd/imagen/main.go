// Package main 独立图片生成：按提示词生成一张图片并写入固定文件
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
	"libra-lite/internal/wire"
	"libra-lite/pkg/logger"

	"github.com/joho/godotenv"
)

var (
	prompt    = flag.String("prompt", storyapp.DefaultImagePrompt, "image prompt; a positional argument takes precedence")
	out       = flag.String("out", "", "output path (defaults to output.image_path)")
	configDir = flag.String("config", config.DefaultDir, "directory containing config.yaml")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()
	_ = godotenv.Load()

	input := *prompt
	if flag.NArg() > 0 {
		input = strings.Join(flag.Args(), " ")
	}

	cfg, err := config.LoadFromDir(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	// 只需要插图提供商，文本提供商缺失不影响
	if err := cfg.ValidateImage(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		return 1
	}

	logger.InitWithWriter(os.Stderr, cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	einoobs.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	presenter := console.NewPresenter(os.Stdout)
	if strings.TrimSpace(input) == "" {
		presenter.Warning(storyapp.WarningEmptyPrompt)
		return 2
	}

	svc, err := wire.InitializeStoryService(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		return 1
	}

	img, err := svc.GenerateImage(ctx, input)
	if err != nil {
		presenter.Failure(err)
		return 1
	}
	path, err := svc.SaveImage(img, *out)
	if err != nil {
		presenter.Failure(err)
		return 1
	}
	fmt.Printf("Image saved to %s\n", path)
	return 0
}
