// Package console 提供命令行展示层：阶段完成即把结果打印到终端
package console

import (
	"context"
	"fmt"
	"io"
	"sync"

	wfmodel "libra-lite/internal/workflow/model"
	apperrors "libra-lite/pkg/errors"
)

// ImageSaver 保存插图并返回写入的路径
type ImageSaver func(img *wfmodel.Image) (string, error)

// Presenter 实现 chain.Observer
type Presenter struct {
	mu      sync.Mutex
	out     io.Writer
	save    ImageSaver
	verbose bool
}

// Option Presenter 选项
type Option func(*Presenter)

// WithImageSaver 收到插图时写入文件
func WithImageSaver(save ImageSaver) Option {
	return func(p *Presenter) { p.save = save }
}

// WithStates 同时打印状态迁移
func WithStates() Option {
	return func(p *Presenter) { p.verbose = true }
}

func NewPresenter(out io.Writer, opts ...Option) *Presenter {
	p := &Presenter{out: out}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnEvent 按事件类型打印阶段结果
func (p *Presenter) OnEvent(_ context.Context, ev wfmodel.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case wfmodel.EventTitle:
		p.section("📝 Title", ev.Text)
	case wfmodel.EventCharacters:
		p.section("🎭 Characters", ev.Text)
	case wfmodel.EventStory:
		p.section("📖 Story", ev.Text)
	case wfmodel.EventImage:
		p.image(ev.Image)
	case wfmodel.EventImageFailed:
		msg := "unknown error"
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		fmt.Fprintf(p.out, "\n⚠️ Image unavailable: %s\n", msg)
	case wfmodel.EventState:
		if p.verbose {
			fmt.Fprintf(p.out, "… %s\n", ev.State)
		}
	}
}

func (p *Presenter) section(heading, text string) {
	fmt.Fprintf(p.out, "\n%s:\n%s\n", heading, text)
}

func (p *Presenter) image(img *wfmodel.Image) {
	if img == nil {
		return
	}
	if p.save == nil {
		fmt.Fprintf(p.out, "\n🖼️ Image received (%s, %d bytes)\n", img.MIMEType, len(img.Data))
		return
	}
	path, err := p.save(img)
	if err != nil {
		fmt.Fprintf(p.out, "\n⚠️ Image could not be saved: %v\n", err)
		return
	}
	fmt.Fprintf(p.out, "\nImage saved to %s\n", path)
}

// Warning 输入提示，例如空摘要
func (p *Presenter) Warning(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "⚠️ %s\n", msg)
}

// Failure 打印终止运行的错误，带错误码与详情
func (p *Presenter) Failure(err error) {
	if err == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if apperrors.IsAppError(err) {
		appErr := apperrors.AsAppError(err)
		if appErr.Detail != "" {
			fmt.Fprintf(p.out, "\n❌ %s (%s): %s\n", appErr.Message, appErr.Code, appErr.Detail)
			return
		}
		fmt.Fprintf(p.out, "\n❌ %s (%s)\n", appErr.Message, appErr.Code)
		return
	}
	fmt.Fprintf(p.out, "\n❌ %v\n", err)
}
