// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	storyapp "libra-lite/internal/application/story"
	"libra-lite/internal/interfaces/http/dto"
	"libra-lite/internal/workflow/chain"
	wfmodel "libra-lite/internal/workflow/model"
	apperrors "libra-lite/pkg/errors"
)

// SSE 事件名
const (
	SSEState       = "state"
	SSETitle       = "title"
	SSECharacters  = "characters"
	SSEStory       = "story"
	SSEImage       = "image"
	SSEImageFailed = "image_failed"
	SSEWarning     = "warning"
	SSEError       = "error"
	SSEDone        = "done"
)

type sseMessage struct {
	event string
	data  any
}

// StreamStory 以 SSE 推送每个阶段的结果，阶段完成即推送
// @Summary 流式生成故事
// @Description 事件：state / title / characters / story / image / image_failed / warning / error / done
// @Tags Stories
// @Accept json
// @Produce text/event-stream
// @Param body body dto.GenerateStoryRequest true "故事摘要"
// @Success 200 "SSE stream"
// @Failure 422 "SSE warning"
// @Router /v1/stories/stream [post]
func (h *StoryHandler) StreamStory(c *gin.Context) {
	var req dto.GenerateStoryRequest
	if err := c.ShouldBind(&req); err != nil {
		dto.BadRequest(c, "invalid request body")
		return
	}

	setSSEHeaders(c)
	if strings.TrimSpace(req.Summary) == "" {
		c.Status(http.StatusUnprocessableEntity)
		c.SSEvent(SSEWarning, dto.MessageEvent{Message: storyapp.WarningEmptySummary})
		return
	}

	ctx := c.Request.Context()
	events := make(chan sseMessage, 16)
	send := func(m sseMessage) {
		select {
		case events <- m:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(events)
		obs := chain.ObserverFunc(func(_ context.Context, ev wfmodel.Event) {
			if m, ok := eventMessage(ev); ok {
				send(m)
			}
		})
		art, err := h.svc.Generate(ctx, req.Summary, obs)
		if err != nil {
			send(errorMessage(storyapp.MapError(err)))
		}
		if art != nil && art.State.Terminal() {
			send(sseMessage{event: SSEDone, data: dto.ToDoneEvent(art)})
		}
	}()

	c.Stream(func(w io.Writer) bool {
		select {
		case m, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(m.event, m.data)
			return true
		case <-ctx.Done():
			// 客户端断开，生成随 ctx 一起取消
			return false
		}
	})
}

func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// eventMessage 将流水线事件转换为 SSE 消息
func eventMessage(ev wfmodel.Event) (sseMessage, bool) {
	switch ev.Kind {
	case wfmodel.EventState:
		return sseMessage{event: SSEState, data: dto.StateEvent{State: string(ev.State)}}, true
	case wfmodel.EventTitle:
		return sseMessage{event: SSETitle, data: dto.StageTextEvent{Text: ev.Text}}, true
	case wfmodel.EventCharacters:
		return sseMessage{event: SSECharacters, data: dto.StageTextEvent{Text: ev.Text, HTML: dto.RenderMarkdown(ev.Text)}}, true
	case wfmodel.EventStory:
		return sseMessage{event: SSEStory, data: dto.StageTextEvent{Text: ev.Text, HTML: dto.RenderMarkdown(ev.Text)}}, true
	case wfmodel.EventImage:
		img := dto.ToImageResponse(ev.Image)
		if img == nil {
			return sseMessage{}, false
		}
		return sseMessage{event: SSEImage, data: img}, true
	case wfmodel.EventImageFailed:
		msg := "image generation failed"
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		return sseMessage{event: SSEImageFailed, data: dto.MessageEvent{Message: msg}}, true
	}
	return sseMessage{}, false
}

func errorMessage(err *apperrors.AppError) sseMessage {
	if err.Code == apperrors.CodeEmptyInput {
		return sseMessage{event: SSEWarning, data: dto.MessageEvent{Message: err.Detail}}
	}
	return sseMessage{event: SSEError, data: dto.MessageEvent{
		Message:   err.Message,
		ErrorCode: string(err.Code),
		Details:   err.Detail,
	}}
}
