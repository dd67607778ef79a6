package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	storyapp "libra-lite/internal/application/story"
	"libra-lite/internal/infrastructure/llm"
	"libra-lite/internal/interfaces/http/dto"
	"libra-lite/internal/workflow/chain"
	wfmodel "libra-lite/internal/workflow/model"
	apperrors "libra-lite/pkg/errors"
)

type fakeGenerator struct {
	events []wfmodel.Event
	art    *wfmodel.StoryArtifact
	err    error
	img    *wfmodel.Image
	calls  int
}

func (g *fakeGenerator) Generate(ctx context.Context, summary string, obs chain.Observer) (*wfmodel.StoryArtifact, error) {
	g.calls++
	if obs != nil {
		for _, ev := range g.events {
			obs.OnEvent(ctx, ev)
		}
	}
	return g.art, g.err
}

func (g *fakeGenerator) GenerateImage(ctx context.Context, prompt string) (*wfmodel.Image, error) {
	g.calls++
	return g.img, g.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(svc StoryGenerator) *gin.Engine {
	h := NewStoryHandler(svc)
	e := gin.New()
	e.POST("/v1/stories", h.GenerateStory)
	e.POST("/v1/stories/stream", h.StreamStory)
	e.POST("/v1/images", h.GenerateImage)
	return e
}

// closeNotifyRecorder c.Stream 需要 http.CloseNotifier
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool {
	return make(chan bool)
}

func post(e *gin.Engine, path, body string) *closeNotifyRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := &closeNotifyRecorder{httptest.NewRecorder()}
	e.ServeHTTP(w, req)
	return w
}

func completeArtifact() *wfmodel.StoryArtifact {
	start := time.Now()
	return &wfmodel.StoryArtifact{
		RunID:      "run-1",
		Summary:    "s",
		Title:      "The Memory Market",
		Characters: "- **Mira**, a seller",
		Story:      "Once upon a time.",
		State:      wfmodel.StateComplete,
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	}
}

func TestGenerateStoryEmptySummaryWarns(t *testing.T) {
	svc := &fakeGenerator{}
	w := post(newEngine(svc), "/v1/stories", `{"summary":"  \n "}`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), storyapp.WarningEmptySummary) {
		t.Errorf("body = %s", w.Body.String())
	}
	if svc.calls != 0 {
		t.Error("service must not be called for blank summary")
	}
}

func TestGenerateStorySuccess(t *testing.T) {
	svc := &fakeGenerator{art: completeArtifact()}
	w := post(newEngine(svc), "/v1/stories", `{"summary":"memories for sale"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data struct {
			Title          string `json:"title"`
			CharactersHTML string `json:"characters_html"`
			StoryHTML      string `json:"story_html"`
			DurationMs     int64  `json:"duration_ms"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.Title != "The Memory Market" {
		t.Errorf("title = %q", resp.Data.Title)
	}
	if !strings.Contains(resp.Data.CharactersHTML, "<strong>Mira</strong>") {
		t.Errorf("characters html = %q", resp.Data.CharactersHTML)
	}
	if !strings.Contains(resp.Data.StoryHTML, "<p>Once upon a time.</p>") {
		t.Errorf("story html = %q", resp.Data.StoryHTML)
	}
	if resp.Data.DurationMs != 1000 {
		t.Errorf("duration = %d", resp.Data.DurationMs)
	}
}

func TestGenerateStoryFailureMapsToBadGateway(t *testing.T) {
	genErr := &llm.GenerationError{Provider: "gemini", Attempts: 3, Err: errors.New("unavailable")}
	svc := &fakeGenerator{err: &chain.StageError{Stage: "characters", Err: genErr}}
	w := post(newEngine(svc), "/v1/stories", `{"summary":"x"}`)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), string(apperrors.CodeLLMCallFailed)) ||
		!strings.Contains(w.Body.String(), "stage: characters") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestGenerateStoryInvalidBody(t *testing.T) {
	w := post(newEngine(&fakeGenerator{}), "/v1/stories", `{`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

type sseEvent struct {
	name string
	data string
}

func parseSSE(body string) []sseEvent {
	var out []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event:"):
				ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				ev.data += strings.TrimPrefix(line, "data:")
			}
		}
		if ev.name != "" {
			out = append(out, ev)
		}
	}
	return out
}

func names(events []sseEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.name
	}
	return out
}

func TestStreamStoryEmitsStagesInOrder(t *testing.T) {
	art := completeArtifact()
	svc := &fakeGenerator{
		art: art,
		events: []wfmodel.Event{
			{Kind: wfmodel.EventState, State: wfmodel.StateTitleRequested},
			{Kind: wfmodel.EventTitle, State: wfmodel.StateTitleReceived, Text: art.Title},
			{Kind: wfmodel.EventCharacters, State: wfmodel.StateCharactersReceived, Text: art.Characters},
			{Kind: wfmodel.EventStory, State: wfmodel.StateStoryReceived, Text: art.Story},
			{Kind: wfmodel.EventImageFailed, State: wfmodel.StateImageFailed, Err: errors.New("no image block")},
			{Kind: wfmodel.EventState, State: wfmodel.StateComplete},
		},
	}
	w := post(newEngine(svc), "/v1/stories/stream", `{"summary":"memories"}`)

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content type = %q", ct)
	}
	got := names(parseSSE(w.Body.String()))
	want := []string{SSEState, SSETitle, SSECharacters, SSEStory, SSEImageFailed, SSEState, SSEDone}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", got, want)
	}

	events := parseSSE(w.Body.String())
	var title dto.StageTextEvent
	if err := json.Unmarshal([]byte(events[1].data), &title); err != nil || title.Text != art.Title {
		t.Errorf("title event = %s", events[1].data)
	}
	if !strings.Contains(events[3].data, "\\u003cp\\u003e") && !strings.Contains(events[3].data, "<p>") {
		t.Errorf("story event should carry html: %s", events[3].data)
	}
}

func TestStreamStoryEmptySummary(t *testing.T) {
	svc := &fakeGenerator{}
	w := post(newEngine(svc), "/v1/stories/stream", `{"summary":""}`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
	events := parseSSE(w.Body.String())
	if len(events) != 1 || events[0].name != SSEWarning {
		t.Fatalf("events = %v", names(events))
	}
	if !strings.Contains(events[0].data, storyapp.WarningEmptySummary) {
		t.Errorf("data = %s", events[0].data)
	}
	if svc.calls != 0 {
		t.Error("service must not be called")
	}
}

func TestStreamStoryFailureSendsErrorThenDone(t *testing.T) {
	art := &wfmodel.StoryArtifact{RunID: "r", State: wfmodel.StateFailed, StartedAt: time.Now()}
	svc := &fakeGenerator{
		art: art,
		err: &chain.StageError{Stage: "title", Err: errors.New("boom")},
		events: []wfmodel.Event{
			{Kind: wfmodel.EventState, State: wfmodel.StateTitleRequested},
			{Kind: wfmodel.EventState, State: wfmodel.StateFailed},
		},
	}
	w := post(newEngine(svc), "/v1/stories/stream", `{"summary":"x"}`)

	events := parseSSE(w.Body.String())
	got := strings.Join(names(events), ",")
	if got != "state,state,error,done" {
		t.Fatalf("events = %s", got)
	}
	if !strings.Contains(events[2].data, string(apperrors.CodeGenerationFailed)) {
		t.Errorf("error event = %s", events[2].data)
	}
	if !strings.Contains(events[3].data, `"state":"failed"`) {
		t.Errorf("done event = %s", events[3].data)
	}
}

func TestStreamStoryNoDoneForUnfinishedRun(t *testing.T) {
	svc := &fakeGenerator{
		art: &wfmodel.StoryArtifact{RunID: "r", State: wfmodel.StateStoryRequested, StartedAt: time.Now()},
		err: errors.New("interrupted"),
	}
	w := post(newEngine(svc), "/v1/stories/stream", `{"summary":"x"}`)

	if got := strings.Join(names(parseSSE(w.Body.String())), ","); got != "error" {
		t.Fatalf("events = %s", got)
	}
}

func TestGenerateImage(t *testing.T) {
	svc := &fakeGenerator{img: &wfmodel.Image{Data: []byte("png"), MIMEType: "image/png"}}
	w := post(newEngine(svc), "/v1/images", `{"prompt":"a cat in a hat"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"data_url":"data:image/png;base64,cG5n"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestGenerateImageEmptyPrompt(t *testing.T) {
	svc := &fakeGenerator{}
	w := post(newEngine(svc), "/v1/images", `{"prompt":" "}`)
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), storyapp.WarningEmptyPrompt) {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if svc.calls != 0 {
		t.Error("service must not be called")
	}
}

func TestGenerateImageNotFound(t *testing.T) {
	svc := &fakeGenerator{err: apperrors.ErrImageNotFound}
	w := post(newEngine(svc), "/v1/images", `{"prompt":"cat"}`)
	if w.Code != apperrors.ErrImageNotFound.HTTPStatus {
		t.Fatalf("status = %d", w.Code)
	}
}
