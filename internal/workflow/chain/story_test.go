package chain

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	wfmodel "libra-lite/internal/workflow/model"
	"libra-lite/internal/workflow/node"
	workflowprompt "libra-lite/internal/workflow/prompt"
)

// fakeModel 按调用顺序返回预设响应，并记录收到的消息
type fakeModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	errs      []error
	received  [][]*schema.Message
}

func (m *fakeModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.received)
	m.received = append(m.received, in)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i >= len(m.responses) {
		return nil, fmt.Errorf("unexpected call %d", i)
	}
	return m.responses[i], nil
}

func (m *fakeModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func (m *fakeModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

type fakeFactory struct {
	models map[string]model.BaseChatModel
}

func (f *fakeFactory) Get(_ context.Context, name string) (model.BaseChatModel, error) {
	m, ok := f.models[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return m, nil
}

type recorder struct {
	mu     sync.Mutex
	events []wfmodel.Event
}

func (r *recorder) OnEvent(_ context.Context, ev wfmodel.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) states() []wfmodel.RunState {
	var out []wfmodel.RunState
	for _, ev := range r.events {
		if ev.Kind == wfmodel.EventState {
			out = append(out, ev.State)
		}
	}
	return out
}

func (r *recorder) kinds() []wfmodel.EventKind {
	var out []wfmodel.EventKind
	for _, ev := range r.events {
		if ev.Kind != wfmodel.EventState {
			out = append(out, ev.Kind)
		}
	}
	return out
}

func textResponses(texts ...string) []*schema.Message {
	out := make([]*schema.Message, len(texts))
	for i, t := range texts {
		out[i] = schema.AssistantMessage(t, nil)
	}
	return out
}

func imageResponse(data []byte) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: "here"},
			{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{
				URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
			}},
		},
	}
}

func classicSet(t *testing.T) workflowprompt.Set {
	t.Helper()
	set, err := workflowprompt.SetByName("classic")
	if err != nil {
		t.Fatal(err)
	}
	return set
}

func newTestChain(t *testing.T, text, image model.BaseChatModel, opts Options) *StoryChain {
	t.Helper()
	models := map[string]model.BaseChatModel{"text": text}
	if image != nil {
		models["image"] = image
	}
	opts.TextProvider = "text"
	opts.ImageProvider = "image"
	opts.PromptSet = classicSet(t)
	return NewStoryChain(&fakeFactory{models: models}, nil, opts)
}

func TestRunTextOnlyHappyPath(t *testing.T) {
	text := &fakeModel{responses: textResponses("  The Lost Key  \n", "Ava, 30, brave", "Once upon a time...")}
	c := newTestChain(t, text, nil, Options{})
	rec := &recorder{}

	art, err := c.Run(context.Background(), "run-1", "A girl finds a key", rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if art.Title != "The Lost Key" || art.Characters != "Ava, 30, brave" || art.Story != "Once upon a time..." {
		t.Fatalf("artifact = %+v", art)
	}
	if art.State != wfmodel.StateComplete || art.Image != nil || art.ImageError != "" {
		t.Fatalf("unexpected final artifact: %+v", art)
	}
	if text.calls() != 3 {
		t.Fatalf("model calls = %d, want 3", text.calls())
	}

	// 角色阶段只收到清洗后的标题
	chars := text.received[1]
	if got := chars[len(chars)-1].Content; !strings.Contains(got, "'The Lost Key'") {
		t.Errorf("characters prompt = %q", got)
	}
	story := text.received[2][len(text.received[2])-1].Content
	if !strings.HasPrefix(story, "Write a short story titled 'The Lost Key' featuring the following characters:\n\nAva, 30, brave") {
		t.Errorf("story prompt = %q", story)
	}

	wantStates := []wfmodel.RunState{
		wfmodel.StateTitleRequested, wfmodel.StateTitleReceived,
		wfmodel.StateCharactersRequested, wfmodel.StateCharactersReceived,
		wfmodel.StateStoryRequested, wfmodel.StateStoryReceived,
		wfmodel.StateComplete,
	}
	if got := rec.states(); fmt.Sprint(got) != fmt.Sprint(wantStates) {
		t.Errorf("states = %v\nwant %v", got, wantStates)
	}
	wantKinds := []wfmodel.EventKind{wfmodel.EventTitle, wfmodel.EventCharacters, wfmodel.EventStory}
	if got := rec.kinds(); fmt.Sprint(got) != fmt.Sprint(wantKinds) {
		t.Errorf("result events = %v", got)
	}
	if len(art.Usage) != 3 || art.Usage[0].Stage != StageTitle {
		t.Errorf("usage = %+v", art.Usage)
	}
}

func TestRunRejectsEmptySummary(t *testing.T) {
	text := &fakeModel{}
	c := newTestChain(t, text, nil, Options{})
	for _, in := range []string{"", "   ", "\n\t"} {
		_, err := c.Run(context.Background(), "run", in, nil)
		if !errors.Is(err, ErrEmptySummary) {
			t.Errorf("Run(%q) err = %v", in, err)
		}
	}
	if text.calls() != 0 {
		t.Fatalf("model invoked %d times for empty input", text.calls())
	}
}

func TestRunCharactersFailureStopsPipeline(t *testing.T) {
	boom := errors.New("upstream exhausted")
	text := &fakeModel{
		responses: textResponses("Title", "", ""),
		errs:      []error{nil, boom},
	}
	c := newTestChain(t, text, nil, Options{})
	rec := &recorder{}

	art, err := c.Run(context.Background(), "run", "summary", rec)
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageCharacters {
		t.Fatalf("expected characters StageError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatal("cause should be preserved")
	}
	if text.calls() != 2 {
		t.Fatalf("story stage must not be invoked, calls = %d", text.calls())
	}
	if art.State != wfmodel.StateFailed || art.Title != "Title" || art.Story != "" {
		t.Fatalf("artifact = %+v", art)
	}
	states := rec.states()
	if states[len(states)-1] != wfmodel.StateFailed {
		t.Errorf("last state = %v", states[len(states)-1])
	}
}

func TestRunEmptyModelOutputFails(t *testing.T) {
	text := &fakeModel{responses: textResponses("   ")}
	c := newTestChain(t, text, nil, Options{})

	_, err := c.Run(context.Background(), "run", "summary", nil)
	var empty *node.EmptyOutputError
	if !errors.As(err, &empty) || empty.Field != wfmodel.FieldTitle {
		t.Fatalf("expected empty title error, got %v", err)
	}
}

func TestRunWithImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	text := &fakeModel{responses: textResponses("Cat on a Moon", "Tom, 3, curious", "Story")}
	image := &fakeModel{responses: []*schema.Message{imageResponse(png)}}
	c := newTestChain(t, text, image, Options{ImageEnabled: true})
	rec := &recorder{}

	art, err := c.Run(context.Background(), "run", "a cat in space", rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if art.Image == nil || string(art.Image.Data) != string(png) {
		t.Fatalf("image = %+v", art.Image)
	}
	prompt := image.received[0][0].Content
	if prompt != "Photorealistic illustration of: Cat on a Moon" {
		t.Errorf("image prompt = %q", prompt)
	}
	states := rec.states()
	want := []wfmodel.RunState{wfmodel.StateImageRequested, wfmodel.StateImageReceived, wfmodel.StateComplete}
	if fmt.Sprint(states[len(states)-3:]) != fmt.Sprint(want) {
		t.Errorf("tail states = %v", states)
	}
}

func TestRunImageWithoutBlockIsNonFatal(t *testing.T) {
	text := &fakeModel{responses: textResponses("T", "C", "S")}
	image := &fakeModel{responses: textResponses("sorry, text only")}
	c := newTestChain(t, text, image, Options{ImageEnabled: true})
	rec := &recorder{}

	art, err := c.Run(context.Background(), "run", "summary", rec)
	if err != nil {
		t.Fatalf("image failure must not fail the run: %v", err)
	}
	if art.Story != "S" || art.Image != nil || art.State != wfmodel.StateComplete {
		t.Fatalf("artifact = %+v", art)
	}
	if !strings.Contains(art.ImageError, node.ErrImageBlockNotFound.Error()) {
		t.Errorf("image error = %q", art.ImageError)
	}
	var failed *wfmodel.Event
	for i := range rec.events {
		if rec.events[i].Kind == wfmodel.EventImageFailed {
			failed = &rec.events[i]
		}
	}
	if failed == nil || !errors.Is(failed.Err, node.ErrImageBlockNotFound) {
		t.Errorf("image_failed event = %+v", failed)
	}
}

func TestRunImageModelErrorIsNonFatal(t *testing.T) {
	text := &fakeModel{responses: textResponses("T", "C", "S")}
	image := &fakeModel{errs: []error{errors.New("quota")}}
	c := newTestChain(t, text, image, Options{ImageEnabled: true})

	art, err := c.Run(context.Background(), "run", "summary", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if art.ImageError == "" || art.Image != nil {
		t.Fatalf("artifact = %+v", art)
	}
}

func TestImageStageTracksArtifactState(t *testing.T) {
	cases := []struct {
		name  string
		image *fakeModel
		track bool
		want  wfmodel.RunState
	}{
		{"received", &fakeModel{responses: []*schema.Message{imageResponse([]byte("img"))}}, true, wfmodel.StateImageReceived},
		{"failed", &fakeModel{errs: []error{errors.New("quota")}}, true, wfmodel.StateImageFailed},
		{"events only", &fakeModel{responses: []*schema.Message{imageResponse([]byte("img"))}}, false, wfmodel.StateStoryReceived},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestChain(t, &fakeModel{}, tc.image, Options{ImageEnabled: true})
			art := &wfmodel.StoryArtifact{State: wfmodel.StateStoryReceived}
			rec := &recorder{}

			c.runImageStage(context.Background(), art, rec, wfmodel.Fields{wfmodel.FieldTitle: "T"}, func(wfmodel.LLMUsageMeta) {}, tc.track)
			if art.State != tc.want {
				t.Errorf("artifact state = %v, want %v", art.State, tc.want)
			}
			states := rec.states()
			if len(states) != 2 || states[0] != wfmodel.StateImageRequested {
				t.Errorf("states = %v", states)
			}
		})
	}
}

func TestRunMissingTemplateFieldStopsPipeline(t *testing.T) {
	text := &fakeModel{responses: textResponses("T", "C", "S")}
	c := newTestChain(t, text, nil, Options{})
	c.stages[0].Inputs = nil
	rec := &recorder{}

	art, err := c.Run(context.Background(), "run", "summary", rec)
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageTitle {
		t.Fatalf("expected title StageError, got %v", err)
	}
	var missing *workflowprompt.MissingFieldError
	if !errors.As(err, &missing) || missing.Field != wfmodel.FieldSummary {
		t.Fatalf("expected missing summary field, got %v", err)
	}
	if text.calls() != 0 {
		t.Errorf("model invoked %d times", text.calls())
	}
	if art.State != wfmodel.StateFailed {
		t.Errorf("state = %v", art.State)
	}
}

func TestRunConcurrentImage(t *testing.T) {
	text := &fakeModel{responses: textResponses("T", "C", "S")}
	image := &fakeModel{responses: []*schema.Message{imageResponse([]byte("img"))}}
	c := newTestChain(t, text, image, Options{ImageEnabled: true, ConcurrentImage: true})
	rec := &recorder{}

	art, err := c.Run(context.Background(), "run", "summary", rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if art.Image == nil || art.Story != "S" {
		t.Fatalf("artifact = %+v", art)
	}
	states := rec.states()
	if states[len(states)-1] != wfmodel.StateComplete {
		t.Errorf("last state = %v", states[len(states)-1])
	}
	if text.calls() != 3 || image.calls() != 1 {
		t.Errorf("calls text=%d image=%d", text.calls(), image.calls())
	}
}

func TestRunLitePromptSet(t *testing.T) {
	text := &fakeModel{responses: textResponses("T", "C", "S")}
	set, _ := workflowprompt.SetByName("lite")
	c := NewStoryChain(&fakeFactory{models: map[string]model.BaseChatModel{"text": text}}, nil, Options{
		TextProvider: "text",
		PromptSet:    set,
	})

	if _, err := c.Run(context.Background(), "run", "summary", nil); err != nil {
		t.Fatal(err)
	}
	title := text.received[0]
	if len(title) != 1 || title[0].Content != "Create a concise story title from this summary: 'summary'. Return only the title." {
		t.Errorf("lite title prompt = %+v", title)
	}
}

func TestGenerateImageFromPrompt(t *testing.T) {
	image := &fakeModel{responses: []*schema.Message{imageResponse([]byte("cat"))}}
	c := newTestChain(t, &fakeModel{}, image, Options{})

	img, err := c.GenerateImage(context.Background(), "A cuddly cat wearing a hat")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(img.Data) != "cat" {
		t.Errorf("data = %q", img.Data)
	}
	if got := image.received[0][0].Content; got != "A cuddly cat wearing a hat" {
		t.Errorf("prompt = %q", got)
	}
	if _, err := c.GenerateImage(context.Background(), "  "); !errors.Is(err, ErrEmptySummary) {
		t.Errorf("empty prompt err = %v", err)
	}
}

func TestStageDescriptors(t *testing.T) {
	stages := DefaultStages(classicSet(t), 0)
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	if strings.Join(names, ",") != "title,characters,story" {
		t.Fatalf("stage order = %v", names)
	}
	in := stages[2].inputs(wfmodel.Fields{"title": "T", "characters": "C", "summary": "S"})
	if len(in) != 2 || in["summary"] != "" {
		t.Errorf("story inputs leak undeclared fields: %v", in)
	}
	if len(DefaultStages(classicSet(t), 2048)[2].Options) != 1 {
		t.Error("story max tokens option missing")
	}
}
