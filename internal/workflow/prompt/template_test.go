package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func TestRenderTitleV1(t *testing.T) {
	tpl, err := NewRegistry().Template(PromptTitleV1)
	if err != nil {
		t.Fatalf("Template: %v", err)
	}

	msgs, err := tpl.Render(context.Background(), map[string]string{"summary": "A dragon who fears fire"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != schema.System || msgs[0].Content != "You are a creative assistant." {
		t.Errorf("system message = %+v", msgs[0])
	}
	want := "Given the summary: 'A dragon who fears fire', create a title for a short story. Only return a single title."
	if msgs[1].Role != schema.User || msgs[1].Content != want {
		t.Errorf("human message = %q", msgs[1].Content)
	}
}

func TestRenderStoryKeepsCharactersVerbatim(t *testing.T) {
	tpl, err := NewRegistry().Template(PromptStoryV1)
	if err != nil {
		t.Fatal(err)
	}
	chars := "1. Ava, 30, brave {not a field}\n2. Bo, 12, curious"
	msgs, err := tpl.Render(context.Background(), map[string]string{
		"title":      "The Lost Key",
		"characters": chars,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	human := msgs[len(msgs)-1].Content
	if !strings.HasPrefix(human, "Write a short story titled 'The Lost Key' featuring the following characters:\n\n") {
		t.Errorf("unexpected prefix: %q", human)
	}
	if !strings.HasSuffix(human, chars) {
		t.Errorf("characters not inserted verbatim: %q", human)
	}
}

func TestRenderMissingField(t *testing.T) {
	tpl, err := NewRegistry().Template(PromptStoryV1)
	if err != nil {
		t.Fatal(err)
	}
	_, err = tpl.Render(context.Background(), map[string]string{"title": "x"})

	var missing *MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldError, got %v", err)
	}
	if missing.Field != "characters" || missing.Template != PromptStoryV1 {
		t.Errorf("unexpected error: %+v", missing)
	}
}

func TestRenderEmptyValueIsPresent(t *testing.T) {
	tpl := New("t", "", "Title: '{title}'")
	msgs, err := tpl.Render(context.Background(), map[string]string{"title": ""})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "Title: ''" {
		t.Errorf("got %+v", msgs)
	}
}

func TestTemplatesWithoutSystemMessage(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []PromptID{PromptTitleV2, PromptImageV1} {
		tpl, err := reg.Template(id)
		if err != nil {
			t.Fatalf("%s: %v", id, err)
		}
		if tpl.System != "" {
			t.Errorf("%s: system = %q, want empty", id, tpl.System)
		}
	}

	tpl, _ := reg.Template(PromptImageV1)
	msgs, err := tpl.Render(context.Background(), map[string]string{"title": "Cat on a Moon"})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "Photorealistic illustration of: Cat on a Moon" {
		t.Errorf("got %+v", msgs)
	}
}

func TestRequiredFields(t *testing.T) {
	reg := NewRegistry()
	cases := map[PromptID]string{
		PromptTitleV1:       "summary",
		PromptCharactersV1:  "title",
		PromptStoryV1:       "characters,title",
		PromptTitleV2:       "summary",
		PromptCharactersV2:  "title",
		PromptStoryV2:       "characters,title",
		PromptImageV1:       "title",
		PromptImagePromptV1: "prompt",
	}
	for id, want := range cases {
		tpl, err := reg.Template(id)
		if err != nil {
			t.Fatalf("%s: %v", id, err)
		}
		if got := strings.Join(tpl.Required, ","); got != want {
			t.Errorf("%s: required = %s, want %s", id, got, want)
		}
	}
}

func TestRegistryCachesAndRejectsUnknown(t *testing.T) {
	reg := NewRegistry()
	a, _ := reg.Template(PromptTitleV1)
	b, _ := reg.Template(PromptTitleV1)
	if a != b {
		t.Error("expected cached template instance")
	}
	if _, err := reg.Template("nope"); err == nil {
		t.Error("expected error for unknown prompt id")
	}
	if _, err := SetByName("epic"); err == nil {
		t.Error("expected error for unknown set")
	}
}
