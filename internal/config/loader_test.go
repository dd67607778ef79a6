package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "libra-lite/pkg/errors"
)

const testConfig = `
llm:
  default_provider: gemini
  image_provider: gemini-image
  providers:
    gemini:
      kind: openai
      api_key: ${TEST_LIBRA_KEY}
      model: gemini-1.5-flash
      temperature: 0.4
    gemini-image:
      kind: gemini
      api_key: ${TEST_LIBRA_KEY}
      model: gemini-2.0-flash-preview-image-generation
pipeline:
  prompt_set: ${TEST_LIBRA_SET:lite}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("LIBRA_SET", "x")
	cases := map[string]string{
		"${LIBRA_SET}":         "x",
		"${LIBRA_UNSET:dflt}":  "dflt",
		"${LIBRA_UNSET}":       "",
		"a-${LIBRA_SET:y}-b":   "a-x-b",
		"no placeholders here": "no placeholders here",
	}
	for in, want := range cases {
		if got := expandEnv(in); got != want {
			t.Errorf("expandEnv(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadFromDirAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_LIBRA_KEY", "secret")
	cfg, err := LoadFromDir(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("LoadFromDir: %v", err)
	}

	if cfg.Pipeline.PromptSet != PromptSetLite {
		t.Errorf("prompt set = %q", cfg.Pipeline.PromptSet)
	}
	if cfg.LLM.Retry.MaxAttempts != 3 {
		t.Errorf("max attempts = %d", cfg.LLM.Retry.MaxAttempts)
	}
	if cfg.LLM.Retry.Backoff.Initial != 500*time.Millisecond {
		t.Errorf("initial backoff = %v", cfg.LLM.Retry.Backoff.Initial)
	}
	if cfg.Output.ImagePath != "generated_cat.jpg" {
		t.Errorf("image path = %q", cfg.Output.ImagePath)
	}
	name, p, ok := cfg.TextProvider()
	if !ok || name != "gemini" || p.APIKey != "secret" || p.Temperature != 0.4 {
		t.Errorf("text provider = %s %+v %v", name, p, ok)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateMissingCredential(t *testing.T) {
	t.Setenv("TEST_LIBRA_KEY", "")
	cfg, err := LoadFromDir(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("LoadFromDir: %v", err)
	}

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing api key")
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeConfigInvalid {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestValidateUnknownPromptSet(t *testing.T) {
	t.Setenv("TEST_LIBRA_KEY", "secret")
	t.Setenv("TEST_LIBRA_SET", "epic")
	cfg, err := LoadFromDir(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("LoadFromDir: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown prompt set")
	}
}

func TestValidateImageProviderOnlyWhenEnabled(t *testing.T) {
	cfg := &Config{
		LLM: LLMConfig{
			DefaultProvider: "gemini",
			ImageProvider:   "missing",
			Providers: map[string]ProviderConfig{
				"gemini": {Kind: ProviderKindOpenAI, APIKey: "k", Model: "m"},
			},
			Retry: RetryConfig{MaxAttempts: 1},
		},
		Pipeline: PipelineConfig{PromptSet: PromptSetClassic},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("image disabled: %v", err)
	}
	cfg.Pipeline.ImageEnabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("image enabled with unknown provider should fail")
	}
	if err := cfg.ValidateImage(); err == nil {
		t.Fatal("ValidateImage should fail")
	}
}

func TestLoadFromDirMissingFile(t *testing.T) {
	if _, err := LoadFromDir(t.TempDir()); err == nil {
		t.Fatal("expected error for missing config.yaml")
	}
}
