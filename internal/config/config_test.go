package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "LLM_PROVIDER", "LLM_API_KEY", "DASHSCOPE_API_KEY", "LLM_MODEL",
		"LLM_TIMEOUT_SECONDS", "LLM_MAX_RETRIES", "STEAM_SEARCH_DELAY", "MAX_SEARCH_RESULTS",
		"MAX_OUTPUT_RESULTS", "RECOMMEND_DISPATCH", "API_RATE_LIMIT_RPS",
	} {
		t.Setenv(key, "")
	}
}

func TestFromValuesDefaults(t *testing.T) {
	clearEnv(t)

	cfg := FromValues(Values{})
	if cfg.LLMModel != "qwen-plus" {
		t.Fatalf("expected default model qwen-plus, got %q", cfg.LLMModel)
	}
	if cfg.LLMTimeout != 300*time.Second || cfg.LLMMaxRetries != 2 {
		t.Fatalf("unexpected llm defaults: %s / %d", cfg.LLMTimeout, cfg.LLMMaxRetries)
	}
	if cfg.SteamRequestDelay != 500*time.Millisecond {
		t.Fatalf("expected 0.5s search delay, got %s", cfg.SteamRequestDelay)
	}
	if cfg.MaxSearchResults != 30 || cfg.MaxOutputResults != 20 {
		t.Fatalf("unexpected result limits: %d / %d", cfg.MaxSearchResults, cfg.MaxOutputResults)
	}
	if cfg.SteamLanguage != "schinese" || cfg.SteamCountryCode != "CN" {
		t.Fatalf("unexpected locale: %s/%s", cfg.SteamLanguage, cfg.SteamCountryCode)
	}
	if cfg.RecommendDispatch != "local" {
		t.Fatalf("expected local dispatch, got %q", cfg.RecommendDispatch)
	}
}

func TestEnvOverridesFileValues(t *testing.T) {
	clearEnv(t)
	vals, err := ParseValues([]byte(`
llm:
  model: qwen-max
  timeout: 60
steam:
  search_delay: 0.25
  max_output_results: 5
`))
	if err != nil {
		t.Fatalf("ParseValues() error = %v", err)
	}
	t.Setenv("LLM_MODEL", "qwen-turbo")

	cfg := FromValues(vals)
	if cfg.LLMModel != "qwen-turbo" {
		t.Fatalf("expected env override, got %q", cfg.LLMModel)
	}
	if cfg.LLMTimeout != time.Minute {
		t.Fatalf("expected file timeout 60s, got %s", cfg.LLMTimeout)
	}
	if cfg.SteamRequestDelay != 250*time.Millisecond {
		t.Fatalf("expected file delay 250ms, got %s", cfg.SteamRequestDelay)
	}
	if cfg.MaxOutputResults != 5 {
		t.Fatalf("expected file max output 5, got %d", cfg.MaxOutputResults)
	}
}

func TestValuesLookupHandlesMissingSections(t *testing.T) {
	vals := Values{"llm": map[string]any{"model": "x"}}
	if got := vals.String("llm.model.name", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback through scalar, got %q", got)
	}
	if got := vals.String("steam.language", "schinese"); got != "schinese" {
		t.Fatalf("expected fallback for missing section, got %q", got)
	}
	if got := vals.Seconds("llm.timeout", 5*time.Second); got != 5*time.Second {
		t.Fatalf("expected fallback duration, got %s", got)
	}
}

func TestDashScopeKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("DASHSCOPE_API_KEY", "sk-test")

	cfg := FromValues(Values{})
	if cfg.LLMAPIKey != "sk-test" {
		t.Fatalf("expected dashscope key fallback, got %q", cfg.LLMAPIKey)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRejectsMissingKeyAndBadProvider(t *testing.T) {
	clearEnv(t)
	cfg := FromValues(Values{})
	if err := cfg.Validate(); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing key, got %v", err)
	}

	cfg.LLMAPIKey = "k"
	cfg.LLMProvider = "mystery"
	if err := cfg.Validate(); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for provider, got %v", err)
	}
}

func TestLoadReadsExplicitConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  provider: ollama\n  base_url: http://localhost:11434\n  model: qwen2.5\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LLM_BASE_URL", "")
	t.Chdir(dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLMProvider != "ollama" || cfg.LLMModel != "qwen2.5" {
		t.Fatalf("unexpected llm config: %+v", cfg)
	}
}

func TestLoadFailsOnMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Chdir(t.TempDir())

	if _, err := Load(); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
