package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

const defaultConfigFile = "config.yaml"

type Config struct {
	APIPort   string
	LogLevel  string
	LogFormat string

	LLMProvider   string
	LLMBaseURL    string
	LLMAPIKey     string
	LLMModel      string
	LLMTimeout    time.Duration
	LLMMaxRetries int

	SteamBaseURL      string
	SteamLanguage     string
	SteamCountryCode  string
	SteamTimeout      time.Duration
	SteamMaxRetries   int
	SteamRequestDelay time.Duration

	MaxSearchResults int
	MaxOutputResults int
	MaxScoreWorkers  int
	OutputFile       string

	CacheSize   int
	CacheTTL    time.Duration
	PostgresDSN string

	NATSURL           string
	NATSSubject       string
	RecommendDispatch string
	DispatchTimeout   time.Duration

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	APIQueueWait      time.Duration

	WorkerMetricsPort string
}

// Load reads an optional .env, then an optional YAML file, then the process
// environment. Later sources win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, domain.WrapError(domain.ErrConfiguration, "load .env", err)
	}

	vals := Values{}
	path := mustEnv("CONFIG_FILE", defaultConfigFile)
	if _, err := os.Stat(path); err == nil {
		parsed, err := ReadValues(path)
		if err != nil {
			return Config{}, domain.WrapError(domain.ErrConfiguration, "load config file", err)
		}
		vals = parsed
	} else if path != defaultConfigFile {
		return Config{}, domain.WrapError(domain.ErrConfiguration, "load config file", err)
	}

	cfg := FromValues(vals)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromValues resolves every setting from the environment with vals as the fallback layer.
func FromValues(vals Values) Config {
	provider := strings.ToLower(mustEnv("LLM_PROVIDER", vals.String("llm.provider", "openai")))
	apiKey := mustEnv("LLM_API_KEY", vals.String("llm.api_key", ""))
	if apiKey == "" {
		apiKey = os.Getenv("DASHSCOPE_API_KEY")
	}

	return Config{
		APIPort:   mustEnv("API_PORT", vals.String("server.port", "8080")),
		LogLevel:  mustEnv("LOG_LEVEL", vals.String("logging.level", "info")),
		LogFormat: mustEnv("LOG_FORMAT", vals.String("logging.format", "json")),

		LLMProvider:   provider,
		LLMBaseURL:    mustEnv("LLM_BASE_URL", vals.String("llm.base_url", "")),
		LLMAPIKey:     apiKey,
		LLMModel:      mustEnv("LLM_MODEL", vals.String("llm.model", "qwen-plus")),
		LLMTimeout:    mustEnvSeconds("LLM_TIMEOUT_SECONDS", vals.Seconds("llm.timeout", 300*time.Second)),
		LLMMaxRetries: mustEnvInt("LLM_MAX_RETRIES", vals.Int("llm.max_retries", 2)),

		SteamBaseURL:      mustEnv("STEAM_BASE_URL", vals.String("steam.base_url", "https://store.steampowered.com")),
		SteamLanguage:     mustEnv("STEAM_LANGUAGE", vals.String("steam.language", "schinese")),
		SteamCountryCode:  mustEnv("STEAM_COUNTRY_CODE", vals.String("steam.country_code", "CN")),
		SteamTimeout:      mustEnvSeconds("STEAM_REQUEST_TIMEOUT", vals.Seconds("steam.request_timeout", 10*time.Second)),
		SteamMaxRetries:   mustEnvInt("STEAM_MAX_RETRIES", vals.Int("steam.max_retries", 2)),
		SteamRequestDelay: mustEnvSeconds("STEAM_SEARCH_DELAY", vals.Seconds("steam.search_delay", 500*time.Millisecond)),

		MaxSearchResults: mustEnvInt("MAX_SEARCH_RESULTS", vals.Int("steam.max_search_results", 30)),
		MaxOutputResults: mustEnvInt("MAX_OUTPUT_RESULTS", vals.Int("steam.max_output_results", 20)),
		MaxScoreWorkers:  mustEnvInt("MAX_SCORE_WORKERS", vals.Int("recommendation.max_workers", 8)),
		OutputFile:       mustEnv("RECOMMEND_OUTPUT_FILE", vals.String("recommendation.output_file", "recommendations.json")),

		CacheSize:   mustEnvInt("CATALOG_CACHE_SIZE", vals.Int("cache.size", 512)),
		CacheTTL:    mustEnvSeconds("CATALOG_CACHE_TTL_SECONDS", vals.Seconds("cache.ttl", 6*time.Hour)),
		PostgresDSN: mustEnv("CATALOG_CACHE_DSN", vals.String("cache.postgres_dsn", "")),

		NATSURL:           mustEnv("NATS_URL", vals.String("nats.url", "nats://localhost:4222")),
		NATSSubject:       mustEnv("NATS_SUBJECT", vals.String("nats.subject", "recommend.requests")),
		RecommendDispatch: strings.ToLower(mustEnv("RECOMMEND_DISPATCH", vals.String("nats.dispatch", "local"))),
		DispatchTimeout:   mustEnvSeconds("NATS_DISPATCH_TIMEOUT_SECONDS", vals.Seconds("nats.dispatch_timeout", 10*time.Minute)),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", vals.Float("server.rate_limit_rps", 5)),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", vals.Int("server.rate_limit_burst", 10)),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", vals.Int("server.max_in_flight", 16)),
		APIQueueWait:      mustEnvSeconds("API_QUEUE_WAIT_SECONDS", vals.Seconds("server.queue_wait", 2*time.Second)),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", vals.String("server.worker_metrics_port", "9090")),
	}
}

func (c Config) Validate() error {
	var problems []string
	switch c.LLMProvider {
	case "openai", "ollama", "gemini":
	default:
		problems = append(problems, fmt.Sprintf("unknown llm provider %q", c.LLMProvider))
	}
	if c.LLMProvider != "ollama" && c.LLMAPIKey == "" {
		problems = append(problems, "llm api key is required (LLM_API_KEY or DASHSCOPE_API_KEY)")
	}
	if c.LLMProvider == "ollama" && c.LLMBaseURL == "" {
		problems = append(problems, "ollama requires LLM_BASE_URL")
	}
	if c.LLMTimeout <= 0 {
		problems = append(problems, "llm timeout must be positive")
	}
	if c.SteamTimeout <= 0 {
		problems = append(problems, "steam request timeout must be positive")
	}
	if c.SteamRequestDelay < 0 {
		problems = append(problems, "steam search delay must not be negative")
	}
	if c.MaxSearchResults <= 0 {
		problems = append(problems, "max search results must be positive")
	}
	if c.MaxScoreWorkers <= 0 {
		problems = append(problems, "max score workers must be positive")
	}
	switch c.RecommendDispatch {
	case "local", "nats":
	default:
		problems = append(problems, fmt.Sprintf("unknown recommend dispatch %q", c.RecommendDispatch))
	}
	if len(problems) > 0 {
		return domain.WrapError(domain.ErrConfiguration, "validate config", errors.New(strings.Join(problems, "; ")))
	}
	return nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := parseSeconds(v)
	if err != nil {
		return fallback
	}
	return d
}
