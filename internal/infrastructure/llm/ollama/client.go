package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/steam-game-recommender/internal/infrastructure/resilience"
)

// Client talks to a local Ollama server through /api/chat.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

func New(baseURL, model string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	cfg := resilience.DefaultConfig().WithRetries(opts.MaxRetries).WithAttemptTimeout(timeout)
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   resilience.NewExecutor(cfg, opts.Logger),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Complete asks the model for a JSON reply to the system and user prompts.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error) {
	if strings.TrimSpace(model) == "" {
		model = c.model
	}
	request := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream:  false,
		Format:  "json",
		Options: map[string]any{"temperature": 0.2},
	}

	var response chatResponse
	err := c.executor.Execute(ctx, "ollama.chat", func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/chat", request, &response, "chat")
	}, classifyOllamaError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama chat", err)
	}

	content := strings.TrimSpace(response.Message.Content)
	if content == "" {
		return "", fmt.Errorf("ollama chat returned empty content")
	}
	return content, nil
}
