package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
	"github.com/kirillkom/steam-game-recommender/internal/infrastructure/resilience"
)

var errEmptyCandidate = errors.New("gemini returned no candidate text")

// Client is a LanguageModel backed by the Gemini API.
type Client struct {
	cli      *genai.Client
	model    string
	executor *resilience.Executor
}

type Options struct {
	// BaseURL overrides the API endpoint; empty uses the public Gemini endpoint.
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

func New(ctx context.Context, apiKey, model string, opts Options) (*Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if strings.TrimSpace(opts.BaseURL) != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		cli:      cli,
		model:    model,
		executor: resilience.NewExecutor(resilience.DefaultConfig().WithRetries(opts.MaxRetries).WithAttemptTimeout(timeout), opts.Logger),
	}, nil
}

func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error) {
	if strings.TrimSpace(model) == "" {
		model = c.model
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: userPrompt}}}}

	var text string
	err := c.executor.Execute(ctx, "gemini.generate", func(callCtx context.Context) error {
		resp, err := c.cli.Models.GenerateContent(callCtx, model, contents, config)
		if err != nil {
			return err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return domain.WrapError(domain.ErrMalformedResponse, "gemini generate", errEmptyCandidate)
		}
		parts := make([]string, 0, len(resp.Candidates[0].Content.Parts))
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil && part.Text != "" {
				parts = append(parts, part.Text)
			}
		}
		text = strings.Join(parts, "")
		return nil
	}, classifyGeminiError)
	if err != nil {
		return "", resilience.WrapTemporaryIfNeeded("gemini generate", err)
	}
	return text, nil
}

func classifyGeminiError(err error) resilience.ErrorClassification {
	if domain.IsKind(err, domain.ErrMalformedResponse) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ClassifyHTTPError(err)
}
