package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
	"github.com/kirillkom/steam-game-recommender/internal/core/ports"
)

const maxSearchTerms = 3

// TextAnalyzer turns a free-text request into query constraints.
type TextAnalyzer struct {
	model     ports.LanguageModel
	modelName string
	logger    *slog.Logger
	telemetry ports.Telemetry
}

func NewTextAnalyzer(model ports.LanguageModel, modelName string, logger *slog.Logger, telemetry ports.Telemetry) *TextAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if telemetry == nil {
		telemetry = ports.NopTelemetry{}
	}
	return &TextAnalyzer{
		model:     model,
		modelName: modelName,
		logger:    logger,
		telemetry: telemetry,
	}
}

// Analyze never fails: model output that cannot be used falls back to keyword rules.
func (a *TextAnalyzer) Analyze(ctx context.Context, query string) domain.Extraction {
	started := time.Now()
	defer func() { a.telemetry.ObserveStage("analyze", time.Since(started)) }()

	constraints, err := a.analyzeWithModel(ctx, query)
	if err == nil {
		a.telemetry.RecordAnalysis(domain.SourceModel)
		return domain.Extraction{
			Constraints: constraints.Normalize(),
			Source:      domain.SourceModel,
		}
	}

	a.logger.Warn("analysis_fallback", "error", err)
	a.telemetry.RecordAnalysis(domain.SourceFallback)
	return domain.Extraction{
		Constraints:   ruleBasedConstraints(query).Normalize(),
		Source:        domain.SourceFallback,
		FallbackCause: err,
	}
}

func (a *TextAnalyzer) analyzeWithModel(ctx context.Context, query string) (domain.QueryConstraints, error) {
	if a.model == nil {
		return domain.QueryConstraints{}, domain.WrapError(domain.ErrConfiguration, "analyze query", errNoModel)
	}
	reply, err := a.model.Complete(ctx, analyzerSystemPrompt, buildAnalyzerUserPrompt(query), a.modelName)
	if err != nil {
		return domain.QueryConstraints{}, err
	}
	payload, err := decodeModelObject(reply)
	if err != nil {
		return domain.QueryConstraints{}, err
	}
	return constraintsFromPayload(payload), nil
}

func constraintsFromPayload(payload map[string]any) domain.QueryConstraints {
	constraints := domain.NewQueryConstraints()
	if v, ok := numberField(payload, "max_price"); ok {
		constraints.MaxPrice = v
	}
	if v, ok := numberField(payload, "min_price"); ok {
		constraints.MinPrice = v
	}
	constraints.Keywords = stringListField(payload, "keywords")
	constraints.Tags = stringListField(payload, "tags")
	constraints.Genres = stringListField(payload, "genres")
	constraints.Preferences = preferencesField(payload, "preferences")
	return constraints
}

// GenerateSearchQuery joins up to three genres, or keywords when no genres exist.
func (a *TextAnalyzer) GenerateSearchQuery(constraints domain.QueryConstraints) string {
	return GenerateSearchQuery(constraints)
}

func GenerateSearchQuery(constraints domain.QueryConstraints) string {
	terms := constraints.Genres
	if len(terms) == 0 {
		terms = constraints.Keywords
	}
	if len(terms) > maxSearchTerms {
		terms = terms[:maxSearchTerms]
	}
	query := strings.Join(terms, " ")
	if strings.TrimSpace(query) == "" {
		return domain.GenericSearchTerm
	}
	return query
}
