package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
	"github.com/kirillkom/steam-game-recommender/internal/core/ports"
)

const (
	defaultModelReason    = "This game matches your request."
	genericFallbackReason = "Meets the basic requirements of your request."
)

var errNoModel = errors.New("language model is not configured")

// Scorer rates one candidate against the request.
type Scorer struct {
	model     ports.LanguageModel
	modelName string
	logger    *slog.Logger
	telemetry ports.Telemetry
}

func NewScorer(model ports.LanguageModel, modelName string, logger *slog.Logger, telemetry ports.Telemetry) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	if telemetry == nil {
		telemetry = ports.NopTelemetry{}
	}
	return &Scorer{
		model:     model,
		modelName: modelName,
		logger:    logger,
		telemetry: telemetry,
	}
}

// Score never fails: when the model path errors the deterministic formula is used.
func (s *Scorer) Score(ctx context.Context, item domain.CatalogItem, constraints domain.QueryConstraints, query string) domain.Verdict {
	verdict, err := s.scoreWithModel(ctx, item, constraints, query)
	if err == nil {
		s.telemetry.RecordVerdict(domain.SourceModel)
		return verdict
	}

	s.logger.Warn("score_fallback", "app_id", item.ID, "name", item.Name, "error", err)
	s.telemetry.RecordVerdict(domain.SourceFallback)
	fallback := FallbackVerdict(item, constraints)
	fallback.FallbackCause = err
	return fallback
}

func (s *Scorer) scoreWithModel(ctx context.Context, item domain.CatalogItem, constraints domain.QueryConstraints, query string) (domain.Verdict, error) {
	if s.model == nil {
		return domain.Verdict{}, domain.WrapError(domain.ErrConfiguration, "score item", errNoModel)
	}
	reply, err := s.model.Complete(ctx, scorerSystemPrompt, buildScorerUserPrompt(query, item, constraints), s.modelName)
	if err != nil {
		return domain.Verdict{}, err
	}
	payload, err := decodeModelObject(reply)
	if err != nil {
		return domain.Verdict{}, err
	}
	score, err := integerScore(payload["score"])
	if err != nil {
		return domain.Verdict{}, domain.WrapError(domain.ErrMalformedResponse, "score item", err)
	}

	reason := strings.TrimSpace(stringField(payload, "reason", ""))
	if reason == "" {
		reason = defaultModelReason
	}
	highlights := domain.UniqueStrings(stringListField(payload, "highlights"))
	if len(highlights) > domain.MaxHighlights {
		highlights = highlights[:domain.MaxHighlights]
	}

	return domain.Verdict{
		Score:      score,
		Reason:     reason,
		Highlights: highlights,
		Source:     domain.SourceModel,
	}, nil
}

// maxModelScore bounds raw model scores before integer conversion.
const maxModelScore = 1e6

func integerScore(value any) (int, error) {
	var n float64
	switch typed := value.(type) {
	case float64:
		n = typed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, fmt.Errorf("score %q is not numeric", typed)
		}
		n = parsed
	case nil:
		return 0, errors.New("score is missing")
	default:
		return 0, fmt.Errorf("score has unsupported type %T", value)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) || math.Abs(n) > maxModelScore {
		return 0, fmt.Errorf("score %v is out of range", n)
	}
	return int(n), nil
}

// FallbackVerdict scores an item from price, tag overlap and discount alone.
func FallbackVerdict(item domain.CatalogItem, constraints domain.QueryConstraints) domain.Verdict {
	score := 50.0

	maxPrice := constraints.MaxPrice
	if item.Price <= maxPrice {
		ratio := 0.0
		if maxPrice > 0 {
			ratio = item.Price / maxPrice
		}
		score += math.Round(25 * (1 - 0.3*ratio))
	} else {
		score -= 20
	}

	matched := domain.IntersectFold(item.Tags, constraints.Tags)
	if wanted := domain.UniqueStrings(constraints.Tags); len(wanted) > 0 {
		score += math.Round(20 * float64(len(matched)) / float64(len(wanted)))
	}

	if item.DiscountPercent > 0 {
		score += float64(min(10, item.DiscountPercent/10))
	}

	return domain.Verdict{
		Score:      domain.ClampScore(int(score)),
		Reason:     fallbackReason(item, maxPrice, matched),
		Highlights: []string{},
		Source:     domain.SourceFallback,
	}
}

func fallbackReason(item domain.CatalogItem, maxPrice float64, matched []string) string {
	clauses := make([]string, 0, 3)
	if item.Price <= maxPrice*0.5 {
		clauses = append(clauses, "affordable")
	}
	switch {
	case item.DiscountPercent > 50:
		clauses = append(clauses, fmt.Sprintf("%d%% off", item.DiscountPercent))
	case item.DiscountPercent > 0:
		clauses = append(clauses, "on sale")
	}
	if len(matched) > 0 {
		if len(matched) > 2 {
			matched = matched[:2]
		}
		clauses = append(clauses, "matches: "+strings.Join(matched, ", "))
	}
	if len(clauses) == 0 {
		return genericFallbackReason
	}
	return "Recommended: " + strings.Join(clauses, "; ") + "."
}
