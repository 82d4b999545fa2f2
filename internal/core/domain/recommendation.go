package domain

import "math"

const (
	MaxRecommendationTags  = 8
	MaxDescriptionRunes    = 200
	MaxHighlights          = 3
	MinRecommendationScore = 0
	MaxRecommendationScore = 100
)

// Source tells which tier produced a decision.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Extraction is the analyzer's outcome for one request.
type Extraction struct {
	Constraints   QueryConstraints
	Source        Source
	FallbackCause error
}

// Verdict is the scorer's outcome for one candidate.
type Verdict struct {
	Score         int
	Reason        string
	Highlights    []string
	Source        Source
	FallbackCause error
}

type ScoredRecommendation struct {
	CatalogItem
	OriginalPrice float64  `json:"original_price"`
	Score         int      `json:"recommendation_score"`
	Reason        string   `json:"recommendation_reason"`
	Highlights    []string `json:"highlights"`
	ScoreSource   Source   `json:"score_source"`
}

// NewScoredRecommendation snapshots item for presentation and attaches the verdict.
func NewScoredRecommendation(item CatalogItem, v Verdict) ScoredRecommendation {
	snapshot := item
	tags := item.Tags
	if len(tags) > MaxRecommendationTags {
		tags = tags[:MaxRecommendationTags]
	}
	snapshot.Tags = append([]string{}, tags...)
	snapshot.Description = truncateRunes(item.Description, MaxDescriptionRunes)

	highlights := v.Highlights
	if len(highlights) > MaxHighlights {
		highlights = highlights[:MaxHighlights]
	}

	return ScoredRecommendation{
		CatalogItem:   snapshot,
		OriginalPrice: OriginalPrice(item.Price, item.DiscountPercent),
		Score:         ClampScore(v.Score),
		Reason:        v.Reason,
		Highlights:    append([]string{}, highlights...),
		ScoreSource:   v.Source,
	}
}

// OriginalPrice reverses a percentage discount. Discounts of 100% or more leave the price unchanged.
func OriginalPrice(price float64, discountPercent int) float64 {
	if discountPercent <= 0 || discountPercent >= 100 {
		return price
	}
	original := price / (1 - float64(discountPercent)/100)
	return math.Round(original*100) / 100
}

func ClampScore(score int) int {
	return max(MinRecommendationScore, min(MaxRecommendationScore, score))
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

type RecommendationResult struct {
	Query           string                 `json:"query"`
	Analysis        QueryConstraints       `json:"analysis"`
	TotalFound      int                    `json:"total_found"`
	TotalEvaluated  int                    `json:"total_evaluated"`
	Recommendations []ScoredRecommendation `json:"recommendations"`
	Message         string                 `json:"message,omitempty"`
}

// RecommendRequest is the transport-neutral input to a recommendation run.
type RecommendRequest struct {
	Query      string `json:"query"`
	MaxResults *int   `json:"max_results,omitempty"`
}
