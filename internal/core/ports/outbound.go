package ports

import (
	"context"
	"time"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

// LanguageModel completes a system+user prompt pair. An empty model selects the backend default.
type LanguageModel interface {
	Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error)
}

// CatalogGateway reads store listings and per-item detail records.
type CatalogGateway interface {
	Listing(ctx context.Context, query domain.ListingQuery) ([]domain.CatalogItem, error)
	// Details returns domain.ErrItemNotFound when the store has no record for id.
	Details(ctx context.Context, id string) (*domain.ItemDetails, error)
}

// DetailStore is a durable cache of detail records.
type DetailStore interface {
	GetDetails(ctx context.Context, id string, maxAge time.Duration) (*domain.ItemDetails, error)
	PutDetails(ctx context.Context, details domain.ItemDetails) error
}

// RecommendDispatcher hands a recommendation run to a remote worker.
type RecommendDispatcher interface {
	DispatchRecommend(ctx context.Context, req domain.RecommendRequest) (domain.RecommendationResult, error)
}

// Telemetry receives pipeline measurements.
type Telemetry interface {
	ObserveStage(stage string, elapsed time.Duration)
	RecordAnalysis(source domain.Source)
	RecordVerdict(source domain.Source)
	RecordRecommendRun(outcome string)
	RecordListing(surface domain.ListingSurface, ok bool)
	RecordEnrichment(ok bool)
}

// NopTelemetry discards all measurements.
type NopTelemetry struct{}

func (NopTelemetry) ObserveStage(string, time.Duration)        {}
func (NopTelemetry) RecordAnalysis(domain.Source)              {}
func (NopTelemetry) RecordVerdict(domain.Source)               {}
func (NopTelemetry) RecordRecommendRun(string)                 {}
func (NopTelemetry) RecordListing(domain.ListingSurface, bool) {}
func (NopTelemetry) RecordEnrichment(bool)                     {}
