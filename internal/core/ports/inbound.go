package ports

import (
	"context"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

// Recommender is the inbound contract for free-text recommendation runs.
type Recommender interface {
	Recommend(ctx context.Context, query string, maxOutput int) domain.RecommendationResult
}

// CatalogBrowser is the inbound contract for direct catalog lookups.
type CatalogBrowser interface {
	Search(ctx context.Context, keywords string, maxPrice *float64, maxResults int) []domain.CatalogItem
	GetDiscountedGames(ctx context.Context, minDiscount int, maxPrice *float64, maxResults int) []domain.CatalogItem
	GetFreeGames(ctx context.Context, maxResults int, tagFilter []string) []domain.CatalogItem
	GetTopGames(ctx context.Context, maxResults int, mode domain.RankingMode) []domain.CatalogItem
	GetItemDetails(ctx context.Context, id string) (*domain.CatalogItem, error)
	GetItemByName(ctx context.Context, name string) (*domain.CatalogItem, error)
}
