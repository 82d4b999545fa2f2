package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
	"github.com/kirillkom/steam-game-recommender/internal/core/ports"
)

var (
	errEmptyID   = errors.New("item id is empty")
	errEmptyName = errors.New("item name is empty")
	errNoMatch   = errors.New("no store item matches the name")
)

const (
	searchListingFactor   = 2
	specialsListingFactor = 3
	freeListingFactor     = 3
	topListingFactor      = 2
	browseEnrichWorkers   = 10
)

type CatalogOptions struct {
	// ListingDelay is the minimum spacing between consecutive listing requests.
	ListingDelay time.Duration
	// StoreURL formats an item id into its store page link.
	StoreURL func(id string) string
}

// CatalogService reads store listings and fills them in with detail records.
type CatalogService struct {
	gateway   ports.CatalogGateway
	limiter   *rate.Limiter
	storeURL  func(id string) string
	logger    *slog.Logger
	telemetry ports.Telemetry
}

func NewCatalogService(gateway ports.CatalogGateway, opts CatalogOptions, logger *slog.Logger, telemetry ports.Telemetry) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	if telemetry == nil {
		telemetry = ports.NopTelemetry{}
	}
	limit := rate.Inf
	if opts.ListingDelay > 0 {
		limit = rate.Every(opts.ListingDelay)
	}
	storeURL := opts.StoreURL
	if storeURL == nil {
		storeURL = func(id string) string { return "https://store.steampowered.com/app/" + id + "/" }
	}
	return &CatalogService{
		gateway:   gateway,
		limiter:   rate.NewLimiter(limit, 1),
		storeURL:  storeURL,
		logger:    logger,
		telemetry: telemetry,
	}
}

// Search lists items for keywords, drops those above maxPrice and enriches the rest.
func (s *CatalogService) Search(ctx context.Context, keywords string, maxPrice *float64, maxResults int) []domain.CatalogItem {
	if maxResults <= 0 {
		return []domain.CatalogItem{}
	}
	rows := s.listing(ctx, domain.ListingQuery{
		Surface:  domain.SurfaceSearch,
		Term:     strings.TrimSpace(keywords),
		MaxPrice: maxPrice,
		Limit:    maxResults * searchListingFactor,
	})

	items := make([]domain.CatalogItem, 0, len(rows))
	for _, row := range rows {
		if maxPrice != nil && row.Price > *maxPrice {
			continue
		}
		items = append(items, row)
	}

	if !s.enrich(ctx, items, min(maxResults*searchListingFactor, len(items))) {
		return []domain.CatalogItem{}
	}
	return items
}

// GetDiscountedGames returns sale items at or above minDiscount, highest discount first.
func (s *CatalogService) GetDiscountedGames(ctx context.Context, minDiscount int, maxPrice *float64, maxResults int) []domain.CatalogItem {
	if maxResults <= 0 {
		return []domain.CatalogItem{}
	}
	rows := s.listing(ctx, domain.ListingQuery{
		Surface:  domain.SurfaceSpecials,
		MaxPrice: maxPrice,
		Limit:    maxResults * specialsListingFactor,
	})

	items := make([]domain.CatalogItem, 0, maxResults)
	for _, row := range rows {
		if row.DiscountPercent < minDiscount {
			continue
		}
		if maxPrice != nil && row.Price > *maxPrice {
			continue
		}
		items = append(items, row)
		if len(items) >= maxResults {
			break
		}
	}

	if !s.enrich(ctx, items, min(browseEnrichWorkers, len(items))) {
		return []domain.CatalogItem{}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DiscountPercent > items[j].DiscountPercent
	})
	return items
}

// GetFreeGames returns free items. With a tag filter, only items whose enriched tags
// intersect it (ignoring case) are kept.
func (s *CatalogService) GetFreeGames(ctx context.Context, maxResults int, tagFilter []string) []domain.CatalogItem {
	if maxResults <= 0 {
		return []domain.CatalogItem{}
	}
	rows := s.listing(ctx, domain.ListingQuery{
		Surface: domain.SurfaceFree,
		Limit:   maxResults * freeListingFactor,
	})

	filter := domain.UniqueStrings(tagFilter)
	items := make([]domain.CatalogItem, 0, len(rows))
	for _, row := range rows {
		if row.Price != 0 {
			continue
		}
		items = append(items, row)
		if len(filter) == 0 && len(items) >= maxResults {
			break
		}
	}

	if !s.enrich(ctx, items, min(browseEnrichWorkers, len(items))) {
		return []domain.CatalogItem{}
	}
	if len(filter) == 0 {
		return items
	}

	kept := make([]domain.CatalogItem, 0, maxResults)
	for _, item := range items {
		if !item.ContainsTagFold(filter) {
			continue
		}
		kept = append(kept, item)
		if len(kept) >= maxResults {
			break
		}
	}
	return kept
}

// GetTopGames returns a ranked store list; Rank is the 1-based listing position.
func (s *CatalogService) GetTopGames(ctx context.Context, maxResults int, mode domain.RankingMode) []domain.CatalogItem {
	if maxResults <= 0 {
		return []domain.CatalogItem{}
	}
	if _, ok := domain.ParseRankingMode(string(mode)); !ok {
		mode = domain.RankingBestsellers
	}
	rows := s.listing(ctx, domain.ListingQuery{
		Surface: domain.SurfaceTop,
		Ranking: mode,
		Limit:   maxResults * topListingFactor,
	})

	items := make([]domain.CatalogItem, 0, maxResults)
	for _, row := range rows {
		row.Rank = len(items) + 1
		items = append(items, row)
		if len(items) >= maxResults {
			break
		}
	}

	if !s.enrich(ctx, items, min(browseEnrichWorkers, len(items))) {
		return []domain.CatalogItem{}
	}
	return items
}

// GetItemDetails returns domain.ErrItemNotFound when the store has no record for id.
func (s *CatalogService) GetItemDetails(ctx context.Context, id string) (*domain.CatalogItem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get item details", errEmptyID)
	}
	details, err := s.gateway.Details(ctx, id)
	if err != nil {
		if !domain.IsKind(err, domain.ErrItemNotFound) {
			s.logger.Warn("catalog_details_failed", "app_id", id, "error", err)
		}
		return nil, err
	}
	item := domain.ItemFromDetails(*details, s.storeURL(id))
	return &item, nil
}

// GetItemByName resolves the best search match for name and returns its details.
func (s *CatalogService) GetItemByName(ctx context.Context, name string) (*domain.CatalogItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get item by name", errEmptyName)
	}
	matches := s.Search(ctx, name, nil, 1)
	if len(matches) == 0 {
		return nil, domain.WrapError(domain.ErrItemNotFound, "get item by name", errNoMatch)
	}
	return s.GetItemDetails(ctx, matches[0].ID)
}

func (s *CatalogService) listing(ctx context.Context, query domain.ListingQuery) []domain.CatalogItem {
	if err := s.limiter.Wait(ctx); err != nil {
		s.logger.Warn("catalog_listing_skipped", "surface", query.Surface, "error", err)
		s.telemetry.RecordListing(query.Surface, false)
		return nil
	}
	started := time.Now()
	rows, err := s.gateway.Listing(ctx, query)
	s.telemetry.ObserveStage("listing", time.Since(started))
	if err != nil {
		s.logger.Warn("catalog_listing_failed", "surface", query.Surface, "term", query.Term, "error", err)
		s.telemetry.RecordListing(query.Surface, false)
		return nil
	}
	s.telemetry.RecordListing(query.Surface, true)
	if query.Limit > 0 && len(rows) > query.Limit {
		rows = rows[:query.Limit]
	}
	return rows
}

// enrich fills items in place with detail records using at most workers concurrent
// lookups. It reports false when ctx ended before every lookup finished; items must
// not be read in that case.
func (s *CatalogService) enrich(ctx context.Context, items []domain.CatalogItem, workers int) bool {
	if len(items) == 0 {
		return true
	}
	started := time.Now()
	defer func() { s.telemetry.ObserveStage("enrich", time.Since(started)) }()

	done := make(chan struct{})
	detached := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(max(1, workers))
		for i := range items {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				s.enrichOne(detached, &items[i])
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
		return ctx.Err() == nil
	case <-ctx.Done():
		s.logger.Warn("catalog_enrich_abandoned", "items", len(items), "error", ctx.Err())
		return false
	}
}

func (s *CatalogService) enrichOne(ctx context.Context, item *domain.CatalogItem) {
	details, err := s.gateway.Details(ctx, item.ID)
	if err != nil {
		s.logger.Debug("catalog_enrich_failed", "app_id", item.ID, "error", err)
		s.telemetry.RecordEnrichment(false)
		return
	}
	item.Enrich(*details)
	s.telemetry.RecordEnrichment(true)
}
