package cache

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
	"github.com/kirillkom/steam-game-recommender/internal/core/ports"
)

const (
	TierMemory = "memory"
	TierStore  = "store"
)

// LookupObserver is told about every detail lookup and whether the given tier served it.
type LookupObserver func(tier string, hit bool)

type Options struct {
	Size     int
	TTL      time.Duration
	Store    ports.DetailStore
	Logger   *slog.Logger
	Observer LookupObserver
}

// Gateway puts an in-process LRU and an optional durable store in front of
// the upstream catalog. Listings always go upstream.
type Gateway struct {
	upstream ports.CatalogGateway
	memory   *expirable.LRU[string, domain.ItemDetails]
	store    ports.DetailStore
	ttl      time.Duration
	logger   *slog.Logger
	observe  LookupObserver
}

func New(upstream ports.CatalogGateway, opts Options) *Gateway {
	if opts.Size <= 0 {
		opts.Size = 512
	}
	if opts.TTL <= 0 {
		opts.TTL = 6 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = func(string, bool) {}
	}
	return &Gateway{
		upstream: upstream,
		memory:   expirable.NewLRU[string, domain.ItemDetails](opts.Size, nil, opts.TTL),
		store:    opts.Store,
		ttl:      opts.TTL,
		logger:   opts.Logger,
		observe:  opts.Observer,
	}
}

func (g *Gateway) Listing(ctx context.Context, query domain.ListingQuery) ([]domain.CatalogItem, error) {
	return g.upstream.Listing(ctx, query)
}

func (g *Gateway) Details(ctx context.Context, id string) (*domain.ItemDetails, error) {
	if cached, ok := g.memory.Get(id); ok {
		g.observe(TierMemory, true)
		return cloneDetails(cached), nil
	}
	g.observe(TierMemory, false)

	if g.store != nil {
		stored, err := g.store.GetDetails(ctx, id, g.ttl)
		switch {
		case err == nil:
			g.observe(TierStore, true)
			g.memory.Add(id, *stored)
			return cloneDetails(*stored), nil
		case domain.IsKind(err, domain.ErrItemNotFound):
			g.observe(TierStore, false)
		default:
			g.observe(TierStore, false)
			g.logger.Warn("detail store read failed", "app_id", id, "error", err)
		}
	}

	details, err := g.upstream.Details(ctx, id)
	if err != nil {
		return nil, err
	}
	g.memory.Add(id, *details)
	if g.store != nil {
		if err := g.store.PutDetails(ctx, *details); err != nil {
			g.logger.Warn("detail store write failed", "app_id", id, "error", err)
		}
	}
	return cloneDetails(*details), nil
}

// Len reports the number of in-memory entries.
func (g *Gateway) Len() int {
	return g.memory.Len()
}

func cloneDetails(d domain.ItemDetails) *domain.ItemDetails {
	d.Genres = slices.Clone(d.Genres)
	d.Categories = slices.Clone(d.Categories)
	d.Developers = slices.Clone(d.Developers)
	d.Publishers = slices.Clone(d.Publishers)
	d.Screenshots = slices.Clone(d.Screenshots)
	return &d
}
