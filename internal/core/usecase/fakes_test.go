package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

var errModelDown = errors.New("model unavailable")

type modelFake struct {
	mu    sync.Mutex
	reply func(systemPrompt, userPrompt string) (string, error)
	calls int
}

func (f *modelFake) Complete(_ context.Context, systemPrompt, userPrompt, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.reply == nil {
		return "", errModelDown
	}
	return f.reply(systemPrompt, userPrompt)
}

func staticModel(reply string) *modelFake {
	return &modelFake{reply: func(string, string) (string, error) { return reply, nil }}
}

type gatewayFake struct {
	mu         sync.Mutex
	rows       map[domain.ListingSurface][]domain.CatalogItem
	details    map[string]domain.ItemDetails
	listingErr error
	detailErrs map[string]error
	delay      time.Duration

	queries     []domain.ListingQuery
	detailCalls int
	inflight    int
	maxInflight int
}

func (f *gatewayFake) Listing(_ context.Context, query domain.ListingQuery) ([]domain.CatalogItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.listingErr != nil {
		return nil, f.listingErr
	}
	rows := f.rows[query.Surface]
	out := make([]domain.CatalogItem, len(rows))
	copy(out, rows)
	return out, nil
}

func (f *gatewayFake) Details(_ context.Context, id string) (*domain.ItemDetails, error) {
	f.mu.Lock()
	f.detailCalls++
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight--
	if err, ok := f.detailErrs[id]; ok {
		return nil, err
	}
	details, ok := f.details[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrItemNotFound, "details", errors.New(id))
	}
	return &details, nil
}

func (f *gatewayFake) lastQuery() domain.ListingQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return domain.ListingQuery{}
	}
	return f.queries[len(f.queries)-1]
}

func item(id string, price float64, discount int, tags ...string) domain.CatalogItem {
	return domain.CatalogItem{
		ID:              id,
		Name:            "Game " + id,
		Price:           price,
		DiscountPercent: discount,
		URL:             "https://store.example/app/" + id,
		Tags:            append([]string{}, tags...),
	}
}
