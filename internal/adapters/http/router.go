package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/steam-game-recommender/internal/config"
	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
	"github.com/kirillkom/steam-game-recommender/internal/core/ports"
	"github.com/kirillkom/steam-game-recommender/internal/observability/metrics"
)

const (
	serviceName       = "api"
	defaultMaxResults = 20
	searchMaxResults  = 10
	maxRequestBytes   = 1 << 16
)

type Router struct {
	cfg         config.Config
	recommender ports.Recommender
	catalog     ports.CatalogBrowser
	dispatcher  ports.RecommendDispatcher
	mcp         http.Handler
	metrics     *metrics.HTTPServerMetrics
	validator   *requestValidator
	logger      *slog.Logger
}

type Option func(*Router)

// WithDispatcher sends recommendation runs to remote workers instead of the in-process pipeline.
func WithDispatcher(d ports.RecommendDispatcher) Option {
	return func(rt *Router) { rt.dispatcher = d }
}

// WithMCPHandler mounts an MCP transport under /mcp.
func WithMCPHandler(h http.Handler) Option {
	return func(rt *Router) { rt.mcp = h }
}

func WithMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(rt *Router) { rt.logger = logger }
}

func NewRouter(cfg config.Config, recommender ports.Recommender, catalog ports.CatalogBrowser, opts ...Option) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	rt := &Router{
		cfg:         cfg,
		recommender: recommender,
		catalog:     catalog,
		validator:   validator,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt, nil
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/recommendations", rt.recommend)
	api.HandleFunc("GET /v1/games/search", rt.searchGames)
	api.HandleFunc("GET /v1/games/discounted", rt.discountedGames)
	api.HandleFunc("GET /v1/games/free", rt.freeGames)
	api.HandleFunc("GET /v1/games/top", rt.topGames)
	api.HandleFunc("GET /v1/games/{id}", rt.getGame)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		root.Handle("GET /metrics", rt.metrics.Handler())
	}
	root.Handle("/v1/", rt.trafficControl(rt.validator.Middleware(api)))
	if rt.mcp != nil {
		root.Handle("/mcp", rt.trafficControl(rt.mcp))
	}

	var handler http.Handler = root
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler, rt.logger)
	return requestIDMiddleware(handler)
}

func (rt *Router) trafficControl(next http.Handler) http.Handler {
	guarded := backpressureMiddleware(next, rt.cfg.APIMaxInFlight, rt.cfg.APIQueueWait)
	return rateLimitMiddleware(guarded, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type gamesResponse struct {
	TotalFound int                  `json:"total_found"`
	Games      []domain.CatalogItem `json:"games"`
}

func newGamesResponse(games []domain.CatalogItem) gamesResponse {
	if games == nil {
		games = []domain.CatalogItem{}
	}
	return gamesResponse{TotalFound: len(games), Games: games}
}

func (rt *Router) recommend(w http.ResponseWriter, r *http.Request) {
	var req domain.RecommendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "recommend", errors.New("query is required")))
		return
	}
	maxResults := rt.defaultOutput()
	if req.MaxResults != nil {
		maxResults = *req.MaxResults
	}
	req.MaxResults = &maxResults

	if rt.dispatcher != nil {
		result, err := rt.dispatcher.DispatchRecommend(r.Context(), req)
		if err != nil {
			rt.logger.Error("recommend_dispatch_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	writeJSON(w, http.StatusOK, rt.recommender.Recommend(r.Context(), req.Query, maxResults))
}

func (rt *Router) defaultOutput() int {
	if rt.cfg.MaxOutputResults > 0 {
		return rt.cfg.MaxOutputResults
	}
	return defaultMaxResults
}

func (rt *Router) searchGames(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	keywords := strings.TrimSpace(q.Get("keywords"))
	if keywords == "" {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "search games", errors.New("keywords are required")))
		return
	}
	maxPrice, err := optionalFloat(q.Get("max_price"))
	if err != nil {
		writeError(w, err)
		return
	}
	maxResults, err := intParam(q.Get("max_results"), searchMaxResults)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newGamesResponse(rt.catalog.Search(r.Context(), keywords, maxPrice, maxResults)))
}

func (rt *Router) discountedGames(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minDiscount, err := intParam(q.Get("min_discount"), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	maxPrice, err := optionalFloat(q.Get("max_price"))
	if err != nil {
		writeError(w, err)
		return
	}
	maxResults, err := intParam(q.Get("max_results"), defaultMaxResults)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newGamesResponse(rt.catalog.GetDiscountedGames(r.Context(), minDiscount, maxPrice, maxResults)))
}

func (rt *Router) freeGames(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	maxResults, err := intParam(q.Get("max_results"), defaultMaxResults)
	if err != nil {
		writeError(w, err)
		return
	}
	var tags []string
	for _, tag := range strings.Split(q.Get("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	writeJSON(w, http.StatusOK, newGamesResponse(rt.catalog.GetFreeGames(r.Context(), maxResults, tags)))
}

func (rt *Router) topGames(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	maxResults, err := intParam(q.Get("max_results"), defaultMaxResults)
	if err != nil {
		writeError(w, err)
		return
	}
	mode := domain.RankingBestsellers
	if raw := q.Get("mode"); raw != "" {
		parsed, ok := domain.ParseRankingMode(raw)
		if !ok {
			writeError(w, domain.WrapError(domain.ErrInvalidInput, "top games", fmt.Errorf("unknown mode %q", raw)))
			return
		}
		mode = parsed
	}
	writeJSON(w, http.StatusOK, newGamesResponse(rt.catalog.GetTopGames(r.Context(), maxResults, mode)))
}

// getGame accepts either a numeric store id or a game name.
func (rt *Router) getGame(w http.ResponseWriter, r *http.Request) {
	identifier := strings.TrimSpace(r.PathValue("id"))
	var (
		item *domain.CatalogItem
		err  error
	)
	if isNumeric(identifier) {
		item, err = rt.catalog.GetItemDetails(r.Context(), identifier)
	} else {
		item, err = rt.catalog.GetItemByName(r.Context(), identifier)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func optionalFloat(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse max_price", fmt.Errorf("bad value %q", raw))
	}
	return &v, nil
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse integer parameter", fmt.Errorf("bad value %q", raw))
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
