package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
	"github.com/kirillkom/steam-game-recommender/internal/core/ports"
)

const (
	defaultMaxSearchResults = 30
	defaultMaxScoreWorkers  = 8

	noMatchesMessage = "No games matched your request. Try a broader description or a higher budget."
	abandonedMessage = "The request was cancelled before scoring finished."
)

// QueryAnalyzer extracts constraints and the store search term from a request.
type QueryAnalyzer interface {
	Analyze(ctx context.Context, query string) domain.Extraction
	GenerateSearchQuery(constraints domain.QueryConstraints) string
}

// CandidateSearcher lists enriched candidates for a search term.
type CandidateSearcher interface {
	Search(ctx context.Context, keywords string, maxPrice *float64, maxResults int) []domain.CatalogItem
}

// CandidateScorer rates one candidate.
type CandidateScorer interface {
	Score(ctx context.Context, item domain.CatalogItem, constraints domain.QueryConstraints, query string) domain.Verdict
}

type RecommendOptions struct {
	MaxSearchResults int
	MaxScoreWorkers  int
}

// RecommendationPipeline runs analyze, search, score and rank for one request.
type RecommendationPipeline struct {
	analyzer  QueryAnalyzer
	catalog   CandidateSearcher
	scorer    CandidateScorer
	opts      RecommendOptions
	logger    *slog.Logger
	telemetry ports.Telemetry
}

func NewRecommendationPipeline(
	analyzer QueryAnalyzer,
	catalog CandidateSearcher,
	scorer CandidateScorer,
	opts RecommendOptions,
	logger *slog.Logger,
	telemetry ports.Telemetry,
) *RecommendationPipeline {
	if opts.MaxSearchResults <= 0 {
		opts.MaxSearchResults = defaultMaxSearchResults
	}
	if opts.MaxScoreWorkers <= 0 {
		opts.MaxScoreWorkers = defaultMaxScoreWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	if telemetry == nil {
		telemetry = ports.NopTelemetry{}
	}
	return &RecommendationPipeline{
		analyzer:  analyzer,
		catalog:   catalog,
		scorer:    scorer,
		opts:      opts,
		logger:    logger,
		telemetry: telemetry,
	}
}

type scoredCandidate struct {
	index int
	rec   domain.ScoredRecommendation
}

// Recommend always returns a well-formed result. maxOutput <= 0 yields an empty
// list while the totals still describe the run.
func (p *RecommendationPipeline) Recommend(ctx context.Context, query string, maxOutput int) domain.RecommendationResult {
	started := time.Now()
	logger := p.logger.With("run_id", uuid.NewString())

	extraction := p.analyzer.Analyze(ctx, query)
	constraints := extraction.Constraints
	searchTerm := p.analyzer.GenerateSearchQuery(constraints)
	logger.Info("recommend_analyzed",
		"analysis_source", extraction.Source,
		"search_term", searchTerm,
		"max_price", constraints.MaxPrice,
	)

	var maxPrice *float64
	if constraints.MaxPrice > 0 {
		budget := constraints.MaxPrice
		maxPrice = &budget
	}
	candidates := p.catalog.Search(ctx, searchTerm, maxPrice, p.opts.MaxSearchResults)

	result := domain.RecommendationResult{
		Query:           query,
		Analysis:        constraints,
		TotalFound:      len(candidates),
		Recommendations: []domain.ScoredRecommendation{},
	}
	if ctx.Err() != nil {
		result.Message = abandonedMessage
		p.finish(logger, "abandoned", result, started)
		return result
	}
	if len(candidates) == 0 {
		result.Message = noMatchesMessage
		p.finish(logger, "no_candidates", result, started)
		return result
	}

	scored, ok := p.scoreAll(ctx, candidates, constraints, query)
	if !ok {
		result.Message = abandonedMessage
		p.finish(logger, "abandoned", result, started)
		return result
	}
	result.TotalEvaluated = len(scored)

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].rec.Score != scored[j].rec.Score {
			return scored[i].rec.Score > scored[j].rec.Score
		}
		return scored[i].index < scored[j].index
	})

	limit := min(max(0, maxOutput), len(scored))
	for _, candidate := range scored[:limit] {
		result.Recommendations = append(result.Recommendations, candidate.rec)
	}
	p.finish(logger, "ok", result, started)
	return result
}

// scoreAll fans scoring out to a bounded pool. Tasks run on a context detached from
// ctx so in-flight model calls end on their own timeouts; when ctx ends first the
// collected results are discarded and ok is false.
func (p *RecommendationPipeline) scoreAll(
	ctx context.Context,
	candidates []domain.CatalogItem,
	constraints domain.QueryConstraints,
	query string,
) ([]scoredCandidate, bool) {
	scoringStarted := time.Now()
	defer func() { p.telemetry.ObserveStage("score", time.Since(scoringStarted)) }()

	completed := make(chan scoredCandidate, len(candidates))
	detached := context.WithoutCancel(ctx)

	go func() {
		var g errgroup.Group
		g.SetLimit(min(p.opts.MaxScoreWorkers, len(candidates)))
		for i, item := range candidates {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if rec, ok := p.scoreCandidate(detached, item, constraints, query); ok {
					completed <- scoredCandidate{index: i, rec: rec}
				}
				return nil
			})
		}
		_ = g.Wait()
		close(completed)
	}()

	collected := make([]scoredCandidate, 0, len(candidates))
	for {
		select {
		case candidate, open := <-completed:
			if !open {
				if ctx.Err() != nil {
					return nil, false
				}
				return collected, true
			}
			collected = append(collected, candidate)
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (p *RecommendationPipeline) scoreCandidate(
	ctx context.Context,
	item domain.CatalogItem,
	constraints domain.QueryConstraints,
	query string,
) (rec domain.ScoredRecommendation, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("score_task_panic", "app_id", item.ID, "panic", fmt.Sprint(r))
			p.telemetry.RecordVerdict(domain.SourceFallback)
			rec, ok = p.fallbackRecommendation(item, constraints)
		}
	}()
	verdict := p.scorer.Score(ctx, item, constraints, query)
	return domain.NewScoredRecommendation(item, verdict), true
}

func (p *RecommendationPipeline) fallbackRecommendation(item domain.CatalogItem, constraints domain.QueryConstraints) (rec domain.ScoredRecommendation, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("score_fallback_panic", "app_id", item.ID, "panic", fmt.Sprint(r))
			rec, ok = domain.ScoredRecommendation{}, false
		}
	}()
	return domain.NewScoredRecommendation(item, FallbackVerdict(item, constraints)), true
}

func (p *RecommendationPipeline) finish(logger *slog.Logger, outcome string, result domain.RecommendationResult, started time.Time) {
	elapsed := time.Since(started)
	p.telemetry.RecordRecommendRun(outcome)
	p.telemetry.ObserveStage("recommend", elapsed)
	logger.Info("recommend_completed",
		"outcome", outcome,
		"total_found", result.TotalFound,
		"total_evaluated", result.TotalEvaluated,
		"returned", len(result.Recommendations),
		"duration_ms", elapsed.Milliseconds(),
	)
}
