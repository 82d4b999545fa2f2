package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
	"github.com/kirillkom/steam-game-recommender/internal/core/ports"
)

const (
	serverName    = "steam-game-recommender"
	serverVersion = "1.0.0"

	recommendDefaultResults = 5
	searchDefaultResults    = 10
	browseDefaultResults    = 20
)

// Tools exposes the recommender and catalog browser as MCP tools.
type Tools struct {
	recommender ports.Recommender
	dispatcher  ports.RecommendDispatcher
	catalog     ports.CatalogBrowser
	logger      *slog.Logger
}

// NewTools builds the tool set. dispatcher may be nil, in which case
// recommend_games runs the in-process pipeline.
func NewTools(recommender ports.Recommender, dispatcher ports.RecommendDispatcher, catalog ports.CatalogBrowser, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{recommender: recommender, dispatcher: dispatcher, catalog: catalog, logger: logger}
}

func (t *Tools) NewServer() *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("recommend_games",
		mcp.WithDescription("Recommend Steam games for a free-text request. Every candidate is scored by the language model, so this is slow but precise."),
		mcp.WithString("user_query", mcp.Required(), mcp.Description("What the player is looking for, e.g. \"open world RPG under 100 yuan\".")),
		mcp.WithNumber("max_results", mcp.DefaultNumber(recommendDefaultResults), mcp.Min(0), mcp.Description("Maximum number of recommendations; 10 or fewer keeps it responsive.")),
	), t.recommendGames)

	s.AddTool(mcp.NewTool("search_games",
		mcp.WithDescription("Quick keyword search of the Steam store without model scoring."),
		mcp.WithString("keywords", mcp.Required(), mcp.Description("Search keywords, e.g. \"open world rpg\".")),
		mcp.WithNumber("max_price", mcp.Min(0), mcp.Description("Maximum price in CNY. Omit for no limit.")),
		mcp.WithNumber("max_results", mcp.DefaultNumber(searchDefaultResults), mcp.Min(0)),
	), t.searchGames)

	s.AddTool(mcp.NewTool("get_discounted_games",
		mcp.WithDescription("List games currently on sale, deepest discount first."),
		mcp.WithNumber("min_discount", mcp.DefaultNumber(0), mcp.Min(0), mcp.Max(100), mcp.Description("Minimum discount percentage.")),
		mcp.WithNumber("max_price", mcp.Min(0), mcp.Description("Maximum price in CNY. Omit for no limit.")),
		mcp.WithNumber("max_results", mcp.DefaultNumber(browseDefaultResults), mcp.Min(0)),
	), t.getDiscountedGames)

	s.AddTool(mcp.NewTool("get_game_details",
		mcp.WithDescription("Full details of one game, looked up by Steam app id or by name."),
		mcp.WithString("game_identifier", mcp.Required(), mcp.Description("Game name or numeric app id, e.g. \"1245620\".")),
	), t.getGameDetails)

	s.AddTool(mcp.NewTool("get_top_games",
		mcp.WithDescription("Steam ranking lists with rank positions."),
		mcp.WithNumber("max_results", mcp.DefaultNumber(browseDefaultResults), mcp.Min(0)),
		mcp.WithString("filter_type",
			mcp.DefaultString("topsellers"),
			mcp.Enum("topsellers", "popularnew", "trendingweek", "bestsellers", "trending-new", "trending-week"),
			mcp.Description("topsellers (default), popularnew or trendingweek."),
		),
	), t.getTopGames)

	s.AddTool(mcp.NewTool("get_free_games",
		mcp.WithDescription("Free-to-play games, optionally filtered by tags."),
		mcp.WithNumber("max_results", mcp.DefaultNumber(browseDefaultResults), mcp.Min(0)),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Optional tag filter, e.g. [\"动作\", \"多人\"].")),
	), t.getFreeGames)

	return s
}

// HTTPHandler serves the tool set over the streamable HTTP transport.
func (t *Tools) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(t.NewServer())
}

func (t *Tools) recommendGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("user_query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("user_query is required"), nil
	}
	query = strings.TrimSpace(query)
	maxResults := nonNegative(request.GetInt("max_results", recommendDefaultResults))
	t.logger.Info("mcp_recommend_games", "query", query, "max_results", maxResults)

	var result domain.RecommendationResult
	if t.dispatcher != nil {
		result, err = t.dispatcher.DispatchRecommend(ctx, domain.RecommendRequest{Query: query, MaxResults: &maxResults})
		if err != nil {
			t.logger.Error("mcp_recommend_dispatch_failed", "error", err)
			return mcp.NewToolResultError(fmt.Sprintf("recommendation failed: %v", err)), nil
		}
	} else {
		result = t.recommender.Recommend(ctx, query, maxResults)
	}

	return jsonResult(map[string]any{
		"success":               true,
		"query":                 query,
		"total_found":           result.TotalFound,
		"total_evaluated":       result.TotalEvaluated,
		"recommendations_count": len(result.Recommendations),
		"recommendations":       result.Recommendations,
		"analysis":              result.Analysis,
		"message":               result.Message,
	})
}

func (t *Tools) searchGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keywords, err := request.RequireString("keywords")
	if err != nil || strings.TrimSpace(keywords) == "" {
		return mcp.NewToolResultError("keywords are required"), nil
	}
	maxPrice := optionalNumber(request, "max_price")
	games := t.catalog.Search(ctx, strings.TrimSpace(keywords), maxPrice,
		nonNegative(request.GetInt("max_results", searchDefaultResults)))

	return jsonResult(map[string]any{
		"success":     true,
		"keywords":    keywords,
		"max_price":   maxPrice,
		"total_found": len(games),
		"games":       nonNilGames(games),
	})
}

func (t *Tools) getDiscountedGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	minDiscount := min(100, nonNegative(request.GetInt("min_discount", 0)))
	maxPrice := optionalNumber(request, "max_price")
	games := t.catalog.GetDiscountedGames(ctx, minDiscount, maxPrice,
		nonNegative(request.GetInt("max_results", browseDefaultResults)))

	return jsonResult(map[string]any{
		"success":      true,
		"min_discount": minDiscount,
		"max_price":    maxPrice,
		"total_found":  len(games),
		"games":        nonNilGames(games),
	})
}

func (t *Tools) getGameDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	identifier, err := request.RequireString("game_identifier")
	identifier = strings.TrimSpace(identifier)
	if err != nil || identifier == "" {
		return mcp.NewToolResultError("game_identifier is required"), nil
	}

	var item *domain.CatalogItem
	if isNumeric(identifier) {
		item, err = t.catalog.GetItemDetails(ctx, identifier)
	} else {
		item, err = t.catalog.GetItemByName(ctx, identifier)
	}
	if err != nil {
		if domain.IsKind(err, domain.ErrItemNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("game not found: %s", identifier)), nil
		}
		t.logger.Warn("mcp_game_details_failed", "game_identifier", identifier, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("game details failed: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"success":         true,
		"game_identifier": identifier,
		"details":         item,
	})
}

func (t *Tools) getTopGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filterType := request.GetString("filter_type", "topsellers")
	mode, ok := domain.ParseRankingMode(filterType)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown filter_type %q", filterType)), nil
	}
	games := t.catalog.GetTopGames(ctx, nonNegative(request.GetInt("max_results", browseDefaultResults)), mode)

	return jsonResult(map[string]any{
		"success":     true,
		"filter_type": filterType,
		"total_found": len(games),
		"games":       nonNilGames(games),
	})
}

func (t *Tools) getFreeGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags := request.GetStringSlice("tags", nil)
	games := t.catalog.GetFreeGames(ctx, nonNegative(request.GetInt("max_results", browseDefaultResults)), tags)

	return jsonResult(map[string]any{
		"success":     true,
		"tags_filter": tags,
		"total_found": len(games),
		"games":       nonNilGames(games),
	})
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func optionalNumber(request mcp.CallToolRequest, key string) *float64 {
	if raw, ok := request.GetArguments()[key]; !ok || raw == nil {
		return nil
	}
	v := request.GetFloat(key, 0)
	if v < 0 {
		return nil
	}
	return &v
}

func nonNegative(v int) int {
	return max(v, 0)
}

func nonNilGames(games []domain.CatalogItem) []domain.CatalogItem {
	if games == nil {
		return []domain.CatalogItem{}
	}
	return games
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
