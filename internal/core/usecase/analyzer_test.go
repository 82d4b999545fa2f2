package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

func TestAnalyzeUsesModelReplyInsideFence(t *testing.T) {
	model := staticModel("```json\n" + `{
		"keywords": [],
		"max_price": "200",
		"tags": ["RPG"],
		"genres": ["role-playing", "open world"],
		"preferences": {"multiplayer": true, "other": "good story", "players": 4}
	}` + "\n```")
	analyzer := NewTextAnalyzer(model, "qwen-plus", nil, nil)

	got := analyzer.Analyze(context.Background(), "open world rpg under 200")
	if got.Source != domain.SourceModel {
		t.Fatalf("expected model source, got %s (cause %v)", got.Source, got.FallbackCause)
	}
	c := got.Constraints
	if c.MaxPrice != 200 || c.MinPrice != 0 {
		t.Fatalf("unexpected prices: min=%v max=%v", c.MinPrice, c.MaxPrice)
	}
	if !reflect.DeepEqual(c.Keywords, []string{"role-playing", "open world"}) {
		t.Fatalf("expected keywords backfilled from genres, got %v", c.Keywords)
	}
	if flag, ok := c.Preferences["multiplayer"].Flag(); !ok || !flag {
		t.Fatalf("expected multiplayer flag preference, got %v", c.Preferences["multiplayer"])
	}
	if text, ok := c.Preferences["players"].Text(); !ok || text != "4" {
		t.Fatalf("expected numeric preference kept as text, got %q", text)
	}
}

func TestAnalyzeBackfillsKeywordsFromTagsWhenGenresMissing(t *testing.T) {
	analyzer := NewTextAnalyzer(staticModel(`{"keywords": [], "tags": ["horror"]}`), "", nil, nil)

	got := analyzer.Analyze(context.Background(), "something scary").Constraints
	if !reflect.DeepEqual(got.Keywords, []string{"horror"}) {
		t.Fatalf("expected keywords from tags, got %v", got.Keywords)
	}
	if got.MaxPrice != domain.DefaultMaxPrice {
		t.Fatalf("expected default max price, got %v", got.MaxPrice)
	}
}

func TestAnalyzeFallsBackToRulesOnModelError(t *testing.T) {
	analyzer := NewTextAnalyzer(&modelFake{}, "", nil, nil)

	got := analyzer.Analyze(context.Background(), "开放世界RPG，100元以内")
	if got.Source != domain.SourceFallback {
		t.Fatalf("expected fallback source, got %s", got.Source)
	}
	if !errors.Is(got.FallbackCause, errModelDown) {
		t.Fatalf("expected model error as fallback cause, got %v", got.FallbackCause)
	}
	c := got.Constraints
	if c.MaxPrice != 100 {
		t.Fatalf("expected budget 100, got %v", c.MaxPrice)
	}
	if !reflect.DeepEqual(c.Keywords, []string{"role-playing", "open world"}) {
		t.Fatalf("unexpected keywords: %v", c.Keywords)
	}
	for _, want := range []string{"RPG", "开放世界"} {
		if !contains(c.Tags, want) {
			t.Fatalf("expected tag %q in %v", want, c.Tags)
		}
	}
}

func TestAnalyzeFallsBackOnMalformedReply(t *testing.T) {
	analyzer := NewTextAnalyzer(staticModel("I think you would enjoy racing games"), "", nil, nil)

	got := analyzer.Analyze(context.Background(), "Racing games with MULTIPLAYER, 50 rmb")
	if got.Source != domain.SourceFallback {
		t.Fatalf("expected fallback source, got %s", got.Source)
	}
	if !domain.IsKind(got.FallbackCause, domain.ErrMalformedResponse) {
		t.Fatalf("expected malformed response cause, got %v", got.FallbackCause)
	}
	if got.Constraints.MaxPrice != 50 {
		t.Fatalf("expected budget 50, got %v", got.Constraints.MaxPrice)
	}
	if !reflect.DeepEqual(got.Constraints.Keywords, []string{"multiplayer", "racing"}) {
		t.Fatalf("unexpected keywords: %v", got.Constraints.Keywords)
	}
}

func TestAnalyzeAlwaysOrdersPricesAndFillsKeywords(t *testing.T) {
	cases := []struct {
		name  string
		model *modelFake
		query string
	}{
		{name: "inverted bounds", model: staticModel(`{"keywords":["x"],"min_price":500,"max_price":100}`), query: "q"},
		{name: "negative bounds", model: staticModel(`{"min_price":-5,"max_price":-1}`), query: "q"},
		{name: "nan bound", model: staticModel(`{"keywords":["rpg"],"max_price":"NaN","min_price":0}`), query: "q"},
		{name: "infinite bounds", model: staticModel(`{"min_price":"-Infinity","max_price":"Inf"}`), query: "q"},
		{name: "empty model object", model: staticModel(`{}`), query: "anything"},
		{name: "rules without matches", model: &modelFake{}, query: "hello there"},
		{name: "rules with budget only", model: &modelFake{}, query: "30元"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewTextAnalyzer(tc.model, "", nil, nil).Analyze(context.Background(), tc.query).Constraints
			if c.MinPrice < 0 || c.MinPrice > c.MaxPrice {
				t.Fatalf("expected 0 <= min <= max, got min=%v max=%v", c.MinPrice, c.MaxPrice)
			}
			if len(c.Keywords) == 0 {
				t.Fatalf("expected non-empty keywords")
			}
		})
	}
}

func TestGenerateSearchQuery(t *testing.T) {
	cases := []struct {
		name        string
		constraints domain.QueryConstraints
		want        string
	}{
		{name: "genres preferred", constraints: domain.QueryConstraints{Genres: []string{"rpg", "action"}, Keywords: []string{"kw"}}, want: "rpg action"},
		{name: "keywords when no genres", constraints: domain.QueryConstraints{Keywords: []string{"racing"}}, want: "racing"},
		{name: "first three only", constraints: domain.QueryConstraints{Genres: []string{"a", "b", "c", "d"}}, want: "a b c"},
		{name: "both empty", constraints: domain.QueryConstraints{}, want: "games"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := GenerateSearchQuery(tc.constraints)
			if got != tc.want {
				t.Fatalf("GenerateSearchQuery() = %q, want %q", got, tc.want)
			}
			if len(strings.Fields(got)) > 3 {
				t.Fatalf("expected at most 3 terms, got %q", got)
			}
		})
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func TestAnalyzeIgnoresNonFinitePrices(t *testing.T) {
	analyzer := NewTextAnalyzer(staticModel(`{"keywords":["rpg"],"max_price":"NaN","min_price":"Infinity"}`), "", nil, nil)

	got := analyzer.Analyze(context.Background(), "rpg")
	if got.Source != domain.SourceModel {
		t.Fatalf("expected model source, got %s", got.Source)
	}
	if got.Constraints.MaxPrice != domain.DefaultMaxPrice || got.Constraints.MinPrice != domain.DefaultMinPrice {
		t.Fatalf("expected default bounds, got min=%v max=%v", got.Constraints.MinPrice, got.Constraints.MaxPrice)
	}
	if _, err := json.Marshal(got.Constraints); err != nil {
		t.Fatalf("constraints must serialize: %v", err)
	}
}
