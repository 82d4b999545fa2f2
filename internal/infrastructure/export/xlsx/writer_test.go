package xlsx

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

func TestWriteRecommendationsRoundTrip(t *testing.T) {
	analysis := domain.NewQueryConstraints()
	analysis.Keywords = []string{"rpg"}
	analysis.MaxPrice = 100
	analysis.Preferences["multiplayer"] = domain.FlagPreference(true)

	result := domain.RecommendationResult{
		Query:          "开放世界RPG 100元以内",
		Analysis:       analysis,
		TotalFound:     9,
		TotalEvaluated: 2,
		Recommendations: []domain.ScoredRecommendation{
			domain.NewScoredRecommendation(
				domain.CatalogItem{ID: "1", Name: "Hades", Price: 40, DiscountPercent: 50, Tags: []string{"Action", "Roguelike"}},
				domain.Verdict{Score: 92, Reason: "Great fit", Highlights: []string{"fast combat"}, Source: domain.SourceModel},
			),
			domain.NewScoredRecommendation(
				domain.CatalogItem{ID: "2", Name: "Stardew Valley", Price: 48},
				domain.Verdict{Score: 70, Reason: "Relaxing", Source: domain.SourceFallback},
			),
		},
	}

	var buf bytes.Buffer
	if err := WriteRecommendations(&buf, result); err != nil {
		t.Fatalf("WriteRecommendations() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(RecommendationsSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][2] != "Name" || rows[1][2] != "Hades" || rows[2][2] != "Stardew Valley" {
		t.Fatalf("unexpected names: %v", rows)
	}
	if rows[1][3] != "92" || rows[1][5] != "80" || rows[1][7] != "Action, Roguelike" || rows[1][11] != "model" {
		t.Fatalf("unexpected first row: %v", rows[1])
	}

	query, err := f.GetCellValue(AnalysisSheet, "B1")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if query != result.Query {
		t.Fatalf("unexpected query cell %q", query)
	}
	prefs, _ := f.GetCellValue(AnalysisSheet, "B6")
	if prefs != "multiplayer=true" {
		t.Fatalf("unexpected preferences cell %q", prefs)
	}
}

func TestWriteRecommendationsEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRecommendations(&buf, domain.RecommendationResult{Query: "x", Message: "no matches"}); err != nil {
		t.Fatalf("WriteRecommendations() error = %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, _ := f.GetRows(RecommendationsSheet)
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %d rows", len(rows))
	}
	msg, _ := f.GetCellValue(AnalysisSheet, "B9")
	if msg != "no matches" {
		t.Fatalf("expected message row, got %q", msg)
	}
}
