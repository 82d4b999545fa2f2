package xlsx

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

const (
	RecommendationsSheet = "Recommendations"
	AnalysisSheet        = "Analysis"
)

var recommendationHeader = []any{
	"Rank", "App ID", "Name", "Score", "Price", "Original Price", "Discount %",
	"Tags", "Reason", "Highlights", "Release Date", "Score Source", "URL",
}

// WriteRecommendations renders result as a workbook with one row per recommendation
// and a second sheet describing the analyzed request.
func WriteRecommendations(w io.Writer, result domain.RecommendationResult) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", RecommendationsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRecommendationRows(f, result.Recommendations); err != nil {
		return err
	}
	if _, err := f.NewSheet(AnalysisSheet); err != nil {
		return fmt.Errorf("create analysis sheet: %w", err)
	}
	if err := writeAnalysis(f, result); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRecommendationRows(f *excelize.File, recs []domain.ScoredRecommendation) error {
	if err := f.SetSheetRow(RecommendationsSheet, "A1", &recommendationHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(recommendationHeader), 1)
	if err := f.SetCellStyle(RecommendationsSheet, "A1", lastHeader, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, rec := range recs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{
			i + 1,
			rec.ID,
			rec.Name,
			rec.Score,
			rec.Price,
			rec.OriginalPrice,
			rec.DiscountPercent,
			strings.Join(rec.Tags, ", "),
			rec.Reason,
			strings.Join(rec.Highlights, "; "),
			rec.ReleaseDate,
			string(rec.ScoreSource),
			rec.URL,
		}
		if err := f.SetSheetRow(RecommendationsSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	for col, width := range map[string]float64{"C": 32, "H": 36, "I": 60, "J": 48, "M": 48} {
		if err := f.SetColWidth(RecommendationsSheet, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	return nil
}

func writeAnalysis(f *excelize.File, result domain.RecommendationResult) error {
	a := result.Analysis
	prefs := make([]string, 0, len(a.Preferences))
	for key, pref := range a.Preferences {
		prefs = append(prefs, key+"="+pref.String())
	}
	slices.Sort(prefs)

	rows := [][]any{
		{"Query", result.Query},
		{"Keywords", strings.Join(a.Keywords, ", ")},
		{"Price range", formatPrice(a.MinPrice) + " - " + formatPrice(a.MaxPrice)},
		{"Tags", strings.Join(a.Tags, ", ")},
		{"Genres", strings.Join(a.Genres, ", ")},
		{"Preferences", strings.Join(prefs, "; ")},
		{"Total found", result.TotalFound},
		{"Total evaluated", result.TotalEvaluated},
	}
	if result.Message != "" {
		rows = append(rows, []any{"Message", result.Message})
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(AnalysisSheet, cell, &row); err != nil {
			return fmt.Errorf("write analysis row: %w", err)
		}
	}
	return f.SetColWidth(AnalysisSheet, "B", "B", 60)
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
