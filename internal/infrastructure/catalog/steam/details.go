package steam

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

const maxScreenshots = 5

type appDetailsEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type described struct {
	Description string `json:"description"`
}

type appDetailsData struct {
	Type             string      `json:"type"`
	Name             string      `json:"name"`
	ShortDescription string      `json:"short_description"`
	IsFree           bool        `json:"is_free"`
	Developers       []string    `json:"developers"`
	Publishers       []string    `json:"publishers"`
	HeaderImage      string      `json:"header_image"`
	Website          *string     `json:"website"`
	Genres           []described `json:"genres"`
	Categories       []described `json:"categories"`
	ReleaseDate      *struct {
		ComingSoon bool   `json:"coming_soon"`
		Date       string `json:"date"`
	} `json:"release_date"`
	PriceOverview *struct {
		Currency        string `json:"currency"`
		Initial         int64  `json:"initial"`
		Final           int64  `json:"final"`
		DiscountPercent int    `json:"discount_percent"`
	} `json:"price_overview"`
	Platforms *struct {
		Windows bool `json:"windows"`
		Mac     bool `json:"mac"`
		Linux   bool `json:"linux"`
	} `json:"platforms"`
	Screenshots []struct {
		PathThumbnail string `json:"path_thumbnail"`
	} `json:"screenshots"`
	Metacritic *struct {
		Score int `json:"score"`
	} `json:"metacritic"`
	Recommendations *struct {
		Total int `json:"total"`
	} `json:"recommendations"`
	Achievements *struct {
		Total int `json:"total"`
	} `json:"achievements"`
	DLC []int64 `json:"dlc"`
}

// parseDetails decodes an /api/appdetails reply for one id. A missing key or
// success=false means the store has no record for the id.
func parseDetails(id string, body []byte) (*domain.ItemDetails, error) {
	var envelope map[string]appDetailsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "decode app details", err)
	}
	entry, ok := envelope[id]
	if !ok || !entry.Success || len(entry.Data) == 0 {
		return nil, domain.WrapError(domain.ErrItemNotFound, "app details", fmt.Errorf("app %s", id))
	}

	var data appDetailsData
	if err := json.Unmarshal(entry.Data, &data); err != nil {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "decode app details data", err)
	}
	return toDomainDetails(id, data), nil
}

func toDomainDetails(id string, data appDetailsData) *domain.ItemDetails {
	details := &domain.ItemDetails{
		ID:               id,
		Name:             strings.TrimSpace(data.Name),
		Type:             data.Type,
		ShortDescription: strings.TrimSpace(data.ShortDescription),
		Genres:           descriptions(data.Genres),
		Categories:       descriptions(data.Categories),
		Developers:       nonNil(data.Developers),
		Publishers:       nonNil(data.Publishers),
		IsFree:           data.IsFree,
		HeaderImage:      data.HeaderImage,
		Screenshots:      []string{},
		DLCCount:         len(data.DLC),
	}
	if data.Website != nil {
		details.Website = *data.Website
	}
	if data.ReleaseDate != nil {
		details.ReleaseDate = data.ReleaseDate.Date
		details.ComingSoon = data.ReleaseDate.ComingSoon
	}
	if p := data.PriceOverview; p != nil {
		currency := p.Currency
		if currency == "" {
			currency = "CNY"
		}
		details.Price = &domain.PriceOverview{
			Final:           float64(p.Final) / 100,
			Initial:         float64(p.Initial) / 100,
			DiscountPercent: p.DiscountPercent,
			Currency:        currency,
		}
	}
	if data.Platforms != nil {
		details.Platforms = domain.Platforms{
			Windows: data.Platforms.Windows,
			Mac:     data.Platforms.Mac,
			Linux:   data.Platforms.Linux,
		}
	}
	for _, shot := range data.Screenshots {
		if len(details.Screenshots) >= maxScreenshots {
			break
		}
		if shot.PathThumbnail != "" {
			details.Screenshots = append(details.Screenshots, shot.PathThumbnail)
		}
	}
	if data.Metacritic != nil {
		score := data.Metacritic.Score
		details.MetacriticScore = &score
	}
	if data.Recommendations != nil {
		total := data.Recommendations.Total
		details.RecommendationsTotal = &total
	}
	if data.Achievements != nil {
		total := data.Achievements.Total
		details.AchievementsTotal = &total
	}
	return details
}

func descriptions(in []described) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		if text := strings.TrimSpace(d.Description); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
