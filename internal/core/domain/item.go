package domain

import "strings"

// DetailCategoryLimit caps how many store categories are merged into an item's tags.
const DetailCategoryLimit = 3

type CatalogItem struct {
	ID              string   `json:"app_id"`
	Name            string   `json:"name"`
	Price           float64  `json:"price"`
	DiscountPercent int      `json:"discount"`
	URL             string   `json:"url"`
	ReleaseDate     string   `json:"release_date"`
	Tags            []string `json:"tags"`
	Description     string   `json:"description"`
	Rank            int      `json:"rank,omitempty"`
	Developers      []string `json:"developers,omitempty"`
	Publishers      []string `json:"publishers,omitempty"`
	MetacriticScore *int     `json:"metacritic_score,omitempty"`
	Enriched        bool     `json:"-"`
}

// PriceOverview is present only for items sold for money.
type PriceOverview struct {
	Final           float64 `json:"final"`
	Initial         float64 `json:"initial"`
	DiscountPercent int     `json:"discount_percent"`
	Currency        string  `json:"currency"`
}

type Platforms struct {
	Windows bool `json:"windows"`
	Mac     bool `json:"mac"`
	Linux   bool `json:"linux"`
}

// ItemDetails is the detail record for one catalog item. Absent upstream fields
// stay nil; list fields are always non-nil.
type ItemDetails struct {
	ID                   string         `json:"app_id"`
	Name                 string         `json:"name"`
	Type                 string         `json:"type"`
	ShortDescription     string         `json:"short_description"`
	Genres               []string       `json:"genres"`
	Categories           []string       `json:"categories"`
	Developers           []string       `json:"developers"`
	Publishers           []string       `json:"publishers"`
	ReleaseDate          string         `json:"release_date"`
	ComingSoon           bool           `json:"coming_soon"`
	IsFree               bool           `json:"is_free"`
	Price                *PriceOverview `json:"price_overview,omitempty"`
	Platforms            Platforms      `json:"platforms"`
	HeaderImage          string         `json:"header_image,omitempty"`
	Website              string         `json:"website,omitempty"`
	Screenshots          []string       `json:"screenshots"`
	MetacriticScore      *int           `json:"metacritic_score,omitempty"`
	RecommendationsTotal *int           `json:"recommendations_total,omitempty"`
	AchievementsTotal    *int           `json:"achievements_total,omitempty"`
	DLCCount             int            `json:"dlc_count"`
}

// DetailTags merges all genres with the first few categories.
func (d ItemDetails) DetailTags() []string {
	tags := make([]string, 0, len(d.Genres)+DetailCategoryLimit)
	tags = append(tags, d.Genres...)
	categories := d.Categories
	if len(categories) > DetailCategoryLimit {
		categories = categories[:DetailCategoryLimit]
	}
	tags = append(tags, categories...)
	return UniqueStrings(tags)
}

// Enrich copies description, tags and people from a detail record into the item.
func (i *CatalogItem) Enrich(d ItemDetails) {
	if desc := strings.TrimSpace(d.ShortDescription); desc != "" {
		i.Description = desc
	}
	if tags := d.DetailTags(); len(tags) > 0 {
		i.Tags = tags
	}
	if len(d.Developers) > 0 {
		i.Developers = append([]string{}, d.Developers...)
	}
	if len(d.Publishers) > 0 {
		i.Publishers = append([]string{}, d.Publishers...)
	}
	if d.MetacriticScore != nil {
		score := *d.MetacriticScore
		i.MetacriticScore = &score
	}
	i.Enriched = true
}

// ItemFromDetails builds a fully enriched item from a detail record alone.
func ItemFromDetails(d ItemDetails, storeURL string) CatalogItem {
	item := CatalogItem{
		ID:          d.ID,
		Name:        d.Name,
		URL:         storeURL,
		ReleaseDate: d.ReleaseDate,
		Tags:        []string{},
	}
	if d.Price != nil {
		item.Price = d.Price.Final
		item.DiscountPercent = d.Price.DiscountPercent
	}
	item.Enrich(d)
	return item
}

// ContainsTagFold reports whether any tag of the item matches one of wanted, ignoring case.
func (i CatalogItem) ContainsTagFold(wanted []string) bool {
	return len(IntersectFold(i.Tags, wanted)) > 0
}

// IntersectFold returns the distinct entries of want that also appear in have, ignoring case.
func IntersectFold(have, want []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	out := make([]string, 0, len(want))
	seen := make(map[string]struct{}, len(want))
	for _, w := range want {
		key := strings.ToLower(strings.TrimSpace(w))
		if key == "" {
			continue
		}
		if _, ok := set[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, w)
	}
	return out
}
