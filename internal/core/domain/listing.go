package domain

import "strings"

// ListingSurface selects which store listing a request reads.
type ListingSurface string

const (
	SurfaceSearch   ListingSurface = "search"
	SurfaceSpecials ListingSurface = "specials"
	SurfaceFree     ListingSurface = "free"
	SurfaceTop      ListingSurface = "top"
)

type RankingMode string

const (
	RankingBestsellers  RankingMode = "bestsellers"
	RankingTrendingNew  RankingMode = "trending-new"
	RankingTrendingWeek RankingMode = "trending-week"
)

// ParseRankingMode accepts both the public names and the store filter names.
func ParseRankingMode(raw string) (RankingMode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "bestsellers", "topsellers":
		return RankingBestsellers, true
	case "trending-new", "popularnew", "new":
		return RankingTrendingNew, true
	case "trending-week", "trendingweek", "trending":
		return RankingTrendingWeek, true
	default:
		return RankingBestsellers, false
	}
}

type ListingQuery struct {
	Surface  ListingSurface
	Term     string
	MaxPrice *float64
	Ranking  RankingMode
	Limit    int
}
