package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

type genreRule struct {
	triggers []string
	tag      string
	genre    string
}

// genreRules is scanned in order; triggers are matched as lowercase substrings.
var genreRules = []genreRule{
	{triggers: []string{"rpg"}, tag: "RPG", genre: "role-playing"},
	{triggers: []string{"开放世界", "open world", "open-world"}, tag: "开放世界", genre: "open world"},
	{triggers: []string{"射击", "shooter", "fps"}, tag: "射击", genre: "shooter"},
	{triggers: []string{"策略", "strategy"}, tag: "策略", genre: "strategy"},
	{triggers: []string{"动作", "action"}, tag: "动作", genre: "action"},
	{triggers: []string{"冒险", "adventure"}, tag: "冒险", genre: "adventure"},
	{triggers: []string{"模拟", "simulation", "simulator"}, tag: "模拟", genre: "simulation"},
	{triggers: []string{"角色扮演", "role-playing", "role playing"}, tag: "角色扮演", genre: "role-playing"},
	{triggers: []string{"多人", "multiplayer", "co-op", "coop"}, tag: "多人游戏", genre: "multiplayer"},
	{triggers: []string{"单机", "singleplayer", "single-player", "single player"}, tag: "单机游戏", genre: "singleplayer"},
	{triggers: []string{"剧情", "story"}, tag: "剧情向", genre: "story-rich"},
	{triggers: []string{"恐怖", "horror"}, tag: "恐怖", genre: "horror"},
	{triggers: []string{"体育", "sports"}, tag: "体育", genre: "sports"},
	{triggers: []string{"竞速", "racing"}, tag: "竞速", genre: "racing"},
	{triggers: []string{"独立", "indie"}, tag: "独立游戏", genre: "indie"},
}

var budgetPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:元|块|rmb|cny|yuan)`)

// ruleBasedConstraints derives constraints from the query text alone.
func ruleBasedConstraints(query string) domain.QueryConstraints {
	constraints := domain.NewQueryConstraints()
	lowered := strings.ToLower(query)

	for _, rule := range genreRules {
		if !matchesAny(lowered, rule.triggers) {
			continue
		}
		constraints.Tags = append(constraints.Tags, rule.tag, rule.genre)
		constraints.Genres = append(constraints.Genres, rule.genre)
		constraints.Keywords = append(constraints.Keywords, rule.genre)
	}

	if match := budgetPattern.FindStringSubmatch(query); len(match) == 2 {
		if budget, err := strconv.ParseFloat(match[1], 64); err == nil {
			constraints.MaxPrice = budget
		}
	}
	return constraints
}

func matchesAny(lowered string, triggers []string) bool {
	for _, trigger := range triggers {
		if strings.Contains(lowered, trigger) {
			return true
		}
	}
	return false
}
