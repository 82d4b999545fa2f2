package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

const analyzerSystemPrompt = `You analyze game recommendation requests for the Steam store.
Extract from the user's request:
1. Game types and tags (RPG, open world, shooter, strategy, ...).
2. Price range in CNY (maximum and minimum).
3. Other preferences (multiplayer, singleplayer, graphics, story focus, ...).
4. English search keywords for the Steam search box.

Reply with one JSON object and nothing else:
{
  "keywords": ["english keyword", "..."],
  "max_price": 1000.0,
  "min_price": 0.0,
  "tags": ["tag in the user's language", "..."],
  "genres": ["english genre", "..."],
  "preferences": {
    "multiplayer": false,
    "singleplayer": true,
    "story_rich": false,
    "open_world": true,
    "other": "free text"
  }
}
Use 1000.0 for max_price when the request names no budget.`

const scorerSystemPrompt = `You are a game recommendation expert. Judge how well one Steam game fits a user's request.
Consider:
1. Whether the genre and tags match the request.
2. Whether the price is inside the budget.
3. The game's qualities and highlights.
4. How well it satisfies the stated preferences.

Reply with one JSON object and nothing else:
{
  "score": 85,
  "reason": "two or three sentences explaining the fit",
  "highlights": ["highlight 1", "highlight 2", "highlight 3"]
}
score is an integer from 0 to 100.`

func buildAnalyzerUserPrompt(query string) string {
	return "User request: " + strings.TrimSpace(query)
}

func buildScorerUserPrompt(query string, item domain.CatalogItem, constraints domain.QueryConstraints) string {
	tags := item.Tags
	if len(tags) > 10 {
		tags = tags[:10]
	}
	description := []rune(item.Description)
	if len(description) > 300 {
		description = description[:300]
	}
	wanted := constraints.Tags
	if len(wanted) == 0 {
		wanted = constraints.Genres
	}

	return fmt.Sprintf(`User request: %s

Budget: %.0f to %.0f CNY
Wanted types: %s

Game:
- Name: %s
- Price: %.2f CNY
- Discount: %d%%
- Tags: %s
- Description: %s
- Release date: %s`,
		strings.TrimSpace(query),
		constraints.MinPrice,
		constraints.MaxPrice,
		joinOrNone(wanted),
		item.Name,
		item.Price,
		item.DiscountPercent,
		joinOrNone(tags),
		orUnknown(string(description)),
		orUnknown(item.ReleaseDate),
	)
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return "unknown"
	}
	return value
}
