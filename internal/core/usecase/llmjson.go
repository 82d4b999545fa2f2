package usecase

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

// stripCodeFence returns the body of the first ```json or ``` fenced block, or raw unchanged.
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if idx := strings.Index(text, "```json"); idx >= 0 {
		body := text[idx+len("```json"):]
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		return strings.TrimSpace(body)
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		body := text[idx+3:]
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		return strings.TrimSpace(body)
	}
	return text
}

// decodeModelObject parses a model reply into a JSON object. After fence stripping it
// retries with the outermost {...} span when the reply carries surrounding prose.
func decodeModelObject(raw string) (map[string]any, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "decode model reply", fmt.Errorf("empty reply"))
	}

	var out map[string]any
	err := json.Unmarshal([]byte(body), &out)
	if err == nil && out != nil {
		return out, nil
	}

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start >= 0 && end > start {
		var salvaged map[string]any
		if jsonErr := json.Unmarshal([]byte(body[start:end+1]), &salvaged); jsonErr == nil && salvaged != nil {
			return salvaged, nil
		}
	}
	if err == nil {
		err = fmt.Errorf("reply is not a JSON object")
	}
	return nil, domain.WrapError(domain.ErrMalformedResponse, "decode model reply", err)
}

func stringField(input map[string]any, key, fallback string) string {
	value, ok := input[key]
	if !ok || value == nil {
		return fallback
	}
	switch typed := value.(type) {
	case string:
		return typed
	default:
		return fmt.Sprint(typed)
	}
}

// numberField accepts JSON numbers and numeric strings. ok is false when the key is
// absent, not numeric or not finite.
func numberField(input map[string]any, key string) (float64, bool) {
	value, ok := input[key]
	if !ok || value == nil {
		return 0, false
	}
	var n float64
	switch typed := value.(type) {
	case float64:
		n = typed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func stringListField(input map[string]any, key string) []string {
	value, ok := input[key]
	if !ok || value == nil {
		return []string{}
	}
	switch typed := value.(type) {
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if item == nil {
				continue
			}
			if s, ok := item.(string); ok {
				out = append(out, s)
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if strings.TrimSpace(typed) == "" {
			return []string{}
		}
		return []string{typed}
	default:
		return []string{}
	}
}

func preferencesField(input map[string]any, key string) map[string]domain.Preference {
	out := map[string]domain.Preference{}
	raw, ok := input[key].(map[string]any)
	if !ok {
		return out
	}
	for name, value := range raw {
		switch typed := value.(type) {
		case bool:
			out[name] = domain.FlagPreference(typed)
		case string:
			out[name] = domain.TextPreference(typed)
		case nil:
		default:
			out[name] = domain.TextPreference(fmt.Sprint(typed))
		}
	}
	return out
}
