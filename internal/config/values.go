package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Values is a parsed settings tree addressed by dotted paths such as "llm.model".
type Values map[string]any

func ParseValues(raw []byte) (Values, error) {
	var vals Values
	if err := yaml.Unmarshal(raw, &vals); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if vals == nil {
		vals = Values{}
	}
	return vals, nil
}

func ReadValues(path string) (Values, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	return ParseValues(raw)
}

func (v Values) Lookup(path string) (any, bool) {
	var current any = map[string]any(v)
	for _, key := range strings.Split(path, ".") {
		section, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = section[key]
		if !ok {
			return nil, false
		}
	}
	return current, current != nil
}

func (v Values) String(path, fallback string) string {
	raw, ok := v.Lookup(path)
	if !ok {
		return fallback
	}
	switch typed := raw.(type) {
	case string:
		return typed
	case map[string]any, []any:
		return fallback
	default:
		return fmt.Sprint(typed)
	}
}

func (v Values) Int(path string, fallback int) int {
	raw, ok := v.Lookup(path)
	if !ok {
		return fallback
	}
	switch typed := raw.(type) {
	case int:
		return typed
	case float64:
		return int(typed)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(typed)); err == nil {
			return n
		}
	}
	return fallback
}

func (v Values) Float(path string, fallback float64) float64 {
	raw, ok := v.Lookup(path)
	if !ok {
		return fallback
	}
	switch typed := raw.(type) {
	case int:
		return float64(typed)
	case float64:
		return typed
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64); err == nil {
			return f
		}
	}
	return fallback
}

func (v Values) Bool(path string, fallback bool) bool {
	raw, ok := v.Lookup(path)
	if !ok {
		return fallback
	}
	switch typed := raw.(type) {
	case bool:
		return typed
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(typed)); err == nil {
			return b
		}
	}
	return fallback
}

// Seconds reads a number of seconds (fractions allowed) or a Go duration string.
func (v Values) Seconds(path string, fallback time.Duration) time.Duration {
	raw, ok := v.Lookup(path)
	if !ok {
		return fallback
	}
	if s, ok := raw.(string); ok {
		if d, err := parseSeconds(s); err == nil {
			return d
		}
		return fallback
	}
	return secondsToDuration(v.Float(path, fallback.Seconds()))
}

func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return secondsToDuration(f), nil
	}
	return time.ParseDuration(s)
}

func secondsToDuration(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
