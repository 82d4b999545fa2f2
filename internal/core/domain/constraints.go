package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

const (
	DefaultMaxPrice = 1000.0
	DefaultMinPrice = 0.0
	// GenericSearchTerm is used when a request yields nothing more specific.
	GenericSearchTerm = "games"
)

type QueryConstraints struct {
	Keywords    []string              `json:"keywords"`
	MinPrice    float64               `json:"min_price"`
	MaxPrice    float64               `json:"max_price"`
	Tags        []string              `json:"tags"`
	Genres      []string              `json:"genres"`
	Preferences map[string]Preference `json:"preferences"`
}

// NewQueryConstraints returns constraints with default bounds and empty collections.
func NewQueryConstraints() QueryConstraints {
	return QueryConstraints{
		Keywords:    []string{},
		MinPrice:    DefaultMinPrice,
		MaxPrice:    DefaultMaxPrice,
		Tags:        []string{},
		Genres:      []string{},
		Preferences: map[string]Preference{},
	}
}

// Normalize enforces 0 <= MinPrice <= MaxPrice, deduplicates tags, and backfills
// keywords from genres, then tags, then the generic search term.
func (c QueryConstraints) Normalize() QueryConstraints {
	out := c
	out.MinPrice = finitePrice(out.MinPrice)
	out.MaxPrice = finitePrice(out.MaxPrice)
	if out.MinPrice > out.MaxPrice {
		out.MinPrice, out.MaxPrice = out.MaxPrice, out.MinPrice
	}
	out.Keywords = UniqueStrings(out.Keywords)
	out.Tags = UniqueStrings(out.Tags)
	out.Genres = UniqueStrings(out.Genres)
	if out.Preferences == nil {
		out.Preferences = map[string]Preference{}
	}
	if len(out.Keywords) == 0 {
		switch {
		case len(out.Genres) > 0:
			out.Keywords = append([]string{}, out.Genres...)
		case len(out.Tags) > 0:
			out.Keywords = append([]string{}, out.Tags...)
		default:
			out.Keywords = []string{GenericSearchTerm}
		}
	}
	return out
}

// finitePrice maps negative and non-finite bounds to 0.
func finitePrice(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// UniqueStrings trims entries and drops blanks and exact duplicates, keeping first occurrence order.
func UniqueStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// Preference is either a boolean flag or a free-text value.
type Preference struct {
	flag   bool
	text   string
	isFlag bool
}

func FlagPreference(v bool) Preference {
	return Preference{flag: v, isFlag: true}
}

func TextPreference(v string) Preference {
	return Preference{text: v}
}

func (p Preference) Flag() (bool, bool) {
	return p.flag, p.isFlag
}

func (p Preference) Text() (string, bool) {
	return p.text, !p.isFlag
}

func (p Preference) String() string {
	if p.isFlag {
		return fmt.Sprintf("%t", p.flag)
	}
	return p.text
}

func (p Preference) MarshalJSON() ([]byte, error) {
	if p.isFlag {
		return json.Marshal(p.flag)
	}
	return json.Marshal(p.text)
}

// UnmarshalJSON accepts booleans and strings; any other scalar is kept as its text form.
func (p *Preference) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		*p = FlagPreference(v)
	case string:
		*p = TextPreference(v)
	case nil:
		*p = TextPreference("")
	default:
		*p = TextPreference(strings.TrimSpace(string(data)))
	}
	return nil
}
