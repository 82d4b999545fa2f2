package usecase

import (
	"testing"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```":          `{"a":1}`,
		"here:\n```\n{\"a\":2}\n```\nbye": `{"a":2}`,
		"  {\"a\":3}  ":                    `{"a":3}`,
		"```json\n{\"a\":4}":               `{"a":4}`,
	}
	for raw, want := range cases {
		if got := stripCodeFence(raw); got != want {
			t.Fatalf("stripCodeFence(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestDecodeModelObjectSalvagesSurroundingProse(t *testing.T) {
	payload, err := decodeModelObject(`Sure! {"score": 70, "reason": "ok"} Hope this helps.`)
	if err != nil {
		t.Fatalf("decodeModelObject() error = %v", err)
	}
	if payload["reason"] != "ok" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestDecodeModelObjectRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not json at all", "[1,2,3]", "```json\n```"} {
		_, err := decodeModelObject(raw)
		if !domain.IsKind(err, domain.ErrMalformedResponse) {
			t.Fatalf("decodeModelObject(%q) expected malformed response, got %v", raw, err)
		}
	}
}

func TestNumberFieldAcceptsNumericStrings(t *testing.T) {
	payload := map[string]any{"a": 12.5, "b": " 40 ", "c": "cheap", "d": true}
	if v, ok := numberField(payload, "a"); !ok || v != 12.5 {
		t.Fatalf("expected 12.5, got %v %v", v, ok)
	}
	if v, ok := numberField(payload, "b"); !ok || v != 40 {
		t.Fatalf("expected 40, got %v %v", v, ok)
	}
	for _, key := range []string{"c", "d", "missing"} {
		if _, ok := numberField(payload, key); ok {
			t.Fatalf("expected %s to be rejected", key)
		}
	}
}
