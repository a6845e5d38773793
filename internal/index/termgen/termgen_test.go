package termgen

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotation"
	apperrors "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/errors"
)

func joined(t *testing.T, gen Generator[string], a annotation.Bounded) string {
	t.Helper()
	terms, err := gen(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return strings.Join(terms, " ")
}

func TestNGrams(t *testing.T) {
	doc := annotation.NewDocument("d", "1234567")
	a := annotation.Range{From: 0, To: 7}
	if got := joined(t, NGrams(doc, 1), a); got != "1 2 3 4 5 6 7" {
		t.Errorf("unigrams = %q", got)
	}
	if got := joined(t, NGrams(doc, 2), a); got != "12 23 34 45 56 67" {
		t.Errorf("bigrams = %q", got)
	}
	if got := joined(t, NGrams(doc, 3), a); got != "123 234 345 456 567" {
		t.Errorf("trigrams = %q", got)
	}
	if got := joined(t, NGrams(doc, 8), a); got != "" {
		t.Errorf("n longer than text should yield nothing, got %q", got)
	}
}

func TestEdgeNGrams(t *testing.T) {
	doc := annotation.NewDocument("d", "tra 1234567")
	if got := joined(t, EdgeNGrams(doc, 5), annotation.Range{From: 4, To: 9}); got != "1 12 123 1234 12345" {
		t.Errorf("edge ngrams = %q", got)
	}
	if got := joined(t, EdgeNGrams(doc, 5), annotation.Range{From: 4, To: 6}); got != "1 12" {
		t.Errorf("edge ngrams of short text = %q", got)
	}
}

func TestPrefix(t *testing.T) {
	doc := annotation.NewDocument("d", "tra 1234567")
	a := annotation.Range{From: 4, To: 5}
	if got := joined(t, Prefix(doc, 1), a); got != "1" {
		t.Errorf("prefix(1) = %q", got)
	}
	if got := joined(t, Prefix(doc, 3), a); got != "1" {
		t.Errorf("prefix(3) = %q", got)
	}
	if got := joined(t, Prefix(doc, 5), annotation.Range{From: 4, To: 9}); got != "12345" {
		t.Errorf("prefix(5) = %q", got)
	}
}

func TestExactPrefix(t *testing.T) {
	doc := annotation.NewDocument("d", "tra 1234567")
	a := annotation.Range{From: 4, To: 5}
	terms, err := ExactPrefix(doc, 3)(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(terms) != 0 {
		t.Errorf("exact prefix longer than text should yield nothing, got %v", terms)
	}
	if got := joined(t, ExactPrefix(doc, 1), a); got != "1" {
		t.Errorf("exact prefix(1) = %q", got)
	}
	if got := joined(t, ExactPrefix(doc, 5), annotation.Range{From: 4, To: 9}); got != "12345" {
		t.Errorf("exact prefix(5) = %q", got)
	}
}

func TestSuffix(t *testing.T) {
	doc := annotation.NewDocument("d", "tra 1234567")
	a := annotation.Range{From: 4, To: 5}
	if got := joined(t, Suffix(doc, 1), a); got != "1" {
		t.Errorf("suffix(1) = %q", got)
	}
	if got := joined(t, Suffix(doc, 3), a); got != "1" {
		t.Errorf("suffix(3) = %q", got)
	}
	if got := joined(t, Suffix(doc, 5), annotation.Range{From: 4, To: 11}); got != "34567" {
		t.Errorf("suffix(5) = %q", got)
	}
}

func TestExactSuffix(t *testing.T) {
	doc := annotation.NewDocument("d", "tra 1234567")
	a := annotation.Range{From: 4, To: 5}
	terms, err := ExactSuffix(doc, 3)(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(terms) != 0 {
		t.Errorf("exact suffix longer than text should yield nothing, got %v", terms)
	}
	if got := joined(t, ExactSuffix(doc, 1), a); got != "1" {
		t.Errorf("exact suffix(1) = %q", got)
	}
	if got := joined(t, ExactSuffix(doc, 5), annotation.Range{From: 4, To: 11}); got != "34567" {
		t.Errorf("exact suffix(5) = %q", got)
	}
}

func TestCoveredText(t *testing.T) {
	doc := annotation.NewDocument("d", "IL-2 receptor")
	if got := joined(t, CoveredText(doc), annotation.Range{From: 0, To: 4}); got != "IL-2" {
		t.Errorf("covered text = %q", got)
	}
}

func TestOffsets(t *testing.T) {
	keys, err := Offsets()(annotation.Range{From: 1234, To: 9876})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected one key, got %d", len(keys))
	}
	if int(keys[0]>>32) != 1234 {
		t.Errorf("high bits = %d, want 1234", keys[0]>>32)
	}
	if int(int32(keys[0])) != 9876 {
		t.Errorf("low bits = %d, want 9876", int32(keys[0]))
	}
	b, e := UnpackOffsets(keys[0])
	if b != 1234 || e != 9876 {
		t.Errorf("UnpackOffsets = (%d,%d)", b, e)
	}
}

func TestOffsets_OrderFollowsBeginThenEnd(t *testing.T) {
	if !(PackOffsets(3, 9) < PackOffsets(4, 5)) {
		t.Error("packed keys must order by begin first")
	}
	if !(PackOffsets(3, 5) < PackOffsets(3, 9)) {
		t.Error("packed keys must order by end within the same begin")
	}
	if PackOffsets(3, 5) == PackOffsets(3, 6) {
		t.Error("different ends must give different keys")
	}
}

func TestTextGenerators_FailWithoutText(t *testing.T) {
	gens := map[string]Generator[string]{
		"ngrams":       NGrams(nil, 2),
		"edge":         EdgeNGrams(&annotation.Document{}, 2),
		"prefix":       Prefix(nil, 2),
		"suffix":       Suffix(&annotation.Document{}, 2),
		"exact_prefix": ExactPrefix(nil, 2),
		"exact_suffix": ExactSuffix(nil, 2),
		"covered_text": CoveredText(nil),
	}
	for name, gen := range gens {
		terms, err := gen(annotation.Range{From: 0, To: 3})
		if !errors.Is(err, apperrors.ErrTextUnavailable) {
			t.Errorf("%s: expected ErrTextUnavailable, got terms=%v err=%v", name, terms, err)
		}
	}
}

func TestSingle(t *testing.T) {
	gen := Single(func(a annotation.Bounded) int { return a.Begin() })
	keys, err := gen(annotation.Range{From: 7, To: 9})
	if err != nil || len(keys) != 1 || keys[0] != 7 {
		t.Errorf("Single = %v, %v", keys, err)
	}
}
