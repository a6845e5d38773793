package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion"
)

var vocabulary = []string{
	"interleukin", "IL-2", "activates", "T", "cells", "binds", "receptor",
	"the", "of", "in", "signal", "protein", "kinase", "expression", "gene",
	"promoter", "regulates", "human", "mouse", "tumor", "necrosis", "factor",
}

// generator builds synthetic annotated documents: one token per word,
// sentences of up to sentenceLen words, entities over one to three tokens
// and bracketed references.
type generator struct {
	rng   *rand.Rand
	words int
}

const sentenceLen = 12

func newGenerator(seed uint64, words int) *generator {
	return &generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), words: max(1, words)}
}

// next returns a request body and its idempotency key. With probability
// repeat, a key from sent is reused and replay is true.
func (g *generator) next(sent []string, repeat float64) (ingestion.IngestRequest, string, bool) {
	req := g.document()
	if len(sent) > 0 && g.rng.Float64() < repeat {
		key := sent[g.rng.IntN(len(sent))]
		req.IdempotencyKey = key
		return req, key, true
	}
	req.IdempotencyKey = uuid.NewString()
	return req, req.IdempotencyKey, false
}

func (g *generator) document() ingestion.IngestRequest {
	var (
		text        strings.Builder
		annotations []ingestion.Annotation
		tokens      []ingestion.Annotation
		offset      int
		sentence    = 0
	)
	add := func(s string, kind string) ingestion.Annotation {
		if offset > 0 {
			text.WriteByte(' ')
			offset++
		}
		a := ingestion.Annotation{
			ID:    fmt.Sprintf("%s%d", kind[:1], len(annotations)),
			Begin: offset,
			End:   offset + utf8.RuneCountInString(s),
			Type:  kind,
		}
		text.WriteString(s)
		offset = a.End
		annotations = append(annotations, a)
		return a
	}

	for i := range g.words {
		tokens = append(tokens, add(vocabulary[g.rng.IntN(len(vocabulary))], "token"))
		if g.rng.IntN(20) == 0 {
			add(fmt.Sprintf("[%d]", g.rng.IntN(50)+1), "reference")
		}
		if (i+1)%sentenceLen == 0 || i == g.words-1 {
			annotations = append(annotations, ingestion.Annotation{
				ID:    fmt.Sprintf("s%d", len(annotations)),
				Begin: sentence,
				End:   offset,
				Type:  "sentence",
			})
			sentence = offset + 1
		}
	}

	for i := 0; i < len(tokens); i += 1 + g.rng.IntN(4) {
		last := min(len(tokens)-1, i+g.rng.IntN(3))
		annotations = append(annotations, ingestion.Annotation{
			ID:    fmt.Sprintf("e%d", len(annotations)),
			Begin: tokens[i].Begin,
			End:   tokens[last].End,
			Type:  "entity",
		})
	}
	return ingestion.IngestRequest{Text: text.String(), Annotations: annotations}
}

func newIngestRequest(ctx context.Context, baseURL string, body ingestion.IngestRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/documents", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
