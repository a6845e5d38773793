package processor

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotation"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotator"
)

// Result is what processing a document produces. Spans are referred to by
// annotation id; annotations without an id get "a<position>".
type Result struct {
	DocumentID string    `json:"document_id"`
	Entities   []SpanRef `json:"entities"`
	// rule -> ids of the entities it removed
	Dropped     map[string][]string `json:"dropped,omitempty"`
	Contains    []Link              `json:"contains,omitempty"`
	Sentences   []Link              `json:"sentences,omitempty"`
	Alignments  []Link              `json:"alignments,omitempty"`
	Groups      []SurfaceGroup      `json:"groups,omitempty"`
	Condensed   string              `json:"condensed,omitempty"`
	ProcessedAt time.Time           `json:"processed_at"`
}

// SpanRef is a surviving entity.
type SpanRef struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Begin int    `json:"begin"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Link relates one span to a list of others (outer to inner, target to
// tokens).
type Link struct {
	From string   `json:"from"`
	To   []string `json:"to"`
}

// SurfaceGroup lists entities sharing the same covered text.
type SurfaceGroup struct {
	Surface string   `json:"surface"`
	IDs     []string `json:"ids"`
}

func refs(doc *annotation.Document, spans []annotator.Span) []SpanRef {
	out := make([]SpanRef, 0, len(spans))
	for _, s := range spans {
		text, _ := doc.CoveredText(s)
		out = append(out, SpanRef{
			ID:    s.Payload.ID,
			Type:  s.Payload.Type,
			Begin: s.Begin(),
			End:   s.End(),
			Text:  text,
		})
	}
	return out
}

func ids(spans []annotator.Span) []string {
	out := make([]string, 0, len(spans))
	for _, s := range spans {
		out = append(out, s.Payload.ID)
	}
	return out
}

func containmentLinks(cs []annotator.Containment) []Link {
	links := make([]Link, 0, len(cs))
	for _, c := range cs {
		links = append(links, Link{From: c.Outer.Payload.ID, To: ids(c.Inner)})
	}
	return links
}
