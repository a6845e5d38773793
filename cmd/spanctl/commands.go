package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotation"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotator"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index/compare"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index/termgen"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/processor"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/metrics"
)

var stdout io.Writer = os.Stdout

// DocFlags selects the input document and the annotations to index.
type DocFlags struct {
	Doc  string   `required:"" type:"existingfile" help:"Annotated document JSON file."`
	Type []string `help:"Only index annotations of these types."`
}

type loaded struct {
	raw   *ingestion.AnnotatedDocument
	doc   *annotation.Document
	spans []annotator.Span
}

func (f DocFlags) load() (*loaded, error) {
	data, err := os.ReadFile(f.Doc)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	var raw ingestion.AnnotatedDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing document %s: %w", f.Doc, err)
	}
	return fromDocument(&raw, f.Type)
}

func fromDocument(raw *ingestion.AnnotatedDocument, types []string) (*loaded, error) {
	kinds := annotation.NewRegistry()
	doc, spans, err := processor.Spans(kinds, raw)
	if err != nil {
		return nil, err
	}
	l := &loaded{raw: raw, doc: doc, spans: spans}
	if len(types) == 0 {
		return l, nil
	}
	wanted := make(map[annotation.Kind]bool, len(types))
	for _, t := range types {
		wanted[kinds.Intern(t)] = true
	}
	l.spans = slices.DeleteFunc(l.spans, func(s annotator.Span) bool { return !wanted[s.Kind] })
	return l, nil
}

type match struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Begin int    `json:"begin"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

func (l *loaded) matches(spans []annotator.Span) []match {
	out := make([]match, 0, len(spans))
	for _, s := range spans {
		text, _ := l.doc.CoveredText(s)
		out = append(out, match{ID: s.Payload.ID, Type: s.Payload.Type, Begin: s.Begin(), End: s.End(), Text: text})
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RangeFlags is the query range.
type RangeFlags struct {
	Begin int `required:"" help:"Query begin offset."`
	End   int `required:"" help:"Query end offset (exclusive)."`
}

type CoverCmd struct {
	DocFlags
	RangeFlags
}

func (c *CoverCmd) Run() error {
	l, err := c.load()
	if err != nil {
		return err
	}
	cov, err := index.Build(index.NewCover[annotator.Span](), l.spans)
	if err != nil {
		return err
	}
	hits, err := cov.Search(c.Begin, c.End)
	if err != nil {
		return err
	}
	return printJSON(l.matches(index.Collect(hits)))
}

type OverlapCmd struct {
	DocFlags
	RangeFlags
}

func (c *OverlapCmd) Run() error {
	l, err := c.load()
	if err != nil {
		return err
	}
	ov, err := index.Build(index.NewOverlap[annotator.Span](), l.spans)
	if err != nil {
		return err
	}
	hits, err := ov.SearchRange(c.Begin, c.End)
	if err != nil {
		return err
	}
	return printJSON(l.matches(index.Collect(hits)))
}

type FuzzyCmd struct {
	DocFlags
	RangeFlags
}

func (c *FuzzyCmd) Run() error {
	l, err := c.load()
	if err != nil {
		return err
	}
	tm := index.NewTreeMap[int64, annotator.Span](compare.PackedOverlap(), termgen.Offsets(), termgen.Offsets())
	if _, err := index.Build(tm, l.spans); err != nil {
		return err
	}
	hits, err := tm.SearchFuzzyKey(termgen.PackOffsets(c.Begin, c.End))
	if err != nil {
		return err
	}
	return printJSON(l.matches(index.Collect(hits)))
}

type SetCmd struct {
	DocFlags
	RangeFlags
	Exact bool `help:"Order by exact offsets instead of overlap."`
}

func (c *SetCmd) Run() error {
	l, err := c.load()
	if err != nil {
		return err
	}
	cmp := compare.Overlap[annotator.Span]()
	if c.Exact {
		cmp = compare.Exact[annotator.Span]()
	}
	set, err := index.Build(index.NewSet(cmp), l.spans)
	if err != nil {
		return err
	}
	probe := &annotation.Span[annotator.Attrs]{Start: c.Begin, Stop: c.End}
	run, err := set.SearchSubset(probe)
	if err != nil {
		return err
	}
	out := struct {
		Run    []match `json:"run"`
		Single *match  `json:"single,omitempty"`
		Note   string  `json:"note,omitempty"`
	}{Run: l.matches(run)}
	single, ok, err := set.Get(probe)
	switch {
	case err != nil:
		out.Note = err.Error()
	case ok:
		m := l.matches([]annotator.Span{single})[0]
		out.Single = &m
	}
	return printJSON(out)
}

type TermsCmd struct {
	DocFlags
	Gen string `default:"edge-ngrams" enum:"ngrams,edge-ngrams,prefix,suffix,exact-prefix,exact-suffix,text,offsets" help:"Term generator."`
	N   int    `default:"3" help:"Generator length parameter."`
}

func (c *TermsCmd) generator(src annotation.TextSource) termgen.Generator[string] {
	switch c.Gen {
	case "ngrams":
		return termgen.NGrams(src, c.N)
	case "prefix":
		return termgen.Prefix(src, c.N)
	case "suffix":
		return termgen.Suffix(src, c.N)
	case "exact-prefix":
		return termgen.ExactPrefix(src, c.N)
	case "exact-suffix":
		return termgen.ExactSuffix(src, c.N)
	case "text":
		return termgen.CoveredText(src)
	case "offsets":
		offsets := termgen.Offsets()
		return func(a annotation.Bounded) ([]string, error) {
			keys, err := offsets(a)
			if err != nil {
				return nil, err
			}
			terms := make([]string, 0, len(keys))
			for _, k := range keys {
				terms = append(terms, fmt.Sprintf("%#x", k))
			}
			return terms, nil
		}
	default:
		return termgen.EdgeNGrams(src, c.N)
	}
}

func (c *TermsCmd) Run() error {
	l, err := c.load()
	if err != nil {
		return err
	}
	gen := c.generator(l.doc)
	type entry struct {
		ID    string   `json:"id"`
		Terms []string `json:"terms"`
	}
	out := make([]entry, 0, len(l.spans))
	for _, s := range l.spans {
		terms, err := gen(s)
		if err != nil {
			return err
		}
		out = append(out, entry{ID: s.Payload.ID, Terms: terms})
	}
	return printJSON(out)
}

type PrefixCmd struct {
	DocFlags
	Query string `arg:"" help:"Text prefix."`
	N     int    `default:"3" help:"Indexed prefix length."`
}

func (c *PrefixCmd) Run() error {
	l, err := c.load()
	if err != nil {
		return err
	}
	hits, err := annotator.PrefixCandidates(l.doc, l.spans, c.Query, c.N)
	if err != nil {
		return err
	}
	return printJSON(l.matches(hits))
}

type CondenseCmd struct {
	DocFlags
	At []int `help:"Condensed offsets to map back to the original text."`
}

func (c *CondenseCmd) Run() error {
	l, err := c.load()
	if err != nil {
		return err
	}
	ct, err := annotation.NewCondensedText(l.doc, l.spans)
	if err != nil {
		return err
	}
	type mapping struct {
		Condensed int `json:"condensed"`
		Begin     int `json:"original_begin"`
		End       int `json:"original_end"`
	}
	out := struct {
		Text     string    `json:"text"`
		Mappings []mapping `json:"mappings,omitempty"`
	}{Text: ct.Text()}
	for _, at := range c.At {
		out.Mappings = append(out.Mappings, mapping{Condensed: at, Begin: ct.OriginalBegin(at), End: ct.OriginalEnd(at)})
	}
	return printJSON(out)
}

type ProcessCmd struct {
	Doc    string `required:"" type:"existingfile" help:"Annotated document JSON file."`
	Config string `type:"path" help:"YAML config file; built-in defaults when empty."`
	Rules  string `help:"Comma-separated rules to run (default: as configured)."`
}

func (c *ProcessCmd) Run() error {
	cfg := config.Default()
	if c.Config != "" {
		var err error
		if cfg, err = config.Load(c.Config); err != nil {
			return err
		}
	}
	if c.Rules != "" {
		cfg.Processor.Rules = config.Rules{}
		for _, r := range strings.Split(c.Rules, ",") {
			if err := enable(&cfg.Processor.Rules, strings.TrimSpace(r)); err != nil {
				return err
			}
		}
	}
	data, err := os.ReadFile(c.Doc)
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}
	var doc ingestion.AnnotatedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing document %s: %w", c.Doc, err)
	}
	if doc.DocumentID == "" {
		doc.DocumentID = c.Doc
	}
	p := processor.New(cfg.Processor, metrics.New(prometheus.NewRegistry()))
	res, err := p.Process(context.Background(), &doc)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func enable(r *config.Rules, name string) error {
	switch name {
	case processor.RuleExclude:
		r.Exclude = true
	case processor.RuleDeduplicate:
		r.Deduplicate = true
	case processor.RuleContain:
		r.Contain = true
	case processor.RuleAlign:
		r.Align = true
	case processor.RuleGroup:
		r.Group = true
	case processor.RuleCondense:
		r.Condense = true
	default:
		return fmt.Errorf("unknown rule %q", name)
	}
	return nil
}
