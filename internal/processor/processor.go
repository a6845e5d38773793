// Package processor runs the post-processing rules over one annotated
// document and assembles the result the service stores and publishes.
//
// Exclusion and duplicate removal run first because they change the entity
// set every other rule reads; containment, token alignment, surface grouping
// and condensing then run concurrently, each on its own indexes.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotation"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotator"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/tracing"
)

// Rule names as used in metrics and results.
const (
	RuleExclude     = "exclude"
	RuleDeduplicate = "deduplicate"
	RuleContain     = "contain"
	RuleAlign       = "align"
	RuleGroup       = "group"
	RuleCondense    = "condense"
)

// Processor applies the configured rules to documents. It is safe for
// concurrent use; every call builds its own indexes.
type Processor struct {
	cfg     config.ProcessorConfig
	kinds   *annotation.Registry
	metrics *metrics.Metrics
	logger  *slog.Logger

	tokenKind    annotation.Kind
	sentenceKind annotation.Kind
	entityKinds  map[annotation.Kind]bool
	excludeKinds map[annotation.Kind]bool
	condenseKind map[annotation.Kind]bool
}

// New creates a Processor. The configured type names are interned into a
// registry owned by the processor.
func New(cfg config.ProcessorConfig, m *metrics.Metrics) *Processor {
	kinds := annotation.NewRegistry()
	return &Processor{
		cfg:          cfg,
		kinds:        kinds,
		metrics:      m,
		logger:       logger.WithComponent("processor"),
		tokenKind:    kinds.Intern(cfg.TokenType),
		sentenceKind: kinds.Intern(cfg.SentenceType),
		entityKinds:  internAll(kinds, cfg.EntityTypes),
		excludeKinds: internAll(kinds, cfg.ExcludeTypes),
		condenseKind: internAll(kinds, cfg.CondenseTypes),
	}
}

// Registry returns the kind registry shared by all documents.
func (p *Processor) Registry() *annotation.Registry {
	return p.kinds
}

// Process validates doc and runs the enabled rules over it. Invalid
// documents fail with an error matching apperrors.ErrInvalidInput.
func (p *Processor) Process(ctx context.Context, doc *ingestion.AnnotatedDocument) (*Result, error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "process")
	defer span.End()
	log := logger.FromContext(logger.WithDocumentID(ctx, doc.DocumentID))
	if err := validator.ValidateDocument(doc, p.cfg.MaxAnnotations); err != nil {
		p.metrics.DocumentsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("validating document %s: %w", doc.DocumentID, err)
	}
	p.metrics.AnnotationsPerDocument.Observe(float64(len(doc.Annotations)))

	d, parts, err := p.split(doc)
	if err != nil {
		p.metrics.DocumentsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("reading annotations of %s: %w", doc.DocumentID, err)
	}

	res := &Result{DocumentID: doc.DocumentID, Dropped: make(map[string][]string)}
	entities := parts.entities

	if p.cfg.Rules.Exclude && len(parts.excludes) > 0 {
		err := p.timed(ctx, RuleExclude, func() error {
			kept, err := annotator.ExcludeOverlapping(entities, parts.excludes)
			if err != nil {
				return err
			}
			p.drop(res, RuleExclude, entities, kept)
			entities = kept
			return nil
		})
		if err != nil {
			return nil, p.fail(err, RuleExclude)
		}
	}

	if p.cfg.Rules.Deduplicate {
		err := p.timed(ctx, RuleDeduplicate, func() error {
			kept, err := annotator.Deduplicate(entities)
			if err != nil {
				return err
			}
			p.drop(res, RuleDeduplicate, entities, kept)
			entities = kept
			return nil
		})
		if err != nil {
			return nil, p.fail(err, RuleDeduplicate)
		}
	}
	res.Entities = refs(d, entities)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, p.cfg.Workers))
	run := func(enabled bool, rule string, fn func() error) {
		if !enabled {
			return
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := p.timed(gctx, rule, fn); err != nil {
				return fmt.Errorf("rule %s: %w", rule, err)
			}
			return nil
		})
	}

	run(p.cfg.Rules.Contain, RuleContain, func() error {
		contained, err := annotator.Contained(entities, parts.tokens)
		if err != nil {
			return err
		}
		res.Contains = containmentLinks(contained)
		p.metrics.IndexedSpans.WithLabelValues("cover").Observe(float64(len(parts.tokens)))

		if len(parts.sentences) == 0 {
			return nil
		}
		bySentence, err := annotator.Contained(parts.sentences, entities)
		if err != nil {
			return err
		}
		res.Sentences = containmentLinks(bySentence)
		return nil
	})
	run(p.cfg.Rules.Align, RuleAlign, func() error {
		aligned, err := annotator.AlignTokens(parts.tokens, entities)
		if err != nil {
			return err
		}
		res.Alignments = make([]Link, 0, len(aligned))
		for _, a := range aligned {
			res.Alignments = append(res.Alignments, Link{From: a.Target.Payload.ID, To: ids(a.Tokens)})
		}
		p.metrics.IndexedSpans.WithLabelValues("treemap").Observe(float64(len(parts.tokens)))
		return nil
	})
	run(p.cfg.Rules.Group, RuleGroup, func() error {
		groups, err := annotator.GroupBySurface(d, entities)
		if err != nil {
			return err
		}
		for _, grp := range groups {
			if len(grp.Spans) > 1 {
				res.Groups = append(res.Groups, SurfaceGroup{Surface: grp.Surface, IDs: ids(grp.Spans)})
			}
		}
		p.metrics.IndexedSpans.WithLabelValues("hashmap").Observe(float64(len(entities)))
		return nil
	})
	run(p.cfg.Rules.Condense && len(parts.condense) > 0, RuleCondense, func() error {
		ct, err := annotation.NewCondensedText(d, parts.condense)
		if err != nil {
			return err
		}
		res.Condensed = ct.Text()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, p.fail(err, "")
	}

	res.ProcessedAt = time.Now().UTC()
	span.SetAttr("entities", len(res.Entities))
	p.metrics.DocumentsTotal.WithLabelValues("processed").Inc()
	log.Debug("document processed",
		"annotations", len(doc.Annotations),
		"entities", len(res.Entities),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

type partition struct {
	tokens    []annotator.Span
	sentences []annotator.Span
	entities  []annotator.Span
	excludes  []annotator.Span
	condense  []annotator.Span
}

// Spans turns the annotations of doc into validated spans, in input order,
// with kinds interned in kinds. Ids come from ingestion.ResolveIDs, so a
// result refers to annotations by the same ids however it is produced.
func Spans(kinds *annotation.Registry, doc *ingestion.AnnotatedDocument) (*annotation.Document, []annotator.Span, error) {
	ids, err := ingestion.ResolveIDs(doc.Annotations)
	if err != nil {
		return nil, nil, err
	}
	d := annotation.NewDocument(doc.DocumentID, doc.Text)
	spans := make([]annotator.Span, 0, len(doc.Annotations))
	for i, a := range doc.Annotations {
		s, err := annotation.NewSpan(a.Begin, a.End, kinds.Intern(a.Type), annotator.Attrs{ID: ids[i], Type: a.Type, Attributes: a.Attributes})
		if err != nil {
			return nil, nil, fmt.Errorf("annotation %s: %w", ids[i], err)
		}
		if err := d.Validate(s); err != nil {
			return nil, nil, fmt.Errorf("annotation %s: %w", ids[i], err)
		}
		spans = append(spans, s)
	}
	return d, spans, nil
}

// split sorts the spans of doc by role. A span may serve several roles.
func (p *Processor) split(doc *ingestion.AnnotatedDocument) (*annotation.Document, partition, error) {
	var parts partition
	d, spans, err := Spans(p.kinds, doc)
	if err != nil {
		return nil, parts, err
	}
	for _, s := range spans {
		switch {
		case s.Kind == p.tokenKind:
			parts.tokens = append(parts.tokens, s)
		case s.Kind == p.sentenceKind:
			parts.sentences = append(parts.sentences, s)
		case p.entityKinds[s.Kind]:
			parts.entities = append(parts.entities, s)
		}
		if p.excludeKinds[s.Kind] {
			parts.excludes = append(parts.excludes, s)
		}
		if p.condenseKind[s.Kind] {
			parts.condense = append(parts.condense, s)
		}
	}
	return d, parts, nil
}

func (p *Processor) timed(ctx context.Context, rule string, fn func() error) error {
	_, span := tracing.Start(ctx, "rule."+rule)
	defer span.End()
	start := time.Now()
	err := fn()
	p.metrics.RuleDuration.WithLabelValues(rule).Observe(time.Since(start).Seconds())
	if err != nil {
		span.SetAttr("error", err.Error())
	}
	return err
}

func (p *Processor) drop(res *Result, rule string, before, after []annotator.Span) {
	if len(before) == len(after) {
		return
	}
	kept := make(map[annotator.Span]bool, len(after))
	for _, s := range after {
		kept[s] = true
	}
	for _, s := range before {
		if !kept[s] {
			res.Dropped[rule] = append(res.Dropped[rule], s.Payload.ID)
		}
	}
	p.metrics.SpansDroppedTotal.WithLabelValues(rule).Add(float64(len(before) - len(after)))
}

func (p *Processor) fail(err error, rule string) error {
	p.metrics.DocumentsTotal.WithLabelValues("failed").Inc()
	if rule == "" {
		return err
	}
	return fmt.Errorf("rule %s: %w", rule, err)
}

func internAll(r *annotation.Registry, names []string) map[annotation.Kind]bool {
	kinds := make(map[annotation.Kind]bool, len(names))
	for _, n := range names {
		kinds[r.Intern(n)] = true
	}
	return kinds
}
