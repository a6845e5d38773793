// Package cache keeps processing results in Redis, keyed by a hash of the
// document content, so a re-delivered or re-submitted document is not
// processed twice.
package cache

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/processor"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/resilience"
)

const keyPrefix = "result:"

// Backend is the subset of the Redis client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// ResultCache is a read-through cache of processing results. Redis failures
// never fail a lookup: they count as misses, and after repeated failures a
// circuit breaker skips Redis entirely until it recovers.
type ResultCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.Breaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *ResultCache {
	return &ResultCache{
		backend: backend,
		ttl:     ttl,
		breaker: resilience.NewBreaker("redis", resilience.BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			IsFailure: func(err error) bool {
				return err != nil && !pkgredis.IsNilError(err)
			},
			OnStateChange: func(s resilience.State) {
				m.CacheCircuitState.Set(float64(s))
			},
		}),
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
}

// Key derives the cache key of doc from its text and annotations. The
// document id does not take part. Annotations are hashed with their
// resolved ids and in sorted order, so reordering changes the key exactly
// when it changes which id a defaulted annotation gets.
func Key(doc *ingestion.AnnotatedDocument) string {
	// documents with repeated ids fail processing, so nothing is stored under their key
	ids, _ := ingestion.ResolveIDs(doc.Annotations)
	anns := slices.Clone(doc.Annotations)
	for i := range anns {
		anns[i].ID = ids[i]
	}
	slices.SortFunc(anns, func(a, b ingestion.Annotation) int {
		return cmp.Or(
			cmp.Compare(a.Begin, b.Begin),
			cmp.Compare(a.End, b.End),
			cmp.Compare(a.Type, b.Type),
			cmp.Compare(a.ID, b.ID),
		)
	})
	h := sha256.New()
	h.Write([]byte(doc.Text))
	h.Write([]byte{0})
	// maps marshal with sorted keys, so the encoding is canonical
	json.NewEncoder(h).Encode(anns)
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached result stored under key.
func (c *ResultCache) Get(ctx context.Context, key string) (*processor.Result, bool) {
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		return err
	})
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	var res processor.Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	c.metrics.CacheHitsTotal.Inc()
	return &res, true
}

// Set stores res under key. Failures are logged, not returned.
func (c *ResultCache) Set(ctx context.Context, key string, res *processor.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for doc or computes and caches it.
// Concurrent calls for the same content share one computation. The returned
// result always carries doc's id; cached reports whether compute was skipped.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	doc *ingestion.AnnotatedDocument,
	compute func() (*processor.Result, error),
) (res *processor.Result, cached bool, err error) {
	key := Key(doc)
	if res, ok := c.Get(ctx, key); ok {
		return withID(res, doc.DocumentID), true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		if res, ok := c.Get(ctx, key); ok {
			return res, nil
		}
		res, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, res)
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}
	return withID(val.(*processor.Result), doc.DocumentID), false, nil
}

// Invalidate drops every cached result, e.g. after a rule configuration
// change.
func (c *ResultCache) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.backend.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Healthy reports whether the breaker lets calls through to Redis.
func (c *ResultCache) Healthy() bool {
	return c.breaker.State() != resilience.StateOpen
}

// withID returns res for document id, copying it when it belongs to another
// document with the same content.
func withID(res *processor.Result, id string) *processor.Result {
	if res.DocumentID == id {
		return res
	}
	cp := *res
	cp.DocumentID = id
	return &cp
}
