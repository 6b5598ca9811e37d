package similarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/philippgille/chromem-go"
	"gonum.org/v1/gonum/floats"

	"github.com/geoplan-bench/trajeval/internal/telemetry"
)

// DefaultVectorCacheSize bounds the number of memoized embedding vectors.
const DefaultVectorCacheSize = 4096

// ErrInvalidVector is returned for embeddings that are empty, contain NaN or
// Inf, or do not match the dimension of the vector they are compared with.
var ErrInvalidVector = errors.New("invalid embedding vector")

// Cache memoizes pairwise tool similarity in [0, 1].
// It is safe for concurrent use.
type Cache struct {
	catalog *Catalog
	embed   chromem.EmbeddingFunc
	logger  *slog.Logger
	metrics *telemetry.Metrics

	mu    sync.Mutex
	pairs map[pairKey]float64

	vectors *lru.Cache[string, []float32]
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithMetrics attaches lookup counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithVectorCacheSize bounds the embedding vector LRU.
func WithVectorCacheSize(n int) Option {
	return func(c *Cache) {
		if n <= 0 {
			return
		}
		// lru.New only errors on non-positive size which we guard above.
		c.vectors, _ = lru.New[string, []float32](n)
	}
}

type pairKey struct{ a, b string }

func newPairKey(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// NewCache creates a similarity cache. A nil embed makes every distinct pair
// score 0.0.
func NewCache(catalog *Catalog, embed chromem.EmbeddingFunc, opts ...Option) *Cache {
	c := &Cache{
		catalog: catalog,
		embed:   embed,
		pairs:   make(map[pairKey]float64),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.vectors == nil {
		c.vectors, _ = lru.New[string, []float32](DefaultVectorCacheSize)
	}
	return c
}

// Similarity returns the semantic similarity of two tools.
//
// Identical tools score 1.0 without consulting the embedder. Tools without a
// description score 0.0. Results are symmetric and cached; embedding failures
// score 0.0 and are retried on the next lookup.
func (c *Cache) Similarity(ctx context.Context, a, b string) float64 {
	if a == b {
		c.metrics.RecordSimilarityLookup("self")
		return 1.0
	}

	key := newPairKey(a, b)
	c.mu.Lock()
	if v, ok := c.pairs[key]; ok {
		c.mu.Unlock()
		c.metrics.RecordSimilarityLookup("hit")
		return v
	}
	c.mu.Unlock()
	c.metrics.RecordSimilarityLookup("miss")

	textA, okA := c.catalog.EmbeddingText(a)
	textB, okB := c.catalog.EmbeddingText(b)
	if !okA || !okB || c.embed == nil {
		c.store(key, 0)
		return 0
	}

	va, err := c.vector(ctx, textA)
	if err != nil {
		c.embedFailed(a, err)
		return 0
	}
	vb, err := c.vector(ctx, textB)
	if err != nil {
		c.embedFailed(b, err)
		return 0
	}
	if len(va) != len(vb) {
		c.embedFailed(a+"/"+b, fmt.Errorf("%w: dimensions %d and %d", ErrInvalidVector, len(va), len(vb)))
		return 0
	}

	sim := (cosine(va, vb) + 1) / 2
	if math.IsNaN(sim) {
		c.embedFailed(a+"/"+b, fmt.Errorf("%w: cosine is NaN", ErrInvalidVector))
		return 0
	}
	sim = min(1, max(0, sim))
	c.store(key, sim)
	return sim
}

// Len returns the number of cached pairs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pairs)
}

func (c *Cache) store(key pairKey, v float64) {
	c.mu.Lock()
	c.pairs[key] = v
	c.mu.Unlock()
}

func (c *Cache) embedFailed(tool string, err error) {
	c.metrics.RecordEmbeddingFailure()
	c.logger.Warn("embedding failed, similarity defaults to 0", "tool", tool, "error", err)
}

func (c *Cache) vector(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.vectors.Get(text); ok {
		return v, nil
	}
	v, err := c.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := validVector(v); err != nil {
		return nil, err
	}
	c.vectors.Add(text, v)
	return v, nil
}

func validVector(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidVector)
	}
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: component %d is %v", ErrInvalidVector, i, x)
		}
	}
	return nil
}

// cosine returns the cosine similarity of two vectors, or 0 when either has
// zero norm or the lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	x := make([]float64, len(a))
	y := make([]float64, len(b))
	for i := range a {
		x[i] = float64(a[i])
		y[i] = float64(b[i])
	}
	na, nb := floats.Norm(x, 2), floats.Norm(y, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(x, y) / (na * nb)
}
