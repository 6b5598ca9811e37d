// Package tournament ranks agents on one task with pairwise judgments and Elo updates.
package tournament

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/geoplan-bench/trajeval/internal/task"
	"github.com/geoplan-bench/trajeval/internal/telemetry"
)

// Mode selects how outcomes are folded into ratings.
type Mode string

const (
	// ModeSequential applies each outcome to the ratings left by the previous one.
	ModeSequential Mode = "sequential"
	// ModeBatch computes every update from the starting ratings.
	ModeBatch Mode = "batch"
)

// ParseMode validates a mode name. Empty means sequential.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSequential:
		return ModeSequential, nil
	case ModeBatch:
		return ModeBatch, nil
	default:
		return "", fmt.Errorf("unknown tournament mode: %s", s)
	}
}

// Params controls a tournament.
type Params struct {
	K             float64
	InitialRating float64
	Seed          int64 // 0 picks a time-based seed
	Mode          Mode
	Parallel      int           // concurrent judge calls
	JudgeTimeout  time.Duration // per call; 0 means none
}

// DefaultParams returns K=32, ratings starting at 1000, sequential updates.
func DefaultParams() Params {
	return Params{
		K:             32,
		InitialRating: 1000,
		Mode:          ModeSequential,
		Parallel:      4,
		JudgeTimeout:  2 * time.Minute,
	}
}

// Pair is an unordered agent pair, stored with A before B in name order.
type Pair struct {
	A string `json:"agent_a"`
	B string `json:"agent_b"`
}

// Outcome is the result of judging one pair: a verdict or an error.
type Outcome struct {
	Pair    Pair
	Verdict Verdict
	Err     error
}

// OK reports whether the outcome carries a usable verdict.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Verdict.Valid()
}

// Result is the state at the end of a tournament.
type Result struct {
	ID       string             `json:"id"`
	Mode     Mode               `json:"mode"`
	Seed     int64              `json:"seed"`
	Ratings  map[string]float64 `json:"ratings"`
	Order    []Pair             `json:"order"`
	Outcomes []Outcome          `json:"-"`
	Judged   int                `json:"judged"`
	Skipped  int                `json:"skipped"`
}

// Ranking returns agent names sorted by rating, highest first. Ties keep name order.
func (r *Result) Ranking() []string {
	names := make([]string, 0, len(r.Ratings))
	for n := range r.Ratings {
		names = append(names, n)
	}
	sort.Strings(names)
	sort.SliceStable(names, func(i, j int) bool { return r.Ratings[names[i]] > r.Ratings[names[j]] })
	return names
}

// Pairs returns every unordered pair of agents, in name order.
func Pairs(agents []string) []Pair {
	names := append([]string(nil), agents...)
	sort.Strings(names)
	pairs := make([]Pair, 0, len(names)*(len(names)-1)/2)
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			pairs = append(pairs, Pair{A: names[i], B: names[j]})
		}
	}
	return pairs
}

// Shuffle returns pairs in an order drawn from seed.
func Shuffle(pairs []Pair, seed int64) []Pair {
	out := append([]Pair(nil), pairs...)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Option configures a tournament run.
type Option func(*runner)

// WithLogger sets the logger used for skipped comparisons.
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) { r.logger = l }
}

// WithMetrics attaches verdict counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *runner) { r.metrics = m }
}

type runner struct {
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Run judges every unordered pair of agents once and folds the outcomes into
// Elo ratings. Judge calls run concurrently; ratings are applied afterwards in
// the shuffled pair order. Failed or invalid judgments are logged and skipped.
// The returned error is non-nil only when ctx ends before the tournament does.
func Run(ctx context.Context, p Params, question string, flows map[string]task.Trajectory, judge Judge, opts ...Option) (*Result, error) {
	r := &runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if p.Mode == "" {
		p.Mode = ModeSequential
	}
	seed := p.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	agents := make([]string, 0, len(flows))
	for name := range flows {
		agents = append(agents, name)
	}
	sort.Strings(agents)

	order := Shuffle(Pairs(agents), seed)
	outcomes := make([]Outcome, len(order))

	g, gctx := errgroup.WithContext(ctx)
	if p.Parallel > 0 {
		g.SetLimit(p.Parallel)
	}
	for i, pair := range order {
		g.Go(func() error {
			outcomes[i] = r.judge(gctx, p, judge, Matchup{
				Question: question,
				AgentA:   pair.A,
				FlowA:    flows[pair.A],
				AgentB:   pair.B,
				FlowB:    flows[pair.B],
			}, pair)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{
		ID:       uuid.NewString(),
		Mode:     p.Mode,
		Seed:     seed,
		Order:    order,
		Outcomes: outcomes,
	}
	for _, o := range outcomes {
		if o.OK() {
			res.Judged++
			r.metrics.RecordVerdict(string(o.Verdict))
			continue
		}
		res.Skipped++
		r.metrics.RecordVerdict("skipped")
		r.logger.Warn("skipping comparison", "agent_a", o.Pair.A, "agent_b", o.Pair.B, "error", o.Err)
	}
	res.Ratings = Rate(agents, outcomes, p)

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("tournament interrupted: %w", err)
	}
	return res, nil
}

func (r *runner) judge(ctx context.Context, p Params, judge Judge, m Matchup, pair Pair) Outcome {
	if judge == nil {
		return Outcome{Pair: pair, Err: fmt.Errorf("%w: no judge configured", ErrNoVerdict)}
	}
	if p.JudgeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.JudgeTimeout)
		defer cancel()
	}
	v, err := judge.Judge(ctx, m)
	if err == nil && !v.Valid() {
		err = fmt.Errorf("%w: %q", ErrUnparseableVerdict, string(v))
	}
	if err != nil {
		return Outcome{Pair: pair, Err: err}
	}
	r.logger.Debug("judged pair", "agent_a", pair.A, "agent_b", pair.B, "verdict", v)
	return Outcome{Pair: pair, Verdict: v}
}
