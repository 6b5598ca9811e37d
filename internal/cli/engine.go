package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geoplan-bench/trajeval/catalog"
	"github.com/geoplan-bench/trajeval/internal/align"
	"github.com/geoplan-bench/trajeval/internal/config"
	"github.com/geoplan-bench/trajeval/internal/importance"
	"github.com/geoplan-bench/trajeval/internal/keystep"
	"github.com/geoplan-bench/trajeval/internal/result"
	"github.com/geoplan-bench/trajeval/internal/similarity"
	"github.com/geoplan-bench/trajeval/internal/task"
	"github.com/geoplan-bench/trajeval/internal/telemetry"
	"github.com/geoplan-bench/trajeval/internal/tournament"
)

// Judge selection for tournaments.
const (
	judgeAuto     = "auto"
	judgeRecorded = "recorded"
	judgeCommand  = "command"
	judgeNone     = "none"
)

func validJudgeMode(s string) error {
	switch s {
	case judgeAuto, judgeRecorded, judgeCommand, judgeNone:
		return nil
	default:
		return fmt.Errorf("invalid --judge %q (valid: auto, recorded, command, none)", s)
	}
}

// engine bundles everything needed to score one task run.
type engine struct {
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	table     *importance.Table
	cache     *similarity.Cache
	scorer    *align.Scorer
	params    tournament.Params
	command   *tournament.CommandJudge
	judgeMode string
}

// newStore opens the importance store over the configured graph source.
func newStore(c *config.Config, m *telemetry.Metrics, l *slog.Logger) (*importance.Store, error) {
	src, dir, err := c.ImportanceSource()
	if err != nil {
		return nil, err
	}
	return importance.NewStore(c.Paths.ImportanceFile, dir, c.ImportanceParams(),
		importance.WithSource(src), importance.WithLogger(l), importance.WithMetrics(m)), nil
}

// loadCatalog reads the configured tool catalog, or the built-in one.
func loadCatalog(c *config.Config) (*similarity.Catalog, error) {
	if c.Paths.CatalogFile == "" {
		return similarity.ParseCatalog(catalog.DefaultYAML)
	}
	return similarity.LoadCatalog(c.Paths.CatalogFile)
}

// newScorer builds the alignment scorer from the importance table and the
// configured similarity provider.
func newScorer(c *config.Config, table *importance.Table, m *telemetry.Metrics, l *slog.Logger) (*align.Scorer, *similarity.Cache, error) {
	cat, err := loadCatalog(c)
	if err != nil {
		return nil, nil, fmt.Errorf("loading tool catalog: %w", err)
	}
	embed, err := similarity.NewEmbeddingFunc(c.ProviderConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("configuring embeddings: %w", err)
	}
	if embed == nil {
		l.Debug("no embedding provider configured, distinct tools score 0 similarity")
	}
	cache := similarity.NewCache(cat, embed,
		similarity.WithLogger(l),
		similarity.WithMetrics(m),
		similarity.WithVectorCacheSize(c.Similarity.VectorCacheSize),
	)
	scorer := align.NewScorer(table, cache,
		align.WithCostCeiling(c.Alignment.CostCeiling),
		align.WithMetrics(m),
	)
	return scorer, cache, nil
}

func newEngine(c *config.Config, judgeMode string, m *telemetry.Metrics, l *slog.Logger) (*engine, error) {
	if err := validJudgeMode(judgeMode); err != nil {
		return nil, err
	}
	params, err := c.TournamentParams()
	if err != nil {
		return nil, err
	}
	if judgeMode == judgeCommand && c.CommandJudge() == nil {
		return nil, fmt.Errorf("--judge command requires tournament.judge_command in the config")
	}

	store, err := newStore(c, m, l)
	if err != nil {
		return nil, err
	}
	table := store.Table()
	scorer, cache, err := newScorer(c, table, m, l)
	if err != nil {
		return nil, err
	}
	return &engine{
		logger:    l,
		metrics:   m,
		table:     table,
		cache:     cache,
		scorer:    scorer,
		params:    params,
		command:   c.CommandJudge(),
		judgeMode: judgeMode,
	}, nil
}

// judgeFor picks the judge for a run. In auto mode recorded verdicts win over
// the configured command.
func (e *engine) judgeFor(run *task.Run) tournament.Judge {
	recorded := func() tournament.Judge {
		if len(run.Verdicts) == 0 {
			return nil
		}
		return tournament.NewRecordedJudge(run.Verdicts)
	}
	switch e.judgeMode {
	case judgeRecorded:
		return recorded()
	case judgeCommand:
		return e.command
	case judgeNone:
		return nil
	}
	if j := recorded(); j != nil {
		return j
	}
	if e.command != nil {
		return e.command
	}
	return nil
}

// evaluate scores every agent in run and ranks them with a tournament.
func (e *engine) evaluate(ctx context.Context, run *task.Run) (*result.TaskReport, error) {
	start := time.Now()
	rep := result.NewTaskReport(&run.Task)
	reference := run.Flow().Compact()

	for _, name := range run.AgentNames() {
		a := run.Agents[name]
		flow := a.ToolFlow.Compact()

		al := e.scorer.Align(ctx, flow, reference)
		ks := keystep.Evaluate(reference, run.KeySteps, flow, a.KeyTools)

		rep.Agents[name] = result.AgentReport{
			ToolTrajectory:   a.ToolFlow,
			KeySteps:         ks.KeySteps,
			KeyTools:         ks.KeyTools,
			KeyStepRecall:    ks.Recall,
			KeyToolPrecision: ks.Precision,
			F1Score:          ks.F1,
			EditDistance:     al.RawCost,
			Similarity:       al.SimilarityScore,
			Operations:       al.Operations,
		}
		e.logger.Debug("aligned agent", "task", run.ID, "agent", name,
			"similarity", al.SimilarityScore, "cost", al.RawCost)
	}

	judge := e.judgeFor(run)
	if judge == nil && len(run.Agents) > 1 {
		e.logger.Warn("no judge available, completeness ratings stay at the initial rating", "task", run.ID)
	}
	tr, err := tournament.Run(ctx, e.params, run.Question, run.Flows(), judge,
		tournament.WithLogger(e.logger.With("task", run.ID)),
		tournament.WithMetrics(e.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", run.ID, err)
	}
	for name, rating := range tr.Ratings {
		ar := rep.Agents[name]
		ar.Completeness = rating
		rep.Agents[name] = ar
	}
	rep.Tournament = result.NewTournamentInfo(tr)

	d := time.Since(start)
	rep.Duration = d.Seconds()
	e.metrics.RecordTask(d)
	return rep, nil
}

// selectRuns filters runs by a comma-separated list of task IDs. An empty
// list selects all runs.
func selectRuns(runs []*task.Run, ids string) ([]*task.Run, error) {
	if strings.TrimSpace(ids) == "" {
		return runs, nil
	}
	var selected []*task.Run
	seen := make(map[string]bool)
	for _, tok := range strings.Split(ids, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" || seen[tok] {
			continue
		}
		r, err := task.ResolveRun(runs, tok)
		if err != nil {
			return nil, err
		}
		seen[tok] = true
		selected = append(selected, r)
	}
	return selected, nil
}
