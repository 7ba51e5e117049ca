package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"chart-revisor/internal/mapper"
	"chart-revisor/internal/models"
	"chart-revisor/internal/repository"
	"chart-revisor/internal/schema"
	"chart-revisor/internal/stager"
	"chart-revisor/internal/transformer"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrMetadataUnavailable means the bulk indicator metadata fetch failed.
// Fatal to the whole run; nothing is staged.
var ErrMetadataUnavailable = errors.New("indicator metadata unavailable")

// SchemaFetcher fetches the chart config schema document.
type SchemaFetcher interface {
	Fetch(ctx context.Context) (*schema.Document, error)
}

// Engine runs one remapping batch end to end: locate charts, transform
// configs, stage suggested revisions.
type Engine struct {
	charts      repository.ChartsRepo
	variables   repository.VariablesRepo
	registry    SchemaFetcher
	transformer *transformer.Transformer
	stager      *stager.Stager
	workers     int
	logger      *zap.Logger
}

func NewEngine(
	charts repository.ChartsRepo,
	variables repository.VariablesRepo,
	registry SchemaFetcher,
	tf *transformer.Transformer,
	st *stager.Stager,
	workers int,
	logger *zap.Logger,
) *Engine {
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		charts:      charts,
		variables:   variables,
		registry:    registry,
		transformer: tf,
		stager:      st,
		workers:     workers,
		logger:      logger,
	}
}

// RunOptions is the input of one engine run.
type RunOptions struct {
	Mapping models.IndicatorMapping
	// ChartIDs bypasses discovery when set.
	ChartIDs []int64
}

// StagedChart is a chart whose revision was written for review.
type StagedChart struct {
	ChartID    int64
	RevisionID int64
	Warnings   []string
}

// SkippedChart is a chart left untouched, with the reason.
type SkippedChart struct {
	ChartID int64
	Reason  string
}

// RunReport is the outcome of one run, split into the three buckets
// operators triage differently.
type RunReport struct {
	RunID          string
	ChartsExamined int
	Staged         []StagedChart
	Skipped        []SkippedChart
	Conflicts      []stager.Conflict
}

type chartOutcome struct {
	revision *models.SuggestedRevision
	warnings []string
	skipped  *SkippedChart
}

// SuggestRevisions executes a full run. Schema and metadata failures abort
// the run before anything is staged; per-chart failures become skips.
func (e *Engine) SuggestRevisions(ctx context.Context, opts RunOptions) (*RunReport, error) {
	report := &RunReport{RunID: uuid.NewString()}
	log := e.logger.With(zap.String("run_id", report.RunID))

	if len(opts.Mapping) == 0 {
		return report, nil
	}

	doc, err := e.registry.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	var charts []models.Chart
	if len(opts.ChartIDs) > 0 {
		charts, err = e.charts.LoadCharts(ctx, opts.ChartIDs)
	} else {
		charts, err = e.charts.FindChartsByVariableIDs(ctx, opts.Mapping.OldIDs())
	}
	if err != nil {
		return nil, fmt.Errorf("locate charts: %w", err)
	}
	report.ChartsExamined = len(charts)
	log.Info("Located charts for remapping",
		zap.Int("charts", len(charts)),
		zap.Int("mapping_size", len(opts.Mapping)),
	)
	if len(charts) == 0 {
		return report, nil
	}

	ranges, err := e.loadYearRanges(ctx, charts, opts.Mapping)
	if err != nil {
		return nil, err
	}

	outcomes := make([]chartOutcome, len(charts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, chart := range charts {
		g.Go(func() error {
			outcomes[i] = e.processChart(gctx, chart, opts.Mapping, ranges, doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	revisions := []*models.SuggestedRevision{}
	staged := map[int64]StagedChart{}
	for _, out := range outcomes {
		if out.skipped != nil {
			report.Skipped = append(report.Skipped, *out.skipped)
			continue
		}
		revisions = append(revisions, out.revision)
		staged[out.revision.ChartID] = StagedChart{
			ChartID:  out.revision.ChartID,
			Warnings: out.warnings,
		}
	}
	sort.Slice(revisions, func(i, j int) bool { return revisions[i].ChartID < revisions[j].ChartID })

	if err := e.stager.SubmitBatch(ctx, revisions); err != nil {
		var conflictErr *stager.ConflictError
		if errors.As(err, &conflictErr) && conflictErr.PostInsert {
			// The batch is persisted; only the conflicting charts need
			// manual resolution.
			report.Conflicts = conflictErr.Conflicts
			for _, c := range conflictErr.Conflicts {
				delete(staged, c.ChartID)
			}
		} else {
			return nil, err
		}
	}

	for _, rev := range revisions {
		if sc, ok := staged[rev.ChartID]; ok {
			sc.RevisionID = rev.ID
			report.Staged = append(report.Staged, sc)
		}
	}
	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i].ChartID < report.Skipped[j].ChartID })

	log.Info("Run finished",
		zap.Int("staged", len(report.Staged)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("conflicts", len(report.Conflicts)),
	)
	return report, nil
}

// loadYearRanges bulk-fetches coverage metadata for every indicator the
// batch touches, old and new, in a single query per run.
func (e *Engine) loadYearRanges(ctx context.Context, charts []models.Chart, mapping models.IndicatorMapping) (*mapper.Mapper, error) {
	seen := map[int]bool{}
	ids := []int{}
	add := func(id int) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, chart := range charts {
		for _, id := range chartIndicatorIDs(chart.Config) {
			add(id)
			add(mapping.Apply(id))
		}
	}

	ranges, err := e.variables.YearRanges(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}
	return mapper.New(ranges), nil
}

// chartIndicatorIDs lists every indicator a chart references, including a
// column-sort binding.
func chartIndicatorIDs(cfg *models.ChartConfig) []int {
	ids := cfg.VariableIDs()
	if cfg.SortColumnSlug != nil {
		if id, err := strconv.Atoi(*cfg.SortColumnSlug); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (e *Engine) processChart(ctx context.Context, chart models.Chart, mapping models.IndicatorMapping, ranges *mapper.Mapper, doc *schema.Document) chartOutcome {
	skip := func(reason string) chartOutcome {
		e.logger.Warn("Skipping chart",
			zap.Int64("chart_id", chart.ID),
			zap.String("reason", reason),
		)
		return chartOutcome{skipped: &SkippedChart{ChartID: chart.ID, Reason: reason}}
	}

	chartMapping := mapper.Slice(mapping, chartIndicatorIDs(chart.Config))

	normalized, err := schema.SetDefaults(chart.Config, doc)
	if err != nil {
		return skip(fmt.Sprintf("normalize config: %v", err))
	}
	if err := doc.Validate(ctx, normalized); err != nil {
		return skip(err.Error())
	}

	result, err := e.transformer.Transform(normalized, chartMapping, ranges)
	if err != nil {
		return skip(err.Error())
	}

	suggested, err := schema.RemoveDefaults(result.Config, doc)
	if err != nil {
		return skip(fmt.Sprintf("denormalize config: %v", err))
	}

	rev, err := e.stager.Stage(chart, suggested)
	if err != nil {
		return skip(err.Error())
	}
	if rev == nil {
		return skip("config unchanged")
	}
	return chartOutcome{revision: rev, warnings: result.Warnings}
}
