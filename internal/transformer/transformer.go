package transformer

import (
	"errors"
	"fmt"

	"chart-revisor/internal/mapper"
	"chart-revisor/internal/models"

	"go.uber.org/zap"
)

var (
	// ErrMissingSortColumnSlug means sortBy is "column" but no
	// sortColumnSlug is present. The chart is skipped.
	ErrMissingSortColumnSlug = errors.New("sortBy is column but sortColumnSlug is missing")

	// ErrMalformedSortColumnSlug means sortColumnSlug does not parse as an
	// indicator id. The chart is skipped.
	ErrMalformedSortColumnSlug = errors.New("sortColumnSlug is not an indicator id")
)

// Transformer rewrites chart configs for an indicator remapping. It is pure:
// the input config is never mutated, and the same inputs always produce the
// same output.
type Transformer struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Transformer {
	return &Transformer{logger: logger}
}

// Result is a transformed config plus the warnings accumulated while
// producing it.
type Result struct {
	Config   *models.ChartConfig
	Warnings []string
}

// pass carries one chart through the step pipeline. orig stays read-only so
// steps that need pre-substitution indicator ids can still see them.
type pass struct {
	cfg      *models.ChartConfig
	orig     *models.ChartConfig
	mapping  models.IndicatorMapping
	ranges   *mapper.Mapper
	warnings []string
}

func (p *pass) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (t *Transformer) steps() []struct {
	name string
	fn   func(*pass) error
} {
	return []struct {
		name string
		fn   func(*pass) error
	}{
		{"map_tab", applyMapTab},
		{"dimensions", applyDimensions},
		{"sort_column", applySortColumn},
		{"time_range", applyTimeRange},
		{"available_entities", applyAvailableEntities},
	}
}

// Transform runs the ordered step pipeline over a copy of cfg. Each step may
// no-op; a step error aborts the chart (never the batch).
func (t *Transformer) Transform(cfg *models.ChartConfig, mapping models.IndicatorMapping, ranges *mapper.Mapper) (*Result, error) {
	work, err := cfg.Clone()
	if err != nil {
		return nil, fmt.Errorf("clone config of chart %d: %w", cfg.ID, err)
	}

	p := &pass{cfg: work, orig: cfg, mapping: mapping, ranges: ranges}
	for _, step := range t.steps() {
		if err := step.fn(p); err != nil {
			return nil, fmt.Errorf("step %s: %w", step.name, err)
		}
	}

	for _, w := range p.warnings {
		t.logger.Warn("Chart transform warning",
			zap.Int64("chart_id", cfg.ID),
			zap.String("warning", w),
		)
	}
	return &Result{Config: p.cfg, Warnings: p.warnings}, nil
}
