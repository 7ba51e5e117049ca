package transformer

import (
	"strconv"

	"chart-revisor/internal/models"
)

// applyMapTab substitutes the map-tab indicator binding and reconciles the
// map's time slider with the new indicator's data coverage. A chart without
// a map tab passes through untouched.
func applyMapTab(p *pass) error {
	if !p.cfg.HasMap() {
		return nil
	}

	oldID, ok := p.cfg.MapIndicatorID()
	if !ok {
		return nil
	}
	newID, mapped := p.mapping[oldID]
	if !mapped {
		return nil
	}

	if p.cfg.Map == nil {
		p.cfg.Map = &models.MapConfig{}
	}
	slug := strconv.Itoa(newID)
	p.cfg.Map.ColumnSlug = &slug

	// A literal map year outside the new coverage either becomes the
	// "latest" sentinel (at or past the new max) or is clamped up to the
	// new min. Sentinels stay as they are.
	if p.cfg.Map.Time == nil || !p.cfg.Map.Time.IsYear() {
		return nil
	}
	newRange, err := p.ranges.YearRange(newID)
	if err != nil {
		return err
	}
	year := p.cfg.Map.Time.Year
	switch {
	case newRange.MaxYear != nil && year >= *newRange.MaxYear:
		p.cfg.Map.Time = models.LatestBound()
	case newRange.MinYear != nil && year <= *newRange.MinYear:
		p.cfg.Map.Time = models.YearBound(*newRange.MinYear)
	}
	return nil
}
