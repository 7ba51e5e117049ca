package transformer

import (
	"regexp"
	"strconv"

	"chart-revisor/internal/models"
)

var yearPattern = regexp.MustCompile(`\b[12][0-9]{3}\b`)

// applyTimeRange reconciles minTime/maxTime with the remapped indicators'
// data coverage. Rules, in order:
//   - a 4-digit year in the title or subtitle that matches the current
//     minTime/maxTime is treated as author intent: skip everything, warn;
//   - a range that collapses to a single anchored point follows that anchor
//     to the matching extreme of the new coverage;
//   - otherwise literal bounds move to the new extremes, sentinels stay.
//
// The step never introduces a minTime/maxTime key that was absent before.
func applyTimeRange(p *pass) error {
	if p.cfg.MinTime == nil && p.cfg.MaxTime == nil {
		return nil
	}

	oldIDs := p.orig.VariableIDs()
	if len(oldIDs) == 0 {
		return nil
	}
	newIDs := make([]int, len(oldIDs))
	for i, id := range oldIDs {
		newIDs[i] = p.mapping.Apply(id)
	}

	oldRange, err := p.ranges.YearRangeUnion(oldIDs)
	if err != nil {
		return err
	}
	newRange, err := p.ranges.YearRangeUnion(newIDs)
	if err != nil {
		return err
	}

	if year, found := hardcodedYear(p.cfg); found {
		p.warnf("title or subtitle hardcodes year %d matching the chart's time range, leaving times unchanged", year)
		return nil
	}

	if anchorAtMin, ok := singleAnchor(p.cfg.MinTime, p.cfg.MaxTime, oldRange); ok {
		applyAnchor(p, anchorAtMin, newRange)
		return nil
	}

	// Genuine range: literal bounds follow the new coverage; sentinel bounds
	// already mean "current extreme" and need no rewrite.
	if p.cfg.MinTime != nil && !p.cfg.MinTime.IsEarliest() && newRange.MinYear != nil {
		if oldRange.MinYear != nil && *newRange.MinYear > *oldRange.MinYear {
			p.warnf("new indicators start at %d, later than the old %d; data coverage shrank", *newRange.MinYear, *oldRange.MinYear)
		}
		p.cfg.MinTime = models.YearBound(*newRange.MinYear)
	}
	if p.cfg.MaxTime != nil && !p.cfg.MaxTime.IsLatest() && newRange.MaxYear != nil {
		if oldRange.MaxYear != nil && *newRange.MaxYear < *oldRange.MaxYear {
			p.warnf("new indicators end at %d, earlier than the old %d; data coverage shrank", *newRange.MaxYear, *oldRange.MaxYear)
		}
		p.cfg.MaxTime = models.YearBound(*newRange.MaxYear)
	}
	return nil
}

// hardcodedYear reports a 4-digit year appearing in the title or subtitle
// that equals the current literal minTime or maxTime.
func hardcodedYear(cfg *models.ChartConfig) (int, bool) {
	var prose string
	if cfg.Title != nil {
		prose = *cfg.Title
	}
	if cfg.Subtitle != nil {
		prose += " " + *cfg.Subtitle
	}
	for _, match := range yearPattern.FindAllString(prose, -1) {
		year, err := strconv.Atoi(match)
		if err != nil {
			continue
		}
		if cfg.MinTime.IsYear() && cfg.MinTime.Year == year {
			return year, true
		}
		if cfg.MaxTime.IsYear() && cfg.MaxTime.Year == year {
			return year, true
		}
	}
	return 0, false
}

// resolveBound turns a time bound into a concrete year against the old
// coverage. Sentinels without a matching extreme do not resolve.
func resolveBound(t *models.TimeBound, oldRange models.YearRange) (int, bool) {
	switch {
	case t.IsYear():
		return t.Year, true
	case t.IsEarliest() && oldRange.MinYear != nil:
		return *oldRange.MinYear, true
	case t.IsLatest() && oldRange.MaxYear != nil:
		return *oldRange.MaxYear, true
	}
	return 0, false
}

// singleAnchor detects a time range that is really a single anchored point:
// minTime equals maxTime, or one bound is a sentinel and the other lands on
// the extreme that sentinel resolves to. The anchor side is chosen by
// numeric distance to the old extremes; a tie anchors at the max, the
// behavior the source updater documented and shipped.
func singleAnchor(min, max *models.TimeBound, oldRange models.YearRange) (anchorAtMin bool, ok bool) {
	if min == nil || max == nil {
		return false, false
	}

	vMin, okMin := resolveBound(min, oldRange)
	vMax, okMax := resolveBound(max, oldRange)
	if !okMin || !okMax {
		return false, false
	}

	point := min.Equal(max) || vMin == vMax
	if !point {
		return false, false
	}
	if oldRange.MinYear == nil || oldRange.MaxYear == nil {
		return false, false
	}

	v := vMin
	distMin := abs(v - *oldRange.MinYear)
	distMax := abs(v - *oldRange.MaxYear)
	return distMin < distMax, true
}

// applyAnchor moves both bounds to the anchored extreme of the new
// coverage. An absent new extreme leaves the chart untouched with a
// warning, since there is nothing to anchor to yet.
func applyAnchor(p *pass, anchorAtMin bool, newRange models.YearRange) {
	if anchorAtMin {
		if newRange.MinYear == nil {
			p.warnf("anchored at the earliest year but new indicators have no data yet, leaving times unchanged")
			return
		}
		p.cfg.MinTime = models.YearBound(*newRange.MinYear)
		p.cfg.MaxTime = models.YearBound(*newRange.MinYear)
		return
	}
	if newRange.MaxYear == nil {
		p.warnf("anchored at the latest year but new indicators have no data yet, leaving times unchanged")
		return
	}
	p.cfg.MinTime = models.YearBound(*newRange.MaxYear)
	p.cfg.MaxTime = models.YearBound(*newRange.MaxYear)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
