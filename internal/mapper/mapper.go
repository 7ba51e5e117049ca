package mapper

import (
	"errors"
	"fmt"

	"chart-revisor/internal/models"
)

// ErrUnknownIndicator means an indicator id had no metadata loaded for this
// run. The affected chart is skipped; the run continues.
var ErrUnknownIndicator = errors.New("unknown indicator")

// Slice restricts mapping to the keys present in ids.
func Slice(mapping models.IndicatorMapping, ids []int) models.IndicatorMapping {
	sub := models.IndicatorMapping{}
	for _, id := range ids {
		if newID, ok := mapping[id]; ok {
			sub[id] = newID
		}
	}
	return sub
}

// Mapper resolves year-range metadata for indicator ids. Metadata is loaded
// once per run from a bulk fetch, never per chart.
type Mapper struct {
	ranges map[int]models.YearRange
}

func New(ranges []models.YearRange) *Mapper {
	byID := make(map[int]models.YearRange, len(ranges))
	for _, r := range ranges {
		byID[r.IndicatorID] = r
	}
	return &Mapper{ranges: byID}
}

// YearRange looks up the coverage of a single indicator.
func (m *Mapper) YearRange(id int) (models.YearRange, error) {
	r, ok := m.ranges[id]
	if !ok {
		return models.YearRange{}, fmt.Errorf("%w: id %d", ErrUnknownIndicator, id)
	}
	return r, nil
}

// YearRangeUnion unions the coverage of several indicators: min of mins and
// max of maxes, ignoring absent bounds. Every id must have loaded metadata.
func (m *Mapper) YearRangeUnion(ids []int) (models.YearRange, error) {
	union := models.YearRange{}
	for _, id := range ids {
		r, err := m.YearRange(id)
		if err != nil {
			return models.YearRange{}, err
		}
		if r.MinYear != nil && (union.MinYear == nil || *r.MinYear < *union.MinYear) {
			v := *r.MinYear
			union.MinYear = &v
		}
		if r.MaxYear != nil && (union.MaxYear == nil || *r.MaxYear > *union.MaxYear) {
			v := *r.MaxYear
			union.MaxYear = &v
		}
	}
	return union, nil
}
