package mapper

import (
	"testing"

	"chart-revisor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestSlice(t *testing.T) {
	mapping := models.IndicatorMapping{1: 10, 2: 20, 3: 30}

	sub := Slice(mapping, []int{1, 3, 99})
	assert.Equal(t, models.IndicatorMapping{1: 10, 3: 30}, sub)

	assert.Empty(t, Slice(mapping, nil))
	assert.Empty(t, Slice(mapping, []int{99}))
}

func TestYearRangeLookup(t *testing.T) {
	m := New([]models.YearRange{
		{IndicatorID: 1, MinYear: intPtr(1990), MaxYear: intPtr(2020)},
		{IndicatorID: 2},
	})

	r, err := m.YearRange(1)
	require.NoError(t, err)
	assert.Equal(t, 1990, *r.MinYear)
	assert.Equal(t, 2020, *r.MaxYear)

	r, err = m.YearRange(2)
	require.NoError(t, err)
	assert.Nil(t, r.MinYear, "indicator with no data yet has open bounds")
	assert.Nil(t, r.MaxYear)

	_, err = m.YearRange(3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownIndicator)
}

func TestYearRangeUnion(t *testing.T) {
	m := New([]models.YearRange{
		{IndicatorID: 1, MinYear: intPtr(1990), MaxYear: intPtr(2000)},
		{IndicatorID: 2, MinYear: intPtr(1950), MaxYear: intPtr(2020)},
		{IndicatorID: 3},
	})

	union, err := m.YearRangeUnion([]int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 1950, *union.MinYear)
	assert.Equal(t, 2020, *union.MaxYear)

	// open bounds do not constrain the union
	union, err = m.YearRangeUnion([]int{1, 3})
	require.NoError(t, err)
	assert.Equal(t, 1990, *union.MinYear)
	assert.Equal(t, 2000, *union.MaxYear)

	// any unknown id fails the whole union
	_, err = m.YearRangeUnion([]int{1, 42})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownIndicator)
}
