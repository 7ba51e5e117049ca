package transformer

import (
	"testing"

	"chart-revisor/internal/mapper"
	"chart-revisor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scenarios use indicator 1 (old) remapped to 2 (new); coverage per
// testRanges is old=[1990,2020], new=[1995,2023].
func transformTimes(t *testing.T, rawCfg string, ranges *mapper.Mapper) *Result {
	t.Helper()
	cfg := cfgFromJSON(t, rawCfg)
	tf := New(zap.NewNop())
	result, err := tf.Transform(cfg, models.IndicatorMapping{1: 2}, ranges)
	require.NoError(t, err)
	return result
}

func TestBothEarliestAnchorsAtNewMin(t *testing.T) {
	result := transformTimes(t, `{
		"id": 1, "version": 1,
		"minTime": "earliest", "maxTime": "earliest",
		"dimensions": [{"property": "y", "variableId": 1}]
	}`, testRanges())

	assert.Equal(t, 1995, result.Config.MinTime.Year)
	assert.Equal(t, 1995, result.Config.MaxTime.Year)
}

func TestEqualLiteralYearsAnchorByDistance(t *testing.T) {
	// 2000 is 10 from the old min and 20 from the old max, so the point is
	// anchored at the min and follows the new min.
	result := transformTimes(t, `{
		"id": 1, "version": 1,
		"minTime": 2000, "maxTime": 2000,
		"dimensions": [{"property": "y", "variableId": 1}]
	}`, testRanges())

	assert.Equal(t, 1995, result.Config.MinTime.Year)
	assert.Equal(t, 1995, result.Config.MaxTime.Year)
}

func TestAnchorDistanceTieGoesToMax(t *testing.T) {
	// 2005 is equidistant from 1990 and 2020; ties anchor at the max.
	result := transformTimes(t, `{
		"id": 1, "version": 1,
		"minTime": 2005, "maxTime": 2005,
		"dimensions": [{"property": "y", "variableId": 1}]
	}`, testRanges())

	assert.Equal(t, 2023, result.Config.MinTime.Year)
	assert.Equal(t, 2023, result.Config.MaxTime.Year)
}

func TestPointAnchoredAtMaxFollowsNewMax(t *testing.T) {
	result := transformTimes(t, `{
		"id": 1, "version": 1,
		"minTime": 2019, "maxTime": 2019,
		"dimensions": [{"property": "y", "variableId": 1}]
	}`, testRanges())

	assert.Equal(t, 2023, result.Config.MinTime.Year)
	assert.Equal(t, 2023, result.Config.MaxTime.Year)
}

func TestGenuineRangeKeepsSentinelMax(t *testing.T) {
	ranges := mapper.New([]models.YearRange{
		{IndicatorID: 1, MinYear: intPtr(1990), MaxYear: intPtr(2020)},
		{IndicatorID: 2, MinYear: intPtr(1990), MaxYear: intPtr(2023)},
	})
	result := transformTimes(t, `{
		"id": 1, "version": 1,
		"minTime": 1990, "maxTime": "latest",
		"dimensions": [{"property": "y", "variableId": 1}]
	}`, ranges)

	assert.Equal(t, 1990, result.Config.MinTime.Year)
	assert.True(t, result.Config.MaxTime.IsLatest(), "sentinel max stays untouched")
	assert.Empty(t, result.Warnings)
}

func TestHardcodedYearInTitleSkipsTimeUpdates(t *testing.T) {
	result := transformTimes(t, `{
		"id": 1, "version": 1,
		"title": "Share of population in poverty since 1990",
		"minTime": 1990, "maxTime": 2020,
		"dimensions": [{"property": "y", "variableId": 1}]
	}`, testRanges())

	assert.Equal(t, 1990, result.Config.MinTime.Year)
	assert.Equal(t, 2020, result.Config.MaxTime.Year)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "hardcodes year 1990")
}

func TestHardcodedYearInSubtitle(t *testing.T) {
	result := transformTimes(t, `{
		"id": 1, "version": 1,
		"subtitle": "Measured from 2020 onwards.",
		"minTime": 1990, "maxTime": 2020,
		"dimensions": [{"property": "y", "variableId": 1}]
	}`, testRanges())

	assert.Equal(t, 1990, result.Config.MinTime.Year)
	assert.Equal(t, 2020, result.Config.MaxTime.Year)
	assert.NotEmpty(t, result.Warnings)
}

func TestUnrelatedYearInTitleDoesNotBlockUpdates(t *testing.T) {
	result := transformTimes(t, `{
		"id": 1, "version": 1,
		"title": "Population compared to the 1950 census",
		"minTime": 1990, "maxTime": 2020,
		"dimensions": [{"property": "y", "variableId": 1}]
	}`, testRanges())

	assert.Equal(t, 1995, result.Config.MinTime.Year)
	assert.Equal(t, 2023, result.Config.MaxTime.Year)
}

func TestShrunkCoverageWarns(t *testing.T) {
	result := transformTimes(t, `{
		"id": 1, "version": 1,
		"minTime": 1992, "maxTime": 2019,
		"dimensions": [{"property": "y", "variableId": 1}]
	}`, testRanges())

	// new min 1995 > old min 1990: the lower end of the data shrank
	assert.Equal(t, 1995, result.Config.MinTime.Year)
	assert.Equal(t, 2023, result.Config.MaxTime.Year)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "coverage shrank")
}

func TestAbsentTimeKeysAreNeverIntroduced(t *testing.T) {
	result := transformTimes(t, `{
		"id": 1, "version": 1,
		"dimensions": [{"property": "y", "variableId": 1}]
	}`, testRanges())

	assert.Nil(t, result.Config.MinTime)
	assert.Nil(t, result.Config.MaxTime)
}

func TestOnlyMaxTimePresent(t *testing.T) {
	result := transformTimes(t, `{
		"id": 1, "version": 1,
		"maxTime": 2019,
		"dimensions": [{"property": "y", "variableId": 1}]
	}`, testRanges())

	assert.Nil(t, result.Config.MinTime)
	assert.Equal(t, 2023, result.Config.MaxTime.Year)
}

func TestSentinelMixedPointAnchors(t *testing.T) {
	// minTime "earliest" resolves to the old min; a literal maxTime equal to
	// that same year collapses the range to a point anchored at the min.
	result := transformTimes(t, `{
		"id": 1, "version": 1,
		"minTime": "earliest", "maxTime": 1990,
		"dimensions": [{"property": "y", "variableId": 1}]
	}`, testRanges())

	assert.Equal(t, 1995, result.Config.MinTime.Year)
	assert.Equal(t, 1995, result.Config.MaxTime.Year)
}

func TestNoDataNewIndicatorLeavesAnchorUntouched(t *testing.T) {
	ranges := mapper.New([]models.YearRange{
		{IndicatorID: 1, MinYear: intPtr(1990), MaxYear: intPtr(2020)},
		{IndicatorID: 2},
	})
	result := transformTimes(t, `{
		"id": 1, "version": 1,
		"minTime": 2000, "maxTime": 2000,
		"dimensions": [{"property": "y", "variableId": 1}]
	}`, ranges)

	assert.Equal(t, 2000, result.Config.MinTime.Year)
	assert.Equal(t, 2000, result.Config.MaxTime.Year)
	assert.NotEmpty(t, result.Warnings)
}

func TestUnknownIndicatorFailsChart(t *testing.T) {
	ranges := mapper.New([]models.YearRange{
		{IndicatorID: 1, MinYear: intPtr(1990), MaxYear: intPtr(2020)},
	})
	cfg := cfgFromJSON(t, `{
		"id": 1, "version": 1,
		"minTime": 2000, "maxTime": 2010,
		"dimensions": [{"property": "y", "variableId": 1}]
	}`)

	tf := New(zap.NewNop())
	_, err := tf.Transform(cfg, models.IndicatorMapping{1: 2}, ranges)
	require.Error(t, err)
	assert.ErrorIs(t, err, mapper.ErrUnknownIndicator)
}
