package schema

import (
	"reflect"

	"chart-revisor/internal/models"
)

// Chart types whose time slider has no meaningful lower bound, so the
// minTime backfill is skipped for them.
var noMinTimeBackfill = map[string]bool{
	"StackedDiscreteBar": true,
	"Marimekko":          true,
	"DiscreteBar":        true,
}

// SetDefaults returns a copy of cfg with every absent schema default filled
// in. Additionally, when the resulting chart type wants a time slider and
// minTime is still absent, it is backfilled with the "earliest" sentinel;
// the schema declares no default for minTime so this is the only way the
// transformer can see the field's effective value.
func SetDefaults(cfg *models.ChartConfig, doc *Document) (*models.ChartConfig, error) {
	m, err := cfg.AsMap()
	if err != nil {
		return nil, err
	}

	for key, def := range doc.Defaults() {
		if _, ok := m[key]; !ok {
			m[key] = def
		}
	}

	chartType, _ := m["type"].(string)
	if chartType == "" {
		chartType = "LineChart"
	}
	if _, ok := m["minTime"]; !ok && !noMinTimeBackfill[chartType] {
		m["minTime"] = models.TimeEarliest
	}

	return models.ConfigFromMap(m)
}

// RemoveDefaults returns a copy of cfg with every key equal to its schema
// default deleted. This is a canonicalization pass, not a byte-level inverse
// of SetDefaults: RemoveDefaults(SetDefaults(c)) converges to a canonical
// non-default form.
func RemoveDefaults(cfg *models.ChartConfig, doc *Document) (*models.ChartConfig, error) {
	m, err := cfg.AsMap()
	if err != nil {
		return nil, err
	}

	for key, def := range doc.Defaults() {
		if v, ok := m[key]; ok && reflect.DeepEqual(v, def) {
			delete(m, key)
		}
	}

	return models.ConfigFromMap(m)
}
