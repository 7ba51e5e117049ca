package models

// IndicatorMapping maps old indicator ids to their replacements. Keys are
// unique; values may collide with each other or with keys.
type IndicatorMapping map[int]int

// OldIDs returns the mapping keys.
func (m IndicatorMapping) OldIDs() []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return ids
}

// Apply returns the replacement for id, or id itself when unmapped.
func (m IndicatorMapping) Apply(id int) int {
	if newID, ok := m[id]; ok {
		return newID
	}
	return id
}

// YearRange is the data coverage of one indicator. A bound is nil when the
// indicator has no data yet.
type YearRange struct {
	IndicatorID int
	MinYear     *int
	MaxYear     *int
}
