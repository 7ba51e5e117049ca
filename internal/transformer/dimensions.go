package transformer

import "strconv"

// applyDimensions substitutes every mapped dimension binding. Dimensions
// bound to unmapped indicators pass through unchanged.
func applyDimensions(p *pass) error {
	for i := range p.cfg.Dimensions {
		if newID, ok := p.mapping[p.cfg.Dimensions[i].VariableID]; ok {
			p.cfg.Dimensions[i].VariableID = newID
		}
	}
	return nil
}

// applySortColumn rewrites a column-sort binding. sortColumnSlug stores the
// indicator id as a string.
func applySortColumn(p *pass) error {
	if p.cfg.SortBy == nil || *p.cfg.SortBy != "column" {
		return nil
	}
	if p.cfg.SortColumnSlug == nil || *p.cfg.SortColumnSlug == "" {
		return ErrMissingSortColumnSlug
	}
	id, err := strconv.Atoi(*p.cfg.SortColumnSlug)
	if err != nil {
		return ErrMalformedSortColumnSlug
	}
	if newID, ok := p.mapping[id]; ok {
		slug := strconv.Itoa(newID)
		p.cfg.SortColumnSlug = &slug
	}
	return nil
}

// applyAvailableEntities is an extension point for recomputing the chart's
// available-entities list after remapping. Grapher recomputes the list when
// an approved config is pushed live, so the engine leaves it alone.
func applyAvailableEntities(p *pass) error {
	return nil
}
