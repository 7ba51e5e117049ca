package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Sentinel time values accepted by grapher time fields. They mean "use the
// current data bounds" instead of a literal year.
const (
	TimeEarliest = "earliest"
	TimeLatest   = "latest"
)

// TimeBound is a grapher time slider value: either a literal year or one of
// the sentinels "earliest"/"latest". Years marshal as JSON numbers,
// sentinels as strings.
type TimeBound struct {
	Year     int
	Sentinel string
}

func YearBound(year int) *TimeBound      { return &TimeBound{Year: year} }
func EarliestBound() *TimeBound          { return &TimeBound{Sentinel: TimeEarliest} }
func LatestBound() *TimeBound            { return &TimeBound{Sentinel: TimeLatest} }
func (t *TimeBound) IsYear() bool        { return t != nil && t.Sentinel == "" }
func (t *TimeBound) IsEarliest() bool    { return t != nil && t.Sentinel == TimeEarliest }
func (t *TimeBound) IsLatest() bool      { return t != nil && t.Sentinel == TimeLatest }

func (t *TimeBound) Equal(o *TimeBound) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.Year == o.Year && t.Sentinel == o.Sentinel
}

func (t TimeBound) String() string {
	if t.Sentinel != "" {
		return t.Sentinel
	}
	return strconv.Itoa(t.Year)
}

func (t TimeBound) MarshalJSON() ([]byte, error) {
	if t.Sentinel != "" {
		return json.Marshal(t.Sentinel)
	}
	return json.Marshal(t.Year)
}

func (t *TimeBound) UnmarshalJSON(data []byte) error {
	var year int
	if err := json.Unmarshal(data, &year); err == nil {
		*t = TimeBound{Year: year}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid time bound %s", string(data))
	}
	switch s {
	case TimeEarliest, TimeLatest:
		*t = TimeBound{Sentinel: s}
		return nil
	}
	// some stored configs carry years as strings
	if year, err := strconv.Atoi(s); err == nil {
		*t = TimeBound{Year: year}
		return nil
	}
	return fmt.Errorf("invalid time bound %q", s)
}

// Dimension binds a chart role (y, x, size, ...) to an indicator id.
// Unknown keys (display settings etc.) are preserved in Extra.
type Dimension struct {
	Property   string
	VariableID int
	Order      *int
	Extra      map[string]json.RawMessage
}

func (d *Dimension) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Dimension{}
	if v, ok := raw["property"]; ok {
		if err := json.Unmarshal(v, &d.Property); err != nil {
			return err
		}
		delete(raw, "property")
	}
	if v, ok := raw["variableId"]; ok {
		if err := json.Unmarshal(v, &d.VariableID); err != nil {
			return err
		}
		delete(raw, "variableId")
	}
	if v, ok := raw["order"]; ok {
		var order int
		if err := json.Unmarshal(v, &order); err != nil {
			return err
		}
		d.Order = &order
		delete(raw, "order")
	}
	if len(raw) > 0 {
		d.Extra = raw
	}
	return nil
}

func (d Dimension) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.Extra)+3)
	for k, v := range d.Extra {
		out[k] = v
	}
	if d.Property != "" {
		setRaw(out, "property", d.Property)
	}
	setRaw(out, "variableId", d.VariableID)
	if d.Order != nil {
		setRaw(out, "order", *d.Order)
	}
	return json.Marshal(out)
}

// MapConfig is the map-tab section of a chart config. columnSlug holds the
// map indicator id as a string, a grapher storage quirk.
type MapConfig struct {
	ColumnSlug *string
	VariableID *int
	Time       *TimeBound
	TargetYear *int
	Extra      map[string]json.RawMessage
}

func (m *MapConfig) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = MapConfig{}
	if v, ok := raw["columnSlug"]; ok {
		var slug string
		if err := json.Unmarshal(v, &slug); err != nil {
			// tolerate numeric columnSlug in old configs
			var n int
			if err2 := json.Unmarshal(v, &n); err2 != nil {
				return err
			}
			slug = strconv.Itoa(n)
		}
		m.ColumnSlug = &slug
		delete(raw, "columnSlug")
	}
	if v, ok := raw["variableId"]; ok {
		var id int
		if err := json.Unmarshal(v, &id); err != nil {
			return err
		}
		m.VariableID = &id
		delete(raw, "variableId")
	}
	if v, ok := raw["time"]; ok {
		t := &TimeBound{}
		if err := json.Unmarshal(v, t); err != nil {
			return err
		}
		m.Time = t
		delete(raw, "time")
	}
	if v, ok := raw["targetYear"]; ok {
		var year int
		if err := json.Unmarshal(v, &year); err != nil {
			return err
		}
		m.TargetYear = &year
		delete(raw, "targetYear")
	}
	if len(raw) > 0 {
		m.Extra = raw
	}
	return nil
}

func (m MapConfig) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+4)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.ColumnSlug != nil {
		setRaw(out, "columnSlug", *m.ColumnSlug)
	}
	if m.VariableID != nil {
		setRaw(out, "variableId", *m.VariableID)
	}
	if m.Time != nil {
		setRaw(out, "time", m.Time)
	}
	if m.TargetYear != nil {
		setRaw(out, "targetYear", *m.TargetYear)
	}
	return json.Marshal(out)
}

// MapIndicatorID resolves the id bound to the map tab from columnSlug first,
// then variableId.
func (m *MapConfig) MapIndicatorID() (int, bool) {
	if m == nil {
		return 0, false
	}
	if m.ColumnSlug != nil {
		if id, err := strconv.Atoi(*m.ColumnSlug); err == nil {
			return id, true
		}
	}
	if m.VariableID != nil {
		return *m.VariableID, true
	}
	return 0, false
}

// ChartConfig is a grapher chart configuration document. Known fields are
// typed; every other key round-trips untouched through Extra.
type ChartConfig struct {
	ID             int64
	Version        int64
	Type           *string
	Title          *string
	Subtitle       *string
	Slug           *string
	SortBy         *string
	SortColumnSlug *string
	SortOrder      *string
	HasMapTab      *bool
	MinTime        *TimeBound
	MaxTime        *TimeBound
	Dimensions     []Dimension
	Map            *MapConfig
	Extra          map[string]json.RawMessage
}

func (c *ChartConfig) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = ChartConfig{}
	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &c.ID); err != nil {
			return err
		}
		delete(raw, "id")
	}
	if v, ok := raw["version"]; ok {
		if err := json.Unmarshal(v, &c.Version); err != nil {
			return err
		}
		delete(raw, "version")
	}
	for key, dst := range map[string]**string{
		"type":           &c.Type,
		"title":          &c.Title,
		"subtitle":       &c.Subtitle,
		"slug":           &c.Slug,
		"sortBy":         &c.SortBy,
		"sortColumnSlug": &c.SortColumnSlug,
		"sortOrder":      &c.SortOrder,
	} {
		if v, ok := raw[key]; ok {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
			*dst = &s
			delete(raw, key)
		}
	}
	if v, ok := raw["hasMapTab"]; ok {
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			return err
		}
		c.HasMapTab = &b
		delete(raw, "hasMapTab")
	}
	if v, ok := raw["minTime"]; ok {
		t := &TimeBound{}
		if err := json.Unmarshal(v, t); err != nil {
			return err
		}
		c.MinTime = t
		delete(raw, "minTime")
	}
	if v, ok := raw["maxTime"]; ok {
		t := &TimeBound{}
		if err := json.Unmarshal(v, t); err != nil {
			return err
		}
		c.MaxTime = t
		delete(raw, "maxTime")
	}
	if v, ok := raw["dimensions"]; ok {
		dims := []Dimension{}
		if err := json.Unmarshal(v, &dims); err != nil {
			return err
		}
		c.Dimensions = dims
		delete(raw, "dimensions")
	}
	if v, ok := raw["map"]; ok {
		mc := &MapConfig{}
		if err := json.Unmarshal(v, mc); err != nil {
			return err
		}
		c.Map = mc
		delete(raw, "map")
	}
	if len(raw) > 0 {
		c.Extra = raw
	}
	return nil
}

func (c ChartConfig) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(c.Extra)+14)
	for k, v := range c.Extra {
		out[k] = v
	}
	if c.ID != 0 {
		setRaw(out, "id", c.ID)
	}
	if c.Version != 0 {
		setRaw(out, "version", c.Version)
	}
	for key, src := range map[string]*string{
		"type":           c.Type,
		"title":          c.Title,
		"subtitle":       c.Subtitle,
		"slug":           c.Slug,
		"sortBy":         c.SortBy,
		"sortColumnSlug": c.SortColumnSlug,
		"sortOrder":      c.SortOrder,
	} {
		if src != nil {
			setRaw(out, key, *src)
		}
	}
	if c.HasMapTab != nil {
		setRaw(out, "hasMapTab", *c.HasMapTab)
	}
	if c.MinTime != nil {
		setRaw(out, "minTime", c.MinTime)
	}
	if c.MaxTime != nil {
		setRaw(out, "maxTime", c.MaxTime)
	}
	if c.Dimensions != nil {
		setRaw(out, "dimensions", c.Dimensions)
	}
	if c.Map != nil {
		setRaw(out, "map", c.Map)
	}
	return json.Marshal(out)
}

// Clone deep-copies the config through its JSON form.
func (c *ChartConfig) Clone() (*ChartConfig, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	clone := &ChartConfig{}
	if err := json.Unmarshal(data, clone); err != nil {
		return nil, err
	}
	return clone, nil
}

// AsMap renders the config as a generic JSON map.
func (c *ChartConfig) AsMap() (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ConfigFromMap parses a generic JSON map back into a ChartConfig.
func ConfigFromMap(m map[string]any) (*ChartConfig, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	cfg := &ChartConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ChartType returns the chart type, defaulting to LineChart like grapher.
func (c *ChartConfig) ChartType() string {
	if c.Type != nil && *c.Type != "" {
		return *c.Type
	}
	return "LineChart"
}

// HasMap reports whether the chart has its map tab enabled.
func (c *ChartConfig) HasMap() bool {
	return c.HasMapTab != nil && *c.HasMapTab
}

// MapIndicatorID resolves the indicator shown on the map tab: the map's own
// binding when present, else the first dimension.
func (c *ChartConfig) MapIndicatorID() (int, bool) {
	if id, ok := c.Map.MapIndicatorID(); ok {
		return id, true
	}
	if len(c.Dimensions) > 0 {
		return c.Dimensions[0].VariableID, true
	}
	return 0, false
}

// VariableIDs returns every indicator id referenced by the chart, dimensions
// first, then the map binding, deduplicated in encounter order.
func (c *ChartConfig) VariableIDs() []int {
	seen := map[int]bool{}
	ids := []int{}
	for _, d := range c.Dimensions {
		if !seen[d.VariableID] {
			seen[d.VariableID] = true
			ids = append(ids, d.VariableID)
		}
	}
	if c.HasMap() {
		if id, ok := c.MapIndicatorID(); ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func setRaw(m map[string]json.RawMessage, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		// all callers pass marshal-safe values
		panic(fmt.Sprintf("marshal %s: %v", key, err))
	}
	m[key] = data
}
