package dataset

import "context"

// Row is one projected result row, values string-coerced.
type Row map[string]string

// GroupedRow pairs a group-value combination with the representative display
// values that accompany it. Regenerated whenever group columns or the
// dataset selection change; used for search/autocomplete over combinations.
type GroupedRow struct {
	GroupValues   map[string]string `json:"group_values"`
	DisplayValues map[string]string `json:"display_values"`
}

// GroupQuery describes a group-by style query against the active dataset.
// Predicates carries materialized IN-lists per column; SelectAll marks
// sentinel columns that apply no predicate at all. Display columns never
// appear in Predicates.
type GroupQuery struct {
	Items          []string
	GroupColumns   []string
	DisplayColumns []string
	Predicates     map[string][]string
	SelectAll      map[string]bool
	Limit          int
}

// Querier executes group-by queries. Implemented by the SQL-backed source
// (engine pushdown) and the in-memory file-backed source (chunked scan).
// Both produce the same output shape.
type Querier interface {
	GroupBy(ctx context.Context, q GroupQuery) ([]Row, error)
}
