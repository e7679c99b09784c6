package dataset

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DefaultResultCap bounds how many distinct values or tuples a resolution
// may carry so the UI stays interactive on high-cardinality columns.
const DefaultResultCap = 100000

// Resolution is the resolved set of selectable value combinations for a set
// of group columns. Truncated is set when the true cardinality exceeded the
// cap, so a downstream "select all" can still collapse to the sentinel
// instead of only covering the visible subset.
type Resolution struct {
	Combinations []string     `json:"combinations"`
	Rows         []GroupedRow `json:"rows"`
	Truncated    bool         `json:"truncated"`
}

// Resolver computes the distinct value combinations available for a set of
// group columns, via whichever Querier backs the active source. Query
// failures resolve to an empty result and a log line, never an error: the
// caller treats empty as "no values yet" and retries on the next
// interaction.
type Resolver struct {
	querier Querier
	cache   *Cache
	logger  *zap.Logger
	cap     int
}

// NewResolver creates a resolver over querier. resultCap <= 0 uses
// DefaultResultCap.
func NewResolver(querier Querier, cache *Cache, resultCap int, logger *zap.Logger) *Resolver {
	if resultCap <= 0 {
		resultCap = DefaultResultCap
	}
	return &Resolver{
		querier: querier,
		cache:   cache,
		logger:  logger,
		cap:     resultCap,
	}
}

// CacheKey derives the cache and in-flight key for a resolution request.
// sourceKey identifies the data-source state (source family plus picked
// items) so a stale result for a superseded selection never matches.
func CacheKey(sourceKey string, groupCols, displayCols []string) string {
	return sourceKey + "|" + strings.Join(groupCols, ",") + "|" + strings.Join(displayCols, ",")
}

// Resolve returns the distinct value combinations for groupCols. With one
// group column: sorted distinct non-null values. With several: distinct
// tuples comma-joined in column order, each carrying at most one
// representative value per display column (first seen wins).
func (r *Resolver) Resolve(ctx context.Context, sourceKey string, items, groupCols, displayCols []string) Resolution {
	if len(groupCols) == 0 {
		return Resolution{}
	}

	key := CacheKey(sourceKey, groupCols, displayCols)
	if r.cache != nil {
		if res, ok := r.cache.Get(key); ok {
			return res
		}
		return r.cache.Do(key, func() (Resolution, bool) {
			return r.resolve(ctx, items, groupCols, displayCols)
		})
	}
	res, _ := r.resolve(ctx, items, groupCols, displayCols)
	return res
}

func (r *Resolver) resolve(ctx context.Context, items, groupCols, displayCols []string) (Resolution, bool) {
	rows, err := r.querier.GroupBy(ctx, GroupQuery{
		Items:          items,
		GroupColumns:   groupCols,
		DisplayColumns: displayCols,
		Limit:          r.cap + 1,
	})
	if err != nil {
		r.logger.Warn("Group-by query failed, resolving to empty",
			zap.Error(err),
			zap.Strings("group_columns", groupCols))
		return Resolution{}, false
	}

	res := Resolution{}
	seen := make(map[string]bool)
	for _, row := range rows {
		values := make([]string, 0, len(groupCols))
		null := false
		for _, col := range groupCols {
			v, ok := row[col]
			if !ok || v == "" {
				null = true
				break
			}
			values = append(values, v)
		}
		if null {
			continue
		}
		if len(groupCols) == 1 && isInternalMarker(values[0]) {
			continue
		}

		combo := strings.Join(values, ", ")
		if seen[combo] {
			continue
		}
		if len(res.Combinations) >= r.cap {
			res.Truncated = true
			break
		}
		seen[combo] = true
		res.Combinations = append(res.Combinations, combo)

		grouped := GroupedRow{
			GroupValues:   make(map[string]string, len(groupCols)),
			DisplayValues: make(map[string]string, len(displayCols)),
		}
		for i, col := range groupCols {
			grouped.GroupValues[col] = values[i]
		}
		for _, col := range displayCols {
			if v, ok := row[col]; ok && v != "" {
				grouped.DisplayValues[col] = v
			}
		}
		res.Rows = append(res.Rows, grouped)
	}

	sort.Slice(res.Rows, func(i, j int) bool {
		return rowKey(res.Rows[i], groupCols) < rowKey(res.Rows[j], groupCols)
	})
	sort.Strings(res.Combinations)

	return res, true
}

func rowKey(row GroupedRow, groupCols []string) string {
	values := make([]string, 0, len(groupCols))
	for _, col := range groupCols {
		values = append(values, row.GroupValues[col])
	}
	return strings.Join(values, ", ")
}

// isInternalMarker filters out values that look like internal placeholder
// markers rather than real data, e.g. "__pending__".
func isInternalMarker(v string) bool {
	return len(v) < 20 && strings.HasPrefix(v, "__") && strings.HasSuffix(v, "__")
}
