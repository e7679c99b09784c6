package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apperrors "datachat/errors"
	"datachat/utils"

	"go.uber.org/zap"
)

// SQLSource answers group-by queries with an engine-pushed GROUP BY against
// a Postgres-backed table (the "matches" dataset). Display columns are
// aggregated with MIN so each tuple carries one representative value.
type SQLSource struct {
	db         *sql.DB
	table      string
	itemColumn string
	logger     *zap.Logger
}

// NewSQLSource creates a source over table. itemColumn, when non-empty, is
// the column constrained by the picked SQL targets (GroupQuery.Items).
func NewSQLSource(db *sql.DB, table, itemColumn string, logger *zap.Logger) *SQLSource {
	return &SQLSource{
		db:         db,
		table:      table,
		itemColumn: itemColumn,
		logger:     logger,
	}
}

// GroupBy builds and runs the pushed-down query. All identifiers are
// validated before interpolation; values only ever travel as placeholders.
func (s *SQLSource) GroupBy(ctx context.Context, q GroupQuery) ([]Row, error) {
	if len(q.GroupColumns) == 0 {
		return nil, apperrors.WrapError(apperrors.ErrInvalidInput, "at least one group column required")
	}
	for _, col := range append(append([]string{}, q.GroupColumns...), q.DisplayColumns...) {
		if !utils.ValidIdentifier(col) {
			return nil, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "invalid column name %q", col)
		}
	}
	if !utils.ValidIdentifier(s.table) {
		return nil, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "invalid table name %q", s.table)
	}

	selects := make([]string, 0, len(q.GroupColumns)+len(q.DisplayColumns))
	groupBy := make([]string, 0, len(q.GroupColumns))
	for _, col := range q.GroupColumns {
		selects = append(selects, fmt.Sprintf("%s::text AS %s", col, col))
		groupBy = append(groupBy, col)
	}
	for _, col := range q.DisplayColumns {
		selects = append(selects, fmt.Sprintf("MIN(%s::text) AS %s", col, col))
	}

	var where []string
	var args []any
	argN := 1
	addIn := func(col string, values []string) {
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = fmt.Sprintf("$%d", argN)
			args = append(args, v)
			argN++
		}
		where = append(where, fmt.Sprintf("%s::text IN (%s)", col, strings.Join(placeholders, ", ")))
	}

	if len(q.Items) > 0 && s.itemColumn != "" {
		addIn(s.itemColumn, q.Items)
	}
	for col, values := range q.Predicates {
		if q.SelectAll[col] || len(values) == 0 {
			continue
		}
		if !utils.ValidIdentifier(col) {
			return nil, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "invalid column name %q", col)
		}
		addIn(col, values)
	}
	for _, col := range q.GroupColumns {
		where = append(where, fmt.Sprintf("%s IS NOT NULL", col))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selects, ", "), s.table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " GROUP BY " + strings.Join(groupBy, ", ")
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrDatasetQuery, err.Error())
	}
	defer rows.Close()

	columns := append(append([]string{}, q.GroupColumns...), q.DisplayColumns...)
	var out []Row
	for rows.Next() {
		scanned := make([]sql.NullString, len(columns))
		targets := make([]any, len(columns))
		for i := range scanned {
			targets[i] = &scanned[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, apperrors.WrapError(apperrors.ErrDatasetQuery, err.Error())
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if scanned[i].Valid {
				row[col] = scanned[i].String
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.WrapError(apperrors.ErrDatasetQuery, err.Error())
	}
	return out, nil
}
