package dataset

import (
	"context"
	"runtime"
	"strings"
	"sync"

	apperrors "datachat/errors"

	"go.uber.org/zap"
)

// MemTable is an uploaded file loaded into memory.
type MemTable struct {
	Name    string
	Columns []string
	Rows    []Row
}

// MemSource is the local full-scan fallback: it answers group-by queries by
// streaming through in-memory rows in bounded chunks, yielding the
// scheduler between chunks so no single query monopolizes a thread.
type MemSource struct {
	mu        sync.RWMutex
	tables    map[string]*MemTable
	chunkSize int
	logger    *zap.Logger
}

// NewMemSource creates an in-memory source. chunkSize bounds how many rows
// are scanned between cooperative yields.
func NewMemSource(chunkSize int, logger *zap.Logger) *MemSource {
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	return &MemSource{
		tables:    make(map[string]*MemTable),
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// AddTable registers or replaces a loaded table.
func (m *MemSource) AddTable(t *MemTable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[t.Name] = t
}

// RemoveTable drops a table, e.g. when its file is deleted.
func (m *MemSource) RemoveTable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, name)
}

// Table returns a registered table by name.
func (m *MemSource) Table(name string) (*MemTable, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[name]
	return t, ok
}

// GroupBy scans the named tables (all tables when Items is empty), applies
// the predicates, and returns the distinct group tuples with first-seen
// display values, mirroring the SQL pushdown's output shape. The scan
// checks for cancellation and yields between chunks.
func (m *MemSource) GroupBy(ctx context.Context, q GroupQuery) ([]Row, error) {
	m.mu.RLock()
	var tables []*MemTable
	if len(q.Items) == 0 {
		for _, t := range m.tables {
			tables = append(tables, t)
		}
	} else {
		for _, name := range q.Items {
			if t, ok := m.tables[name]; ok {
				tables = append(tables, t)
			} else {
				m.mu.RUnlock()
				return nil, apperrors.WrapErrorf(apperrors.ErrNotFound, "table %q not loaded", name)
			}
		}
	}
	m.mu.RUnlock()

	var out []Row
	seen := make(map[string]bool)
	scanned := 0
	for _, t := range tables {
		for _, row := range t.Rows {
			scanned++
			if scanned%m.chunkSize == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				runtime.Gosched()
			}

			if !matches(row, q) {
				continue
			}
			key := tupleKey(row, q.GroupColumns)
			if seen[key] {
				continue
			}
			if q.Limit > 0 && len(out) >= q.Limit {
				return out, nil
			}
			seen[key] = true
			projected := make(Row, len(q.GroupColumns)+len(q.DisplayColumns))
			for _, col := range q.GroupColumns {
				projected[col] = row[col]
			}
			for _, col := range q.DisplayColumns {
				projected[col] = row[col]
			}
			out = append(out, projected)
		}
	}
	return out, nil
}

func tupleKey(row Row, cols []string) string {
	var b strings.Builder
	for i, col := range cols {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(row[col])
	}
	return b.String()
}

func matches(row Row, q GroupQuery) bool {
	for col, allowed := range q.Predicates {
		if q.SelectAll[col] {
			continue
		}
		if len(allowed) == 0 {
			continue
		}
		v := row[col]
		found := false
		for _, a := range allowed {
			if a == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
