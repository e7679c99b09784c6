package dataset

import (
	"context"
	"fmt"
	"testing"

	apperrors "datachat/errors"

	"go.uber.org/zap"
)

func testMemSource(t *testing.T) *MemSource {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	m := NewMemSource(0, logger)
	m.AddTable(&MemTable{
		Name:    "sales.csv",
		Columns: []string{"city", "year", "region"},
		Rows: []Row{
			{"city": "London", "year": "2023", "region": "EU"},
			{"city": "London", "year": "2023", "region": "UK"},
			{"city": "Paris", "year": "2023", "region": "EU"},
			{"city": "Paris", "year": "2022", "region": "EU"},
		},
	})
	return m
}

func TestMemSourceGroupByDistinctTuples(t *testing.T) {
	m := testMemSource(t)

	rows, err := m.GroupBy(context.Background(), GroupQuery{
		Items:          []string{"sales.csv"},
		GroupColumns:   []string{"city", "year"},
		DisplayColumns: []string{"region"},
	})
	if err != nil {
		t.Fatalf("GroupBy() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 distinct tuples", len(rows))
	}
	// First seen wins for the display projection of a repeated tuple.
	for _, row := range rows {
		if row["city"] == "London" && row["region"] != "EU" {
			t.Errorf("London display region = %q, want EU", row["region"])
		}
	}
}

func TestMemSourceGroupByPredicates(t *testing.T) {
	m := testMemSource(t)

	rows, err := m.GroupBy(context.Background(), GroupQuery{
		Items:        []string{"sales.csv"},
		GroupColumns: []string{"city"},
		Predicates:   map[string][]string{"year": {"2022"}},
	})
	if err != nil {
		t.Fatalf("GroupBy() error = %v", err)
	}
	if len(rows) != 1 || rows[0]["city"] != "Paris" {
		t.Errorf("rows = %v, want only Paris", rows)
	}
}

func TestMemSourceSelectAllIgnoresPredicate(t *testing.T) {
	m := testMemSource(t)

	rows, err := m.GroupBy(context.Background(), GroupQuery{
		Items:        []string{"sales.csv"},
		GroupColumns: []string{"city"},
		Predicates:   map[string][]string{"city": {"London"}},
		SelectAll:    map[string]bool{"city": true},
	})
	if err != nil {
		t.Fatalf("GroupBy() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("rows = %d, want 2 with select-all", len(rows))
	}
}

func TestMemSourceLimit(t *testing.T) {
	m := testMemSource(t)

	rows, err := m.GroupBy(context.Background(), GroupQuery{
		Items:        []string{"sales.csv"},
		GroupColumns: []string{"city", "year"},
		Limit:        2,
	})
	if err != nil {
		t.Fatalf("GroupBy() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("rows = %d, want limit of 2", len(rows))
	}
}

func TestMemSourceUnknownTable(t *testing.T) {
	m := testMemSource(t)

	_, err := m.GroupBy(context.Background(), GroupQuery{
		Items:        []string{"missing.csv"},
		GroupColumns: []string{"city"},
	})
	if !apperrors.IsNotFound(err) {
		t.Errorf("GroupBy() error = %v, want not found", err)
	}
}

func TestMemSourceCancellation(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	m := NewMemSource(10, logger)

	rows := make([]Row, 100)
	for i := range rows {
		rows[i] = Row{"n": fmt.Sprintf("%d", i)}
	}
	m.AddTable(&MemTable{Name: "big.csv", Columns: []string{"n"}, Rows: rows})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.GroupBy(ctx, GroupQuery{Items: []string{"big.csv"}, GroupColumns: []string{"n"}}); err == nil {
		t.Error("GroupBy() with cancelled context succeeded, want error")
	}
}
