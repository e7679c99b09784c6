package dataset

import (
	"strings"
	"testing"

	apperrors "datachat/errors"

	"github.com/google/go-cmp/cmp"
)

func TestLoadCSV(t *testing.T) {
	input := "city, population ,country\nLondon,9000000,UK\nParis,2100000\nBerlin,3600000,Germany,extra\n"

	table, err := LoadCSV("cities.csv", strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}

	if diff := cmp.Diff([]string{"city", "population", "country"}, table.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(table.Rows))
	}
	// Short record pads, long record truncates to header width.
	if got := table.Rows[1]["country"]; got != "" {
		t.Errorf("short record country = %q, want empty", got)
	}
	if got := table.Rows[2]["country"]; got != "Germany" {
		t.Errorf("long record country = %q, want Germany", got)
	}
}

func TestLoadCSVEmptyInput(t *testing.T) {
	if _, err := LoadCSV("empty.csv", strings.NewReader("")); !apperrors.IsInvalidInput(err) {
		t.Errorf("LoadCSV() on empty input error = %v, want invalid input", err)
	}
}

func TestLoadJSON(t *testing.T) {
	input := `[
		{"city": "London", "population": 9000000, "capital": true},
		{"city": "Paris", "population": 2100000, "country": "France"},
		{"city": "Oslo", "population": null}
	]`

	table, err := LoadJSON("cities.json", strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadJSON() error = %v", err)
	}

	if len(table.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(table.Rows))
	}
	// Numbers keep their literal form, booleans and nulls string-coerce.
	if got := table.Rows[0]["population"]; got != "9000000" {
		t.Errorf("population = %q, want 9000000", got)
	}
	if got := table.Rows[0]["capital"]; got != "true" {
		t.Errorf("capital = %q, want true", got)
	}
	if got := table.Rows[2]["population"]; got != "" {
		t.Errorf("null value = %q, want empty", got)
	}
}

func TestLoadJSONRejectsNonArray(t *testing.T) {
	if _, err := LoadJSON("bad.json", strings.NewReader(`{"city":"London"}`)); !apperrors.IsInvalidInput(err) {
		t.Errorf("LoadJSON() on object error = %v, want invalid input", err)
	}
}

func TestLoadFileRejectsUnknownExtension(t *testing.T) {
	if _, err := LoadFile("data.parquet"); !apperrors.IsInvalidInput(err) {
		t.Errorf("LoadFile() error = %v, want invalid input", err)
	}
}
