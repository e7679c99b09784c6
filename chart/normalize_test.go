package chart

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeNative(t *testing.T) {
	raw := map[string]any{
		"title": "Goals per season",
		"series": []any{
			map[string]any{
				"name": "Arsenal",
				"type": "bar",
				"data": []any{
					map[string]any{"name": "2022", "value": 61.0},
					map[string]any{"name": "2023", "value": 88.0},
				},
			},
		},
		"x_axis": map[string]any{"name": "season", "categories": []any{"2022", "2023"}},
	}

	spec := Normalize(raw)
	if spec == nil {
		t.Fatal("Normalize() = nil for native payload")
	}
	if spec.Title != "Goals per season" {
		t.Errorf("title = %q", spec.Title)
	}
	if len(spec.Series) != 1 || spec.Series[0].Type != TypeBar {
		t.Fatalf("series = %+v", spec.Series)
	}
	if spec.Series[0].Color != PaletteColor(0) {
		t.Errorf("color = %q, want palette fallback", spec.Series[0].Color)
	}
	if diff := cmp.Diff([]string{"2022", "2023"}, spec.XAxis.Categories); diff != "" {
		t.Errorf("x axis categories mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeFlatPieData(t *testing.T) {
	raw := json.RawMessage(`{
		"title": "Share by region",
		"pie_data": [
			{"label": "EU", "count": 10},
			{"label": "UK", "count": 5},
			{"label": "bad", "count": "not a number x"}
		]
	}`)

	spec := Normalize(raw)
	if spec == nil {
		t.Fatal("Normalize() = nil for pie_data payload")
	}
	if spec.Series[0].Type != TypePie {
		t.Errorf("type = %q, want pie", spec.Series[0].Type)
	}
	if len(spec.Series[0].Data) != 2 {
		t.Fatalf("points = %d, want 2 (non-numeric dropped)", len(spec.Series[0].Data))
	}
	if spec.Series[0].Data[0].Name != "EU" || spec.Series[0].Data[0].Value != 10 {
		t.Errorf("point = %+v", spec.Series[0].Data[0])
	}
}

func TestNormalizePlotlyTraces(t *testing.T) {
	tests := []struct {
		name     string
		trace    map[string]any
		wantType string
	}{
		{
			"bar",
			map[string]any{"type": "bar", "x": []any{"a", "b"}, "y": []any{1.0, 2.0}},
			TypeBar,
		},
		{
			"pie",
			map[string]any{"type": "pie", "labels": []any{"a", "b"}, "values": []any{1.0, 2.0}},
			TypePie,
		},
		{
			"histogram",
			map[string]any{"type": "histogram", "x": []any{1.0, 2.0, 3.0}},
			TypeHistogram,
		},
		{
			"scatter_with_markers",
			map[string]any{"type": "scatter", "mode": "markers", "x": []any{1.0}, "y": []any{2.0}},
			TypeScatter,
		},
		{
			"scatter_lines_is_line",
			map[string]any{"type": "scatter", "mode": "lines", "x": []any{1.0}, "y": []any{2.0}},
			TypeLine,
		},
		{
			"untyped_defaults_to_line",
			map[string]any{"x": []any{"a"}, "y": []any{3.0}},
			TypeLine,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := Normalize(map[string]any{"data": []any{tt.trace}})
			if spec == nil {
				t.Fatal("Normalize() = nil")
			}
			if spec.Series[0].Type != tt.wantType {
				t.Errorf("type = %q, want %q", spec.Series[0].Type, tt.wantType)
			}
		})
	}
}

func TestNormalizePlotlyLayoutTitleAndMarkerColor(t *testing.T) {
	spec := Normalize(map[string]any{
		"layout": map[string]any{"title": map[string]any{"text": "Scores"}},
		"data": []any{
			map[string]any{
				"type":   "bar",
				"x":      []any{"a"},
				"y":      []any{1.0},
				"marker": map[string]any{"color": "#112233"},
			},
		},
	})
	if spec == nil {
		t.Fatal("Normalize() = nil")
	}
	if spec.Title != "Scores" {
		t.Errorf("title = %q, want Scores", spec.Title)
	}
	if spec.Series[0].Color != "#112233" {
		t.Errorf("color = %q, want marker color", spec.Series[0].Color)
	}
}

func TestNormalizeRejectsUnusable(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"nil", nil},
		{"empty_map", map[string]any{}},
		{"unmatched_shape", map[string]any{"unrelated": "stuff"}},
		{"empty_series", map[string]any{"series": []any{}}},
		{"series_without_points", map[string]any{"series": []any{map[string]any{"name": "x", "data": []any{}}}}},
		{"invalid_json", json.RawMessage(`{broken`)},
		{"non_map_json", json.RawMessage(`[1,2,3]`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if spec := Normalize(tt.raw); spec != nil {
				t.Errorf("Normalize() = %+v, want nil", spec)
			}
		})
	}
}

func TestNormalizeSanitizesMeta(t *testing.T) {
	spec := Normalize(map[string]any{
		"series": []any{
			map[string]any{"name": "s", "data": []any{map[string]any{"name": "a", "value": 1.0}}},
		},
		"meta": map[string]any{
			"stacked": true,
			"leaked":  map[string]any{"$$typeof": "Symbol(react.element)"},
			"handler": func() {},
		},
	})
	if spec == nil {
		t.Fatal("Normalize() = nil")
	}
	if spec.Meta["stacked"] != true {
		t.Error("plain meta value lost")
	}
	if _, ok := spec.Meta["leaked"]; ok {
		t.Error("opaque foreign object survived sanitization")
	}
	if _, ok := spec.Meta["handler"]; ok {
		t.Error("function value survived sanitization")
	}
}

func TestSanitizeNestedStructures(t *testing.T) {
	in := map[string]any{
		"list": []any{1.0, "two", func() {}, map[string]any{"_owner": "fiber"}},
		"nested": map[string]any{
			"keep": "yes",
			"drop": make(chan int),
		},
	}

	out, ok := Sanitize(in).(map[string]any)
	if !ok {
		t.Fatal("Sanitize() did not return a map")
	}
	list, _ := out["list"].([]any)
	if len(list) != 2 {
		t.Errorf("list = %v, want the two plain values", list)
	}
	nested, _ := out["nested"].(map[string]any)
	if nested["keep"] != "yes" {
		t.Error("plain nested value lost")
	}
	if _, ok := nested["drop"]; ok {
		t.Error("channel survived sanitization")
	}
}

func TestPaletteCycles(t *testing.T) {
	if PaletteColor(0) != PaletteColor(len(palette)) {
		t.Error("palette must wrap around")
	}
	if PaletteColor(1) == PaletteColor(2) {
		t.Error("adjacent palette colors must differ")
	}
}
