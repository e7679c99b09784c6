package segment

import (
	"encoding/json"
	"sort"
)

// chartKeys are the historical key names a chart payload may hide under,
// in both snake_case and camelCase spellings.
var chartKeys = []string{
	"chart_data", "chartData",
	"chart_option", "chartOption",
	"echarts_option", "echartsOption",
	"plotly_figure", "plotlyFigure",
}

// chartRootKeys mark a JSON object that is itself a chart payload.
var chartRootKeys = []string{
	"series",
	"pie_data", "pieData",
	"bar_data", "barData",
	"line_data", "lineData",
	"scatter_data", "scatterData",
}

// FindChartPayload searches a result's JSON body for a chart payload,
// descending nested objects and arrays. The first hit in key order wins.
func FindChartPayload(raw json.RawMessage) (json.RawMessage, bool) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false
	}
	found, ok := findChart(decoded)
	if !ok {
		return nil, false
	}
	payload, err := json.Marshal(found)
	if err != nil {
		return nil, false
	}
	return payload, true
}

func findChart(v any) (any, bool) {
	switch t := v.(type) {
	case map[string]any:
		for _, key := range chartKeys {
			if sub, ok := t[key]; ok && sub != nil {
				return sub, true
			}
		}
		for _, key := range chartRootKeys {
			if _, ok := t[key]; ok {
				return t, true
			}
		}
		// Deterministic descent order keeps repeated parses structurally
		// identical when several subtrees hold chart-shaped data.
		keys := make([]string, 0, len(t))
		for key := range t {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if found, ok := findChart(t[key]); ok {
				return found, true
			}
		}
	case []any:
		for _, sub := range t {
			if found, ok := findChart(sub); ok {
				return found, true
			}
		}
	}
	return nil, false
}
