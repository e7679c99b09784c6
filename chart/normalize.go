package chart

import (
	"encoding/json"
	"strconv"
	"strings"
)

// shape is one recognized input format: a predicate deciding whether the
// payload has this shape and an extractor converting it. Shapes are tried
// in priority order, which keeps the "which legacy format matched" decision
// auditable per shape.
type shape struct {
	name    string
	match   func(m map[string]any) bool
	extract func(m map[string]any) *Spec
}

var shapes = []shape{
	{name: "native", match: matchNative, extract: extractNative},
	{name: "plotly", match: matchPlotly, extract: extractPlotly},
	{name: "flat_pie", match: matchFlat("pie_data", "pieData"), extract: extractFlat(TypePie, "pie_data", "pieData")},
	{name: "flat_bar", match: matchFlat("bar_data", "barData"), extract: extractFlat(TypeBar, "bar_data", "barData")},
	{name: "flat_line", match: matchFlat("line_data", "lineData"), extract: extractFlat(TypeLine, "line_data", "lineData")},
	{name: "flat_scatter", match: matchFlat("scatter_data", "scatterData"), extract: extractFlat(TypeScatter, "scatter_data", "scatterData")},
}

// Normalize converts any recognized chart payload into the canonical Spec.
// It never panics out and returns nil on unrecognized or empty input;
// callers treat nil as "nothing to render". Sanitization of passthrough
// data is the final step no matter which shape matched.
func Normalize(raw any) (spec *Spec) {
	defer func() {
		if recover() != nil {
			spec = nil
		}
	}()

	m := asMap(raw)
	if len(m) == 0 {
		return nil
	}

	for _, sh := range shapes {
		if sh.match(m) {
			spec = sh.extract(m)
			break
		}
	}
	if spec == nil || len(spec.Series) == 0 {
		return nil
	}

	// Passthrough rendering options ride along unmodeled but sanitized.
	if spec.Meta == nil {
		if meta, ok := m["meta"].(map[string]any); ok {
			spec.Meta = meta
		} else if opts, ok := m["options"].(map[string]any); ok {
			spec.Meta = opts
		}
	}
	if cleaned, ok := Sanitize(spec.Meta).(map[string]any); ok && len(cleaned) > 0 {
		spec.Meta = cleaned
	} else {
		spec.Meta = nil
	}
	return spec
}

func asMap(raw any) map[string]any {
	switch t := raw.(type) {
	case map[string]any:
		return t
	case json.RawMessage:
		var m map[string]any
		if err := json.Unmarshal(t, &m); err != nil {
			return nil
		}
		return m
	case []byte:
		var m map[string]any
		if err := json.Unmarshal(t, &m); err != nil {
			return nil
		}
		return m
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(t), &m); err != nil {
			return nil
		}
		return m
	}
	return nil
}

// --- native canonical format ---

func matchNative(m map[string]any) bool {
	series, ok := m["series"].([]any)
	return ok && len(series) > 0
}

func extractNative(m map[string]any) *Spec {
	spec := &Spec{Title: titleOf(m)}
	series, _ := m["series"].([]any)
	for i, item := range series {
		trace, ok := item.(map[string]any)
		if !ok {
			continue
		}
		s := Series{
			Name:  asString(firstOf(trace, "name")),
			Type:  strings.ToLower(asString(firstOf(trace, "type"))),
			Color: asString(firstOf(trace, "color")),
		}
		if s.Type == "" {
			s.Type = TypeLine
		}
		if s.Color == "" {
			s.Color = PaletteColor(i)
		}
		data, _ := trace["data"].([]any)
		for _, d := range data {
			if p, ok := asPoint(d); ok {
				s.Data = append(s.Data, p)
			}
		}
		if len(s.Data) > 0 {
			spec.Series = append(spec.Series, s)
		}
	}
	if axis := axisOf(m, "x_axis", "xAxis"); axis != nil {
		spec.XAxis = axis
	}
	if axis := axisOf(m, "y_axis", "yAxis"); axis != nil {
		spec.YAxis = axis
	}
	return spec
}

// --- plotly trace-list format ---

func matchPlotly(m map[string]any) bool {
	data, ok := m["data"].([]any)
	if !ok || len(data) == 0 {
		return false
	}
	trace, ok := data[0].(map[string]any)
	if !ok {
		return false
	}
	_, hasType := trace["type"]
	_, hasX := trace["x"]
	_, hasY := trace["y"]
	_, hasValues := trace["values"]
	return hasType || hasX || hasY || hasValues
}

func extractPlotly(m map[string]any) *Spec {
	spec := &Spec{}
	if layout, ok := m["layout"].(map[string]any); ok {
		spec.Title = titleOf(layout)
	}

	data, _ := m["data"].([]any)
	for i, item := range data {
		trace, ok := item.(map[string]any)
		if !ok {
			continue
		}
		s := Series{
			Name:  asString(trace["name"]),
			Type:  plotlyType(trace),
			Color: traceColor(trace),
		}
		if s.Color == "" {
			s.Color = PaletteColor(i)
		}

		switch s.Type {
		case TypePie:
			labels, _ := trace["labels"].([]any)
			values, _ := trace["values"].([]any)
			for j := range values {
				v, ok := asFloat(values[j])
				if !ok {
					continue
				}
				p := Point{Value: v}
				if j < len(labels) {
					p.Name = asString(labels[j])
				}
				s.Data = append(s.Data, p)
			}
		case TypeScatter:
			xs, _ := trace["x"].([]any)
			ys, _ := trace["y"].([]any)
			for j := range ys {
				y, ok := asFloat(ys[j])
				if !ok {
					continue
				}
				p := Point{Y: y, Value: y}
				if j < len(xs) {
					if x, ok := asFloat(xs[j]); ok {
						p.X = x
					}
				}
				s.Data = append(s.Data, p)
			}
		case TypeHistogram:
			xs, _ := trace["x"].([]any)
			for _, xv := range xs {
				if v, ok := asFloat(xv); ok {
					s.Data = append(s.Data, Point{Value: v})
				}
			}
		default: // bar and line share categorical x + numeric y
			xs, _ := trace["x"].([]any)
			ys, _ := trace["y"].([]any)
			for j := range ys {
				v, ok := asFloat(ys[j])
				if !ok {
					continue
				}
				p := Point{Value: v}
				if j < len(xs) {
					p.Name = asString(xs[j])
				}
				s.Data = append(s.Data, p)
			}
		}
		if len(s.Data) > 0 {
			spec.Series = append(spec.Series, s)
		}
	}
	return spec
}

// plotlyType maps a trace type onto a canonical series type; anything
// unrecognized falls back to line.
func plotlyType(trace map[string]any) string {
	switch strings.ToLower(asString(trace["type"])) {
	case "bar":
		return TypeBar
	case "pie":
		return TypePie
	case "histogram":
		return TypeHistogram
	case "scatter":
		if strings.Contains(strings.ToLower(asString(trace["mode"])), "markers") {
			return TypeScatter
		}
		return TypeLine
	default:
		return TypeLine
	}
}

func traceColor(trace map[string]any) string {
	marker, ok := trace["marker"].(map[string]any)
	if !ok {
		return ""
	}
	return asString(marker["color"])
}

// --- flat data-array shapes ---

func matchFlat(keys ...string) func(map[string]any) bool {
	return func(m map[string]any) bool {
		for _, key := range keys {
			if list, ok := m[key].([]any); ok && len(list) > 0 {
				return true
			}
		}
		return false
	}
}

func extractFlat(seriesType string, keys ...string) func(map[string]any) *Spec {
	return func(m map[string]any) *Spec {
		var list []any
		for _, key := range keys {
			if l, ok := m[key].([]any); ok && len(l) > 0 {
				list = l
				break
			}
		}
		s := Series{
			Name:  asString(firstOf(m, "name", "series_name", "seriesName")),
			Type:  seriesType,
			Color: PaletteColor(0),
		}
		for _, item := range list {
			if p, ok := asPoint(item); ok {
				s.Data = append(s.Data, p)
			}
		}
		if len(s.Data) == 0 {
			return nil
		}
		return &Spec{Title: titleOf(m), Series: []Series{s}}
	}
}

// --- helpers ---

func titleOf(m map[string]any) string {
	switch t := m["title"].(type) {
	case string:
		return t
	case map[string]any:
		return asString(t["text"])
	}
	return ""
}

func axisOf(m map[string]any, keys ...string) *Axis {
	for _, key := range keys {
		raw, ok := m[key].(map[string]any)
		if !ok {
			continue
		}
		axis := &Axis{Name: asString(raw["name"])}
		if cats, ok := raw["categories"].([]any); ok {
			for _, c := range cats {
				axis.Categories = append(axis.Categories, asString(c))
			}
		}
		return axis
	}
	return nil
}

// asPoint accepts the loosely-named point objects of the legacy shapes:
// label/name for the category, value/count/y for the number, x/y pairs for
// scatter data.
func asPoint(v any) (Point, bool) {
	switch t := v.(type) {
	case map[string]any:
		p := Point{Name: asString(firstOf(t, "name", "label"))}
		if val, ok := asFloat(firstOf(t, "value", "count", "y")); ok {
			p.Value = val
			p.Y = val
		} else {
			return Point{}, false
		}
		if x, ok := asFloat(t["x"]); ok {
			p.X = x
		}
		return p, true
	default:
		if val, ok := asFloat(v); ok {
			return Point{Value: val}, true
		}
	}
	return Point{}, false
}

func firstOf(m map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// asFloat coerces numbers and numeric strings.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}
