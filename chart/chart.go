package chart

// Spec is the canonical chart description handed to the charting
// collaborator. It is produced only by Normalize, never built by hand
// elsewhere.
type Spec struct {
	Title  string         `json:"title,omitempty"`
	Series []Series       `json:"series"`
	XAxis  *Axis          `json:"x_axis,omitempty"`
	YAxis  *Axis          `json:"y_axis,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Axis describes one axis, with categories for categorical axes.
type Axis struct {
	Name       string   `json:"name,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Series is one plotted series.
type Series struct {
	Name  string  `json:"name,omitempty"`
	Type  string  `json:"type"`
	Color string  `json:"color,omitempty"`
	Data  []Point `json:"data"`
}

// Point is one data point. Categorical series use Name/Value; scatter
// series use X/Y.
type Point struct {
	Name  string  `json:"name,omitempty"`
	Value float64 `json:"value"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
}

// Series types.
const (
	TypeLine      = "line"
	TypeBar       = "bar"
	TypePie       = "pie"
	TypeScatter   = "scatter"
	TypeHistogram = "histogram"
)

// palette is the fixed color cycle applied to traces that carry no color of
// their own.
var palette = []string{
	"#5470c6", "#91cc75", "#fac858", "#ee6666",
	"#73c0de", "#3ba272", "#fc8452", "#9a60b4", "#ea7ccc",
}

// PaletteColor returns the palette color for the i-th series.
func PaletteColor(i int) string {
	return palette[i%len(palette)]
}
