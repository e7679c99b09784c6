package filter

// Mode controls whether a selected column constrains the dataset or is only
// shown alongside group results.
type Mode string

const (
	ModeGroup   Mode = "group"
	ModeDisplay Mode = "display"
)

// Column is a selected column together with its mode.
type Column struct {
	Name string `json:"name"`
	Mode Mode   `json:"mode"`
}

// Set is the filter state for one data-source family: the selected columns,
// the predicate values of the group columns, and informational display
// values. Display columns never hold an entry in Values.
type Set struct {
	Columns       []Column          `json:"columns"`
	Values        map[string]Value  `json:"values"`
	DisplayValues map[string]string `json:"display_values"`
}

// NewSet returns an empty filter set.
func NewSet() *Set {
	return &Set{
		Values:        make(map[string]Value),
		DisplayValues: make(map[string]string),
	}
}

// SetColumns replaces the selected columns. Columns no longer present are
// dropped from both value maps. Mode is sticky: a column that was display
// mode and stays selected remains display mode; newly selected columns
// default to group mode.
func (s *Set) SetColumns(names []string) {
	prevModes := make(map[string]Mode, len(s.Columns))
	for _, c := range s.Columns {
		prevModes[c.Name] = c.Mode
	}

	keep := make(map[string]bool, len(names))
	columns := make([]Column, 0, len(names))
	for _, name := range names {
		keep[name] = true
		mode := ModeGroup
		if prev, ok := prevModes[name]; ok {
			mode = prev
		}
		columns = append(columns, Column{Name: name, Mode: mode})
	}
	s.Columns = columns

	for name := range s.Values {
		if !keep[name] {
			delete(s.Values, name)
		}
	}
	for name := range s.DisplayValues {
		if !keep[name] {
			delete(s.DisplayValues, name)
		}
	}
}

// SetColumnMode changes a column's mode. Switching group to display moves the
// column's predicate out of the value map atomically; a single-value selection
// is kept as the informational display value. Switching display to group makes
// the column eligible for predicates again but assigns none.
func (s *Set) SetColumnMode(name string, mode Mode) {
	for i := range s.Columns {
		if s.Columns[i].Name != name {
			continue
		}
		if s.Columns[i].Mode == mode {
			return
		}
		s.Columns[i].Mode = mode
		if mode == ModeDisplay {
			if v, ok := s.Values[name]; ok {
				// A single selected value survives as the informational
				// display value; wider selections are simply dropped.
				if vs := v.Values(); len(vs) == 1 && v.Kind != ValueAll {
					s.DisplayValues[name] = vs[0]
				}
				delete(s.Values, name)
			}
		}
		return
	}
}

// ColumnMode returns the mode of a selected column.
func (s *Set) ColumnMode(name string) (Mode, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c.Mode, true
		}
	}
	return "", false
}

// GroupColumns returns the names of the selected columns that constrain the
// dataset. Every query-building path must use this view, never raw Columns.
func (s *Set) GroupColumns() []string {
	var out []string
	for _, c := range s.Columns {
		if c.Mode != ModeDisplay {
			out = append(out, c.Name)
		}
	}
	return out
}

// DisplayColumns returns the names of the display-mode columns.
func (s *Set) DisplayColumns() []string {
	var out []string
	for _, c := range s.Columns {
		if c.Mode == ModeDisplay {
			out = append(out, c.Name)
		}
	}
	return out
}

// HasPredicates reports whether any column holds a non-null predicate.
func (s *Set) HasPredicates() bool {
	for _, v := range s.Values {
		if !v.IsNone() {
			return true
		}
	}
	return false
}

// ClearPredicates removes all predicate values but keeps the selected
// columns and their display values, so the source can be re-activated
// without re-picking columns.
func (s *Set) ClearPredicates() {
	s.Values = make(map[string]Value)
}

// Predicates returns a copy of the non-null predicate values.
func (s *Set) Predicates() map[string]Value {
	out := make(map[string]Value, len(s.Values))
	for name, v := range s.Values {
		if !v.IsNone() {
			out[name] = v.clone()
		}
	}
	return out
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	clone := NewSet()
	clone.Columns = make([]Column, len(s.Columns))
	copy(clone.Columns, s.Columns)
	for name, v := range s.Values {
		clone.Values[name] = v.clone()
	}
	for name, dv := range s.DisplayValues {
		clone.DisplayValues[name] = dv
	}
	return clone
}
