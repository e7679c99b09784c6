package filter

import (
	"encoding/json"
	"fmt"
)

// SelectAllSentinel marks a column as "every value selected" without
// materializing the value list. It survives JSON round-trips as a plain
// string so persisted snapshots stay readable.
const SelectAllSentinel = "__select_all__"

// ValueKind discriminates the predicate selection states of a column.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueScalar
	ValueList
	ValueAll
)

// Value is the predicate selection for a single column: nothing, a single
// value, a list of values, or the select-all sentinel.
type Value struct {
	Kind   ValueKind
	Scalar string
	List   []string
}

func NoValue() Value               { return Value{Kind: ValueNone} }
func ScalarValue(s string) Value   { return Value{Kind: ValueScalar, Scalar: s} }
func ListValue(vs ...string) Value { return Value{Kind: ValueList, List: vs} }
func AllValue() Value              { return Value{Kind: ValueAll} }

// IsNone reports whether no predicate is selected.
func (v Value) IsNone() bool {
	return v.Kind == ValueNone
}

// Contains reports whether s is part of the selection. The select-all
// sentinel contains every value until explicitly cleared.
func (v Value) Contains(s string) bool {
	switch v.Kind {
	case ValueAll:
		return true
	case ValueScalar:
		return v.Scalar == s
	case ValueList:
		for _, item := range v.List {
			if item == s {
				return true
			}
		}
	}
	return false
}

// Count returns the number of materialized selections. The sentinel counts
// as one; callers that need true cardinality must consult the resolver.
func (v Value) Count() int {
	switch v.Kind {
	case ValueScalar, ValueAll:
		return 1
	case ValueList:
		return len(v.List)
	}
	return 0
}

// Values returns the materialized selections as a slice. Empty for none and
// for the sentinel.
func (v Value) Values() []string {
	switch v.Kind {
	case ValueScalar:
		return []string{v.Scalar}
	case ValueList:
		out := make([]string, len(v.List))
		copy(out, v.List)
		return out
	}
	return nil
}

func (v Value) clone() Value {
	if v.Kind == ValueList {
		list := make([]string, len(v.List))
		copy(list, v.List)
		return Value{Kind: ValueList, List: list}
	}
	return v
}

// MarshalJSON encodes the value union as null, a string, a string array, or
// the sentinel string, matching the persisted snapshot format.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueNone:
		return []byte("null"), nil
	case ValueScalar:
		return json.Marshal(v.Scalar)
	case ValueList:
		return json.Marshal(v.List)
	case ValueAll:
		return json.Marshal(SelectAllSentinel)
	}
	return nil, fmt.Errorf("unknown value kind %d", v.Kind)
}

// UnmarshalJSON decodes the union form produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	switch t := decoded.(type) {
	case nil:
		*v = NoValue()
	case string:
		if t == SelectAllSentinel {
			*v = AllValue()
		} else {
			*v = ScalarValue(t)
		}
	case []any:
		list := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("filter value array holds non-string element %T", item)
			}
			list = append(list, s)
		}
		*v = Value{Kind: ValueList, List: list}
	default:
		return fmt.Errorf("unsupported filter value type %T", decoded)
	}
	return nil
}
