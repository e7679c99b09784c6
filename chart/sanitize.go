package chart

import "reflect"

// OpaquePredicate reports whether a value is an opaque foreign object that
// must not cross a serialization boundary, such as a rendered UI node that
// leaked into a result payload.
type OpaquePredicate func(v map[string]any) bool

// DefaultOpaque recognizes serialized UI-framework element markers.
func DefaultOpaque(v map[string]any) bool {
	if _, ok := v["$$typeof"]; ok {
		return true
	}
	if _, ok := v["_owner"]; ok {
		return true
	}
	return false
}

// Sanitize deep-copies v keeping only plain data, using DefaultOpaque.
func Sanitize(v any) any {
	return SanitizeWith(v, DefaultOpaque)
}

// SanitizeWith strips everything that is not plain data: functions,
// channels, pointers to opaque types, and any object the predicate flags as
// foreign. Maps and slices are rebuilt without the offending values.
func SanitizeWith(v any, opaque OpaquePredicate) any {
	switch t := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return t
	case map[string]any:
		if opaque != nil && opaque(t) {
			return nil
		}
		out := make(map[string]any, len(t))
		for key, value := range t {
			cleaned := SanitizeWith(value, opaque)
			if cleaned == nil && value != nil {
				continue
			}
			out[key] = cleaned
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, value := range t {
			cleaned := SanitizeWith(value, opaque)
			if cleaned == nil && value != nil {
				continue
			}
			out = append(out, cleaned)
		}
		return out
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Ptr, reflect.Struct:
		return nil
	}
	return nil
}
