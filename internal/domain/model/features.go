package model

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// Features maps a feature name to a JSON-compatible value: string, number,
// bool, nil, []any or nested map[string]any.
type Features map[string]any

// Clone deep-copies the feature tree so that later edits to the source never
// leak into the copy (and vice versa).
func (f Features) Clone() Features {
	if f == nil {
		return Features{}
	}
	out := make(Features, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, int, int32, int64, float32, float64, json.Number:
		return t
	case Features:
		return map[string]any(t.Clone())
	case map[string]any:
		return map[string]any(Features(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	// Other composites (typed slices, map[any]any from decoders) go through
	// JSON so the copy is normalised to the shapes above.
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		b, err := json.Marshal(v)
		if err != nil {
			return v
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			return v
		}
		return out
	}
	return v
}

// Contains reports whether the feature key holds a value containing value,
// with the semantics of Postgres jsonb @>: objects match on a subset of keys
// (recursively), arrays match when every wanted element is contained in some
// element, scalars compare by JSON encoding (so 5 and 5.0 match).
func (f Features) Contains(key string, value any) bool {
	got, ok := f[key]
	if !ok {
		return false
	}
	return containsJSON(normalize(got), normalize(value))
}

func containsJSON(have, want any) bool {
	switch w := want.(type) {
	case map[string]any:
		h, ok := have.(map[string]any)
		if !ok {
			return false
		}
		for k, wv := range w {
			hv, ok := h[k]
			if !ok || !containsJSON(hv, wv) {
				return false
			}
		}
		return true
	case []any:
		h, ok := have.([]any)
		if !ok {
			return false
		}
		for _, wv := range w {
			found := false
			for _, hv := range h {
				if containsJSON(hv, wv) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	default:
		a, err := json.Marshal(have)
		if err != nil {
			return false
		}
		b, err := json.Marshal(want)
		if err != nil {
			return false
		}
		return bytes.Equal(a, b)
	}
}

func normalize(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
