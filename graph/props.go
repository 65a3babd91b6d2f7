package graph

import (
	"encoding/json"
	"math"
	"reflect"

	"github.com/brunobiangulo/fingraph/extract"
)

// sanitizeProps converts an extracted entity into values a property graph
// accepts: nulls are dropped, numbers become int64 when integral and float64
// otherwise, homogeneous scalar lists are kept, and anything nested is stored
// as a JSON string.
func sanitizeProps(e extract.Entity) map[string]any {
	props := make(map[string]any, len(e))
	for k, v := range e {
		if pv, ok := propValue(v); ok {
			props[k] = pv
		}
	}
	return props
}

func propValue(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	if s, ok := scalarValue(v); ok {
		return s, true
	}
	if list, ok := v.([]any); ok {
		if out, ok := scalarList(list); ok {
			return out, true
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return string(b), true
}

func scalarValue(v any) (any, bool) {
	switch x := v.(type) {
	case string, bool, int64:
		return x, true
	case int:
		return int64(x), true
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		if f, err := x.Float64(); err == nil {
			return f, true
		}
		return x.String(), true
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x), true
		}
		return x, true
	}
	return nil, false
}

// scalarList keeps a list only when every element is a non-null scalar of
// the same kind.
func scalarList(list []any) ([]any, bool) {
	out := make([]any, 0, len(list))
	var kind reflect.Kind
	for i, el := range list {
		s, ok := scalarValue(el)
		if !ok {
			return nil, false
		}
		k := reflect.TypeOf(s).Kind()
		if i == 0 {
			kind = k
		} else if k != kind {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
