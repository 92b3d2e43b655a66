package harness

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
)

// argError marks a malformed scenario argument. It aborts the run instead
// of being recorded as a step outcome.
type argError struct {
	key string
	err error
}

func (e *argError) Error() string { return fmt.Sprintf("arg %q: %v", e.key, e.err) }

func (e *argError) Unwrap() error { return e.err }

// argReader reads typed values out of a YAML argument map, collecting the first
// type error.
type argReader struct {
	m     map[string]any
	first error
}

func args(m map[string]any) *argReader {
	return &argReader{m: m}
}

func (a *argReader) fail(key string, err error) {
	if a.first == nil {
		a.first = &argError{key: key, err: err}
	}
}

func (a *argReader) err() error { return a.first }

func (a *argReader) str(key string) string {
	v, ok := a.m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		a.fail(key, fmt.Errorf("want string, got %T", v))
	}
	return s
}

func (a *argReader) integer(key string) int {
	v, ok := a.m[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		if n != math.Trunc(n) {
			a.fail(key, fmt.Errorf("want integer, got %v", n))
		}
		return int(n)
	default:
		a.fail(key, fmt.Errorf("want integer, got %T", v))
		return 0
	}
}

func (a *argReader) boolean(key string) bool {
	v, ok := a.m[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		a.fail(key, fmt.Errorf("want bool, got %T", v))
	}
	return b
}

// values reads a metric map. Booleans become 1 and 0 so streak and goal
// events read naturally in YAML.
func (a *argReader) values(key string) map[string]float64 {
	raw, ok := a.m[key].(map[string]any)
	if !ok {
		if _, present := a.m[key]; present {
			a.fail(key, errors.New("want a map of metric values"))
		}
		return map[string]float64{}
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		switch n := v.(type) {
		case int:
			out[k] = float64(n)
		case float64:
			out[k] = n
		case bool:
			if n {
				out[k] = 1
			} else {
				out[k] = 0
			}
		default:
			a.fail(key, fmt.Errorf("metric %q: want number or bool, got %T", k, v))
		}
	}
	return out
}

// normalize converts v to its generic JSON form (maps, slices, float64,
// string, bool, nil) so engine values and YAML expectations compare alike.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// matchSubset reports whether actual contains expected: maps match when
// every expected key matches, slices when lengths and elements match,
// numbers within 1e-9.
func matchSubset(actual, expected any) bool {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, ev := range exp {
			av, exists := act[k]
			if !exists || !matchSubset(av, ev) {
				return false
			}
		}
		return true
	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchSubset(act[i], exp[i]) {
				return false
			}
		}
		return true
	case float64:
		act, ok := actual.(float64)
		return ok && math.Abs(act-exp) <= 1e-9
	default:
		return reflect.DeepEqual(actual, expected)
	}
}
