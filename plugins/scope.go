package plugins

import (
	"fmt"
	"sort"
	"strconv"
)

// Func is a zero-argument callable registered in a Scope, such as a deferred
// script or a data block.
type Func func() (any, error)

// Scope is the mutable execution context shared by the processors of a single
// pipeline pass. It is not safe for concurrent use; every pass owns its own.
type Scope struct {
	funcs map[string]Func
}

func NewScope() *Scope {
	return &Scope{funcs: make(map[string]Func)}
}

// Define registers fn under name, replacing any previous definition.
func (s *Scope) Define(name string, fn Func) {
	s.funcs[name] = fn
}

func (s *Scope) Lookup(name string) (Func, bool) {
	fn, ok := s.funcs[name]
	return fn, ok
}

// Call invokes the function registered under name.
func (s *Scope) Call(name string) (any, error) {
	fn, ok := s.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q%s", ErrDataSourceNotFound, name, didYouMean(name, s.Names()))
	}
	return fn()
}

func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.funcs))
	for name := range s.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scope) Reset() {
	s.funcs = make(map[string]Func)
}

// stringify converts a value produced by a script or data source to text.
func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// argumentMaps converts the result of a data source into template arguments.
func argumentMaps(v any) ([]map[string]string, error) {
	switch rows := v.(type) {
	case []map[string]string:
		return rows, nil
	case []map[string]any:
		out := make([]map[string]string, len(rows))
		for i, row := range rows {
			out[i] = stringMap(row)
		}
		return out, nil
	case []any:
		out := make([]map[string]string, len(rows))
		for i, row := range rows {
			m, ok := row.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, expected an object", i, row)
			}
			out[i] = stringMap(m)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected an array of objects, got %T", v)
	}
}

func stringMap(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = stringify(v)
	}
	return out
}
