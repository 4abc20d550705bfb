package strategy

import (
	"fmt"
	"math"
	"sort"
)

// Params carries caller-supplied strategy options, typically decoded from
// YAML or a JSON request body. Factories read values through the typed
// getters and then call Unknown to reject unrecognized names instead of
// silently ignoring them.
type Params map[string]any

// Int reads an integer parameter, falling back to def when absent. YAML and
// JSON decoders may deliver whole numbers as float64.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("parameter %q: %v is not an integer", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("parameter %q: expected integer, got %T", key, v)
	}
}

// Float reads a float parameter, falling back to def when absent.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("parameter %q: expected number, got %T", key, v)
	}
}

// Bool reads a boolean parameter, falling back to def when absent.
func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("parameter %q: expected boolean, got %T", key, v)
	}
	return b, nil
}

// Unknown returns an error naming every parameter key not in the known set,
// or nil when all keys are recognized.
func (p Params) Unknown(known ...string) error {
	allowed := make(map[string]struct{}, len(known))
	for _, k := range known {
		allowed[k] = struct{}{}
	}

	var bad []string
	for k := range p {
		if _, ok := allowed[k]; !ok {
			bad = append(bad, k)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return fmt.Errorf("unrecognized parameters %v (recognized: %v)", bad, known)
}
