package hxdash

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// StateDict is a flat snapshot mapping channel keys (see Channel.Key) to
// values. It is the canonical permalink and export state.
type StateDict map[string]any

// Get returns the value stored for a channel.
func (d StateDict) Get(ch Channel) (any, bool) {
	v, ok := d[ch.Key()]
	return v, ok
}

// Set stores the value for a channel.
func (d StateDict) Set(ch Channel, v any) {
	d[ch.Key()] = v
}

// Keys returns the snapshot's keys in sorted order.
func (d StateDict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns a new snapshot with the entries of other layered over d.
func (d StateDict) Merge(other StateDict) StateDict {
	out := make(StateDict, len(d)+len(other))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Restrict returns the entries of d addressed by the given channels. Channels
// missing from d are left out.
func (d StateDict) Restrict(chs []Channel) StateDict {
	out := make(StateDict, len(chs))
	for _, ch := range chs {
		if v, ok := d.Get(ch); ok {
			out.Set(ch, v)
		}
	}
	return out
}

// StateArgs is a component's projection of a snapshot, keyed by logical field
// name (e.g. "index", "depth").
type StateArgs map[string]any

// String returns a string field, or "" when absent or nil.
func (a StateArgs) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns an int field, or 0 when absent.
func (a StateArgs) Int(name string) int {
	i, _ := a[name].(int)
	return i
}

// Float returns a float field, or 0 when absent.
func (a StateArgs) Float(name string) float64 {
	f, _ := a[name].(float64)
	return f
}

// Bool returns a bool field, or false when absent.
func (a StateArgs) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Strings returns a string-list field.
func (a StateArgs) Strings(name string) []string {
	s, _ := a[name].([]string)
	return s
}

// Has reports whether the field is present with a non-nil value.
func (a StateArgs) Has(name string) bool {
	v, ok := a[name]
	return ok && v != nil
}

// ProjectState projects the fields of the component called name out of a
// snapshot, coercing each value to its declared Kind. A missing required
// field fails with a MissingStateError. Optional fields that are missing are
// set to nil.
func ProjectState(fields []StateField, name string, d StateDict) (StateArgs, error) {
	args := make(StateArgs, len(fields))
	for _, f := range fields {
		ch := f.Channel(name)
		raw, ok := d.Get(ch)
		if !ok {
			if f.Optional {
				args[f.Name] = nil
				continue
			}
			return nil, &MissingStateError{
				Component: name,
				Field:     f.Name,
				Key:       ch.Key(),
				Suggest:   closest(ch.Key(), d.Keys()),
			}
		}
		v, err := Coerce(f.Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("hxdash: state field %q of %s (key %q): %w", f.Name, name, ch.Key(), err)
		}
		args[f.Name] = v
	}
	return args, nil
}

// Coerce converts a value read from a snapshot, a form post or a YAML/JSON
// document to the Go type of kind. nil passes through unchanged: it is the
// "no selection" sentinel.
func Coerce(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case KindString:
		switch t := v.(type) {
		case string:
			return t, nil
		case fmt.Stringer:
			return t.String(), nil
		case int, int32, int64, uint, uint32, uint64, float32, float64, bool:
			return fmt.Sprint(t), nil
		}
	case KindInt:
		switch t := v.(type) {
		case int:
			return t, nil
		case int8:
			return int(t), nil
		case int16:
			return int(t), nil
		case int32:
			return int(t), nil
		case int64:
			return int(t), nil
		case uint:
			return int(t), nil
		case uint8:
			return int(t), nil
		case uint16:
			return int(t), nil
		case uint32:
			return int(t), nil
		case uint64:
			return int(t), nil
		case float32:
			return floatToInt(float64(t))
		case float64:
			return floatToInt(t)
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				return nil, nil
			}
			if i, err := strconv.Atoi(s); err == nil {
				return i, nil
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return floatToInt(f)
			}
		}
	case KindFloat:
		switch t := v.(type) {
		case float64:
			return t, nil
		case float32:
			return float64(t), nil
		case int:
			return float64(t), nil
		case int8:
			return float64(t), nil
		case int16:
			return float64(t), nil
		case int32:
			return float64(t), nil
		case int64:
			return float64(t), nil
		case uint:
			return float64(t), nil
		case uint8:
			return float64(t), nil
		case uint16:
			return float64(t), nil
		case uint32:
			return float64(t), nil
		case uint64:
			return float64(t), nil
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				return nil, nil
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, nil
			}
		}
	case KindBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			if t == "" {
				return false, nil
			}
			if b, err := strconv.ParseBool(t); err == nil {
				return b, nil
			}
			// a checked checklist posts its option value
			return true, nil
		case []string:
			return len(t) > 0, nil
		case []any:
			return len(t) > 0, nil
		case int:
			return t != 0, nil
		case int64:
			return t != 0, nil
		case float64:
			return t != 0, nil
		}
	case KindStrings:
		switch t := v.(type) {
		case []string:
			return append([]string(nil), t...), nil
		case []any:
			out := make([]string, 0, len(t))
			for _, e := range t {
				out = append(out, fmt.Sprint(e))
			}
			return out, nil
		case string:
			if t == "" {
				return []string{}, nil
			}
			return []string{t}, nil
		case bool:
			// a switch toggled on reads as a one-element checklist
			if t {
				return []string{"true"}, nil
			}
			return []string{}, nil
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, kind)
}

func floatToInt(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("%v is not an integer", f)
	}
	return int(f), nil
}
