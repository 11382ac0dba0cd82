package resolume

import (
	"fmt"
	"sort"
	"strconv"
)

// ValueKind identifies which member of a PropertyValue is set
type ValueKind int

const (
	KindUnknown ValueKind = iota
	KindFloat
	KindInt
	KindString
)

func (k ValueKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// PropertyValue holds exactly one of a float, an int or a string
type PropertyValue struct {
	kind ValueKind
	f    float32
	i    int32
	s    string
}

func FloatValue(v float32) PropertyValue { return PropertyValue{kind: KindFloat, f: v} }
func IntValue(v int32) PropertyValue { return PropertyValue{kind: KindInt, i: v} }
func StringValue(v string) PropertyValue { return PropertyValue{kind: KindString, s: v} }
func (v PropertyValue) Kind() ValueKind { return v.kind }
func (v PropertyValue) IsZero() bool { return v.kind == KindUnknown }

// Any returns the held value as float32, int32 or string, or nil when unset
func (v PropertyValue) Any() any {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return v.i
	case KindString:
		return v.s
	}
	return nil
}

// String renders the value for display; strings are quoted.
func (v PropertyValue) String() string {
	switch v.kind {
	case KindFloat:
		return strconv.FormatFloat(float64(v.f), 'g', -1, 32)
	case KindInt:
		return strconv.FormatInt(int64(v.i), 10)
	case KindString:
		return strconv.Quote(v.s)
	}
	return ""
}

// PropertyDictionary maps a property key (the remaining address path) to its last reported value
type PropertyDictionary struct {
	values map[string]PropertyValue
}

func NewPropertyDictionary() PropertyDictionary {
	return PropertyDictionary{values: make(map[string]PropertyValue)}
}

func (d *PropertyDictionary) set(key string, v PropertyValue) {
	if d.values == nil {
		d.values = make(map[string]PropertyValue)
	}
	d.values[key] = v
}

func (d *PropertyDictionary) SetFloat(key string, v float32) { d.set(key, FloatValue(v)) }
func (d *PropertyDictionary) SetInt(key string, v int32) { d.set(key, IntValue(v)) }
func (d *PropertyDictionary) SetString(key string, v string) { d.set(key, StringValue(v)) }
func (d *PropertyDictionary) SetValue(key string, v PropertyValue) { d.set(key, v) }

// Float returns the value as a float, converting ints. Strings and missing keys return def.
func (d *PropertyDictionary) Float(key string, def float32) float32 {
	v, ok := d.values[key]
	if !ok {
		return def
	}
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float32(v.i)
	}
	return def
}

// Int returns the value as an int, truncating floats. Strings and missing keys return def.
func (d *PropertyDictionary) Int(key string, def int32) int32 {
	v, ok := d.values[key]
	if !ok {
		return def
	}
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return int32(v.f)
	}
	return def
}

// String returns string values only; numbers are never converted.
func (d *PropertyDictionary) String(key string, def string) string {
	v, ok := d.values[key]
	if !ok || v.kind != KindString {
		return def
	}
	return v.s
}

func (d *PropertyDictionary) Value(key string) (PropertyValue, bool) {
	v, ok := d.values[key]
	return v, ok
}

func (d *PropertyDictionary) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

func (d *PropertyDictionary) TypeOf(key string) ValueKind {
	return d.values[key].kind
}

// AsString renders a value with its type tag, e.g. `"Intro" (string)`
func (d *PropertyDictionary) AsString(key string) string {
	v, ok := d.values[key]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s (%s)", v, v.kind)
}

func (d *PropertyDictionary) Len() int {
	return len(d.values)
}

// Keys returns the property keys in sorted order
func (d *PropertyDictionary) Keys() []string {
	keys := make([]string, 0, len(d.values))
	for k := range d.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *PropertyDictionary) Clear() {
	clear(d.values)
}

// SetFromMessage stores the first element of the first non-empty payload array,
// preferring floats, then ints, then strings. Returns false when all arrays are empty.
func (d *PropertyDictionary) SetFromMessage(key string, floats []float32, ints []int32, strings []string) bool {
	switch {
	case len(floats) > 0:
		d.SetFloat(key, floats[0])
	case len(ints) > 0:
		d.SetInt(key, ints[0])
	case len(strings) > 0:
		d.SetString(key, strings[0])
	default:
		return false
	}
	return true
}
