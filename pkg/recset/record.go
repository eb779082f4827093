package recset

import (
	"math"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ValueKind distinguishes raw text from values coerced by int, real and range fields.
type ValueKind uint8

// ValueKind values.
const (
	ValueString ValueKind = iota
	ValueInt
	ValueReal
)

// Value is one value of a field. Raw input is always [ValueString]; validation
// replaces values of int and range fields with [ValueInt] and real fields
// with [ValueReal].
type Value struct {
	Kind ValueKind
	Str  string
	Int  int64
	Real float64
}

// StringValue wraps raw text.
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

// IntValue wraps a coerced integer.
func IntValue(i int64) Value { return Value{Kind: ValueInt, Int: i} }

// RealValue wraps a coerced float.
func RealValue(f float64) Value { return Value{Kind: ValueReal, Real: f} }

// String renders the value the way every serializer writes it.
func (v Value) String() string {
	switch v.Kind {
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueReal:
		return formatReal(v.Real)
	default:
		return v.Str
	}
}

// formatReal keeps a decimal point on integral values ("2.0", not "2") so
// an exported real field still reads as a real.
func formatReal(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if math.IsInf(f, 0) || math.IsNaN(f) || strings.ContainsAny(s, ".e") {
		return s
	}

	return s + ".0"
}

// Record maps field names to one or more values, keeping the order in which
// fields were first added.
//
// A Record returned by a [RecordSet] is a copy; changing it does not change
// the stored record.
type Record struct {
	fields *orderedmap.OrderedMap[string, []Value]
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{fields: orderedmap.New[string, []Value]()}
}

// Add appends raw string values to a field, creating it if needed.
// It returns r so calls can be chained:
//
//	rec := recset.NewRecord().Add("name", "Ada").Add("tag", "math", "cs")
func (r *Record) Add(field string, values ...string) *Record {
	current, _ := r.fields.Get(field)
	for _, v := range values {
		current = append(current, StringValue(v))
	}

	r.fields.Set(field, current)

	return r
}

// Set replaces the values of a field.
func (r *Record) Set(field string, values []Value) {
	r.fields.Set(field, append([]Value(nil), values...))
}

// Get returns the values of a field.
func (r *Record) Get(field string) ([]Value, bool) {
	values, ok := r.fields.Get(field)
	if !ok {
		return nil, false
	}

	return append([]Value(nil), values...), true
}

// Strings returns the values of a field rendered as strings.
func (r *Record) Strings(field string) []string {
	values, ok := r.fields.Get(field)
	if !ok {
		return nil
	}

	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}

	return out
}

// Has reports whether the field is present.
func (r *Record) Has(field string) bool {
	_, ok := r.fields.Get(field)

	return ok
}

// Fields returns the field names in record order.
func (r *Record) Fields() []string {
	names := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}

	return names
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return r.fields.Len()
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	out := NewRecord()
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		out.fields.Set(pair.Key, append([]Value(nil), pair.Value...))
	}

	return out
}

// stringMap renders the record for JSON export, keeping field order.
func (r *Record) stringMap() *orderedmap.OrderedMap[string, []string] {
	out := orderedmap.New[string, []string](r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, r.Strings(pair.Key))
	}

	return out
}
