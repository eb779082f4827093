package recset

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// TypeKind is the closed set of field types a schema can declare.
type TypeKind uint8

// Type kinds. TypeNone marks an untyped field; its values are kept as given.
const (
	TypeNone TypeKind = iota
	TypeInt
	TypeLine
	TypeDate
	TypeBool
	TypeReal
	TypeUUID
	TypeRange
	TypeEnum
	TypeSize
	TypeRegexp
	TypeCustom

	typeKindCount
)

var typeKindNames = [typeKindCount]string{
	TypeNone:   "",
	TypeInt:    "int",
	TypeLine:   "line",
	TypeDate:   "date",
	TypeBool:   "bool",
	TypeReal:   "real",
	TypeUUID:   "uuid",
	TypeRange:  "range",
	TypeEnum:   "enum",
	TypeSize:   "size",
	TypeRegexp: "regexp",
	TypeCustom: "custom",
}

func (k TypeKind) String() string {
	if k >= typeKindCount {
		return fmt.Sprintf("TypeKind(%d)", uint8(k))
	}

	return typeKindNames[k]
}

// ParseTypeKind maps a type name ("int", "enum", ...) to its kind.
func ParseTypeKind(name string) (TypeKind, error) {
	for k := TypeInt; k < typeKindCount; k++ {
		if typeKindNames[k] == name {
			return k, nil
		}
	}

	return TypeNone, fmt.Errorf("%w %q", ErrUnknownType, name)
}

// MarshalText implements encoding.TextMarshaler.
func (k TypeKind) MarshalText() ([]byte, error) {
	if k == TypeNone || k >= typeKindCount {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(k))
	}

	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *TypeKind) UnmarshalText(text []byte) error {
	kind, err := ParseTypeKind(string(text))
	if err != nil {
		return err
	}

	*k = kind

	return nil
}

// TypeDef is a type definition. Only the parameters of its Kind are meaningful:
//   - range: Min, Max (both set with Min < Max, or both nil)
//   - enum: Values
//   - size: Limit (character count)
//   - regexp: Pattern
//   - custom: Name of an entry in [Schema.CustomTypes]
type TypeDef struct {
	Kind    TypeKind `json:"type"`
	Min     *int64   `json:"min,omitempty"`
	Max     *int64   `json:"max,omitempty"`
	Values  []string `json:"values,omitempty"`
	Limit   int      `json:"limit,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	Name    string   `json:"name,omitempty"`
}

// Int, Line, Date, Bool, Real and UUID build parameterless definitions.
func Int() TypeDef  { return TypeDef{Kind: TypeInt} }
func Line() TypeDef { return TypeDef{Kind: TypeLine} }
func Date() TypeDef { return TypeDef{Kind: TypeDate} }
func Bool() TypeDef { return TypeDef{Kind: TypeBool} }
func Real() TypeDef { return TypeDef{Kind: TypeReal} }
func UUID() TypeDef { return TypeDef{Kind: TypeUUID} }

// Range builds a bounded integer range definition.
func Range(minValue, maxValue int64) TypeDef {
	return TypeDef{Kind: TypeRange, Min: &minValue, Max: &maxValue}
}

// Enum builds an enumeration definition.
func Enum(values ...string) TypeDef {
	return TypeDef{Kind: TypeEnum, Values: values}
}

// Size builds a maximum-length definition.
func Size(limit int) TypeDef {
	return TypeDef{Kind: TypeSize, Limit: limit}
}

// Regexp builds a pattern definition; values must match at their start.
func Regexp(pattern string) TypeDef {
	return TypeDef{Kind: TypeRegexp, Pattern: pattern}
}

// Custom builds a reference to a named custom type.
func Custom(name string) TypeDef {
	return TypeDef{Kind: TypeCustom, Name: name}
}

// Condition is a cardinality comparison operator.
type Condition string

// Cardinality conditions.
const (
	CondEqual        Condition = "=="
	CondLess         Condition = "<"
	CondLessEqual    Condition = "<="
	CondGreater      Condition = ">"
	CondGreaterEqual Condition = ">="
)

// Valid reports whether c is one of the five supported operators.
func (c Condition) Valid() bool {
	switch c {
	case CondEqual, CondLess, CondLessEqual, CondGreater, CondGreaterEqual:
		return true
	default:
		return false
	}
}

// upperBound reports whether c can be enforced per record before commit.
func (c Condition) upperBound() bool {
	return c == CondLess || c == CondLessEqual
}

// holds reports whether count satisfies "count c amount".
func (c Condition) holds(count, amount int) bool {
	switch c {
	case CondEqual:
		return count == amount
	case CondLess:
		return count < amount
	case CondLessEqual:
		return count <= amount
	case CondGreater:
		return count > amount
	case CondGreaterEqual:
		return count >= amount
	default:
		return false
	}
}

func describeCondition(c Condition, amount int) string {
	switch c {
	case CondEqual:
		return fmt.Sprintf("%d records", amount)
	case CondLess:
		return fmt.Sprintf("less than %d records", amount)
	case CondLessEqual:
		return fmt.Sprintf("%d records or less", amount)
	case CondGreater:
		return fmt.Sprintf("more than %d records", amount)
	case CondGreaterEqual:
		return fmt.Sprintf("%d records or more", amount)
	default:
		return fmt.Sprintf("%s %d records", c, amount)
	}
}

// SizeConstraint bounds the number of records in a set.
type SizeConstraint struct {
	Condition Condition `json:"condition"`
	Amount    int       `json:"amount"`
}

// Schema describes the fields, types and constraints of a record set.
//
// A Schema is plain data; [New] validates it and keeps a private copy, so
// mutating the value afterwards has no effect on the record set.
type Schema struct {
	// Name is the record set name (the recfile "%rec" value). Optional.
	Name string `json:"name,omitempty"`

	CustomTypes map[string]TypeDef `json:"custom_types,omitempty"`
	FieldTypes  map[string]TypeDef `json:"field_types,omitempty"`

	Mandatory []string `json:"mandatory,omitempty"`
	Unique    []string `json:"unique,omitempty"`
	Allowed   []string `json:"allowed,omitempty"`
	Prohibit  []string `json:"prohibit,omitempty"`
	Key       string   `json:"key,omitempty"`
	Auto      []string `json:"auto,omitempty"`
	Sort      []string `json:"sort,omitempty"`

	Size *SizeConstraint `json:"size,omitempty"`
}

// ParseSchemaJSON decodes a schema from its JSON form, e.g.
//
//	{"key": "id", "field_types": {"id": {"type": "int"}}}
func ParseSchemaJSON(data []byte) (Schema, error) {
	var s Schema

	err := json.Unmarshal(data, &s)
	if err != nil {
		return Schema{}, fmt.Errorf("decode schema: %w", err)
	}

	return s, nil
}

// clone returns a deep copy so the record set owns its schema exclusively.
func (s Schema) clone() Schema {
	out := s
	out.CustomTypes = cloneTypeMap(s.CustomTypes)
	out.FieldTypes = cloneTypeMap(s.FieldTypes)
	out.Mandatory = cloneStrings(s.Mandatory)
	out.Unique = cloneStrings(s.Unique)
	out.Allowed = cloneStrings(s.Allowed)
	out.Prohibit = cloneStrings(s.Prohibit)
	out.Auto = cloneStrings(s.Auto)
	out.Sort = cloneStrings(s.Sort)

	if s.Size != nil {
		size := *s.Size
		out.Size = &size
	}

	return out
}

func (d TypeDef) clone() TypeDef {
	out := d
	out.Values = cloneStrings(d.Values)

	if d.Min != nil {
		v := *d.Min
		out.Min = &v
	}

	if d.Max != nil {
		v := *d.Max
		out.Max = &v
	}

	return out
}

func cloneTypeMap(m map[string]TypeDef) map[string]TypeDef {
	if m == nil {
		return nil
	}

	out := make(map[string]TypeDef, len(m))
	for k, v := range m {
		out[k] = v.clone()
	}

	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}

	return append([]string(nil), s...)
}

// resolvedType is a primitive definition with its pattern compiled once.
type resolvedType struct {
	TypeDef

	re *regexp.Regexp // anchored at start; regexp kind only
}
