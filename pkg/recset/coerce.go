package recset

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
)

// coerceFunc validates one value of a field and returns its coerced form.
type coerceFunc func(t resolvedType, field string, v Value) (Value, error)

// coercers has exactly one entry per primitive kind. TypeNone and TypeCustom
// never reach coercion: untyped fields are skipped and custom types are
// resolved when the schema is compiled.
var coercers = [typeKindCount]coerceFunc{
	TypeInt:    coerceInt,
	TypeLine:   coerceLine,
	TypeDate:   coerceDate,
	TypeBool:   coerceBool,
	TypeReal:   coerceReal,
	TypeUUID:   coerceUUID,
	TypeRange:  coerceRange,
	TypeEnum:   coerceEnum,
	TypeSize:   coerceSize,
	TypeRegexp: coerceRegexp,
}

var boolValues = []string{"0", "1", "true", "false", "yes", "no"}

// coerceValues applies the coercer of t to every value. The first failing
// value aborts with a [*FieldValidationError].
func coerceValues(t resolvedType, field string, values []Value) ([]Value, error) {
	fn := coercers[t.Kind]
	if fn == nil {
		return values, nil
	}

	out := make([]Value, len(values))

	for i, v := range values {
		c, err := fn(t, field, v)
		if err != nil {
			return nil, err
		}

		out[i] = c
	}

	return out, nil
}

func invalid(field string, v Value, format string, args ...any) error {
	return &FieldValidationError{Field: field, Value: v.String(), Reason: fmt.Sprintf(format, args...)}
}

// parseInt accepts decimal and 0x / -0x hexadecimal notation.
func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)

	neg := false
	digits := s

	if rest, ok := strings.CutPrefix(digits, "-"); ok {
		neg = true
		digits = rest
	}

	hex, isHex := strings.CutPrefix(digits, "0x")
	if !isHex {
		return strconv.ParseInt(s, 10, 64)
	}

	if hex == "" || hex[0] == '-' || hex[0] == '+' {
		return 0, strconv.ErrSyntax
	}

	n, err := strconv.ParseInt(hex, 16, 64)
	if err != nil {
		return 0, err
	}

	if neg {
		n = -n
	}

	return n, nil
}

func coerceInt(_ resolvedType, field string, v Value) (Value, error) {
	if v.Kind == ValueInt {
		return v, nil
	}

	n, err := parseInt(v.String())
	if err != nil {
		return Value{}, invalid(field, v, "cannot be converted to an int")
	}

	return IntValue(n), nil
}

func coerceLine(_ resolvedType, field string, v Value) (Value, error) {
	if strings.Contains(v.String(), "\n") {
		return Value{}, invalid(field, v, "contains a newline character")
	}

	return v, nil
}

func coerceDate(_ resolvedType, field string, v Value) (Value, error) {
	if _, err := dateparse.ParseAny(strings.TrimSpace(v.String())); err != nil {
		return Value{}, invalid(field, v, "cannot be parsed as a date")
	}

	return v, nil
}

func coerceBool(_ resolvedType, field string, v Value) (Value, error) {
	if !slices.Contains(boolValues, v.String()) {
		return Value{}, invalid(field, v, "is not one of %s", strings.Join(boolValues, ", "))
	}

	return v, nil
}

func coerceReal(_ resolvedType, field string, v Value) (Value, error) {
	if v.Kind == ValueReal {
		return v, nil
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
	if err != nil {
		return Value{}, invalid(field, v, "cannot be converted to a real")
	}

	return RealValue(f), nil
}

func coerceRange(t resolvedType, field string, v Value) (Value, error) {
	n := v.Int
	if v.Kind != ValueInt {
		var err error

		n, err = parseInt(v.String())
		if err != nil {
			return Value{}, invalid(field, v, "cannot be converted to an int")
		}
	}

	if t.Max != nil && n > *t.Max {
		return Value{}, invalid(field, v, "exceeds the maximum range value %d", *t.Max)
	}

	if t.Min != nil && n < *t.Min {
		return Value{}, invalid(field, v, "is below the minimum range value %d", *t.Min)
	}

	return IntValue(n), nil
}

func coerceEnum(t resolvedType, field string, v Value) (Value, error) {
	if !slices.Contains(t.Values, v.String()) {
		return Value{}, invalid(field, v, "is not in allowed values [%s]", strings.Join(t.Values, ", "))
	}

	return v, nil
}

func coerceSize(t resolvedType, field string, v Value) (Value, error) {
	if utf8.RuneCountInString(v.String()) > t.Limit {
		return Value{}, invalid(field, v, "is above the size limit of %d characters", t.Limit)
	}

	return v, nil
}

func coerceRegexp(t resolvedType, field string, v Value) (Value, error) {
	if !t.re.MatchString(v.String()) {
		return Value{}, invalid(field, v, "does not match regexp %s", t.Pattern)
	}

	return v, nil
}

// canonicalUUIDLen is the length of the 8-4-4-4-12 textual form.
const canonicalUUIDLen = 36

func coerceUUID(_ resolvedType, field string, v Value) (Value, error) {
	s := v.String()
	if len(s) != canonicalUUIDLen {
		return Value{}, invalid(field, v, "is not a valid UUID4")
	}

	id, err := uuid.Parse(s)
	if err != nil || id.Version() != 4 || id.Variant() != uuid.RFC4122 {
		return Value{}, invalid(field, v, "is not a valid UUID4")
	}

	return v, nil
}
