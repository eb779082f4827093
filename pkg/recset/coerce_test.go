package recset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/recnotes/pkg/recset"
)

func Test_Validate_Coerces_Value_When_Type_Accepts_It(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		def   recset.TypeDef
		value string
		want  recset.Value
	}{
		{name: "decimal int", def: recset.Int(), value: "42", want: recset.IntValue(42)},
		{name: "negative int", def: recset.Int(), value: "-7", want: recset.IntValue(-7)},
		{name: "hex int", def: recset.Int(), value: "0x1F", want: recset.IntValue(31)},
		{name: "negative hex int", def: recset.Int(), value: "-0x1F", want: recset.IntValue(-31)},
		{name: "int with surrounding space", def: recset.Int(), value: " 12 ", want: recset.IntValue(12)},
		{name: "line", def: recset.Line(), value: "one line", want: recset.StringValue("one line")},
		{name: "iso date kept as written", def: recset.Date(), value: "2024-03-01", want: recset.StringValue("2024-03-01")},
		{name: "free-form date", def: recset.Date(), value: "March 1, 2024", want: recset.StringValue("March 1, 2024")},
		{name: "bool yes", def: recset.Bool(), value: "yes", want: recset.StringValue("yes")},
		{name: "bool zero", def: recset.Bool(), value: "0", want: recset.StringValue("0")},
		{name: "real", def: recset.Real(), value: "3.25", want: recset.RealValue(3.25)},
		{name: "real from integer text", def: recset.Real(), value: "2", want: recset.RealValue(2)},
		{name: "range inside", def: recset.Range(1, 10), value: "10", want: recset.IntValue(10)},
		{name: "range hex", def: recset.Range(1, 20), value: "0x10", want: recset.IntValue(16)},
		{name: "enum member", def: recset.Enum("red", "green"), value: "green", want: recset.StringValue("green")},
		{name: "size at limit", def: recset.Size(5), value: "abcde", want: recset.StringValue("abcde")},
		{name: "size counts characters", def: recset.Size(3), value: "äöü", want: recset.StringValue("äöü")},
		{name: "regexp prefix match", def: recset.Regexp("[0-9]{3}"), value: "123abc", want: recset.StringValue("123abc")},
		{
			name:  "uuid v4",
			def:   recset.UUID(),
			value: "7d444840-9dc0-41f3-a2b6-a1f6d7c8e9f0",
			want:  recset.StringValue("7d444840-9dc0-41f3-a2b6-a1f6d7c8e9f0"),
		},
		{
			name:  "uuid v4 upper case",
			def:   recset.UUID(),
			value: "7D444840-9DC0-41F3-A2B6-A1F6D7C8E9F0",
			want:  recset.StringValue("7D444840-9DC0-41F3-A2B6-A1F6D7C8E9F0"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rs, err := recset.New(recset.Schema{FieldTypes: map[string]recset.TypeDef{"f": tt.def}})
			require.NoError(t, err)

			rec, err := rs.Validate(recset.NewRecord().Add("f", tt.value))
			require.NoError(t, err)

			got, ok := rec.Get("f")
			require.True(t, ok)
			assert.Equal(t, []recset.Value{tt.want}, got)
		})
	}
}

func Test_Validate_Returns_FieldValidationError_When_Value_Does_Not_Fit_Type(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		def    recset.TypeDef
		value  string
		reason string
	}{
		{name: "int text", def: recset.Int(), value: "12a", reason: "cannot be converted to an int"},
		{name: "empty hex", def: recset.Int(), value: "0x", reason: "cannot be converted to an int"},
		{name: "signed hex body", def: recset.Int(), value: "0x-5", reason: "cannot be converted to an int"},
		{name: "line with newline", def: recset.Line(), value: "a\nb", reason: "contains a newline character"},
		{name: "date nonsense", def: recset.Date(), value: "not a date", reason: "cannot be parsed as a date"},
		{name: "bool capitalised", def: recset.Bool(), value: "True", reason: "is not one of 0, 1, true, false, yes, no"},
		{name: "real text", def: recset.Real(), value: "1.2.3", reason: "cannot be converted to a real"},
		{name: "range above", def: recset.Range(1, 10), value: "11", reason: "exceeds the maximum range value 10"},
		{name: "range below", def: recset.Range(1, 10), value: "0", reason: "is below the minimum range value 1"},
		{name: "range not int", def: recset.Range(1, 10), value: "five", reason: "cannot be converted to an int"},
		{name: "enum outsider", def: recset.Enum("red", "green"), value: "blue", reason: "is not in allowed values [red, green]"},
		{name: "size above", def: recset.Size(5), value: "abcdef", reason: "is above the size limit of 5 characters"},
		{name: "regexp not at start", def: recset.Regexp("[0-9]{3}"), value: "x123", reason: "does not match regexp [0-9]{3}"},
		{name: "uuid v3", def: recset.UUID(), value: "6fa459ea-ee8a-3ca4-894e-db77e160355e", reason: "is not a valid UUID4"},
		{name: "uuid braces", def: recset.UUID(), value: "{7d444840-9dc0-41f3-a2b6-a1f6d7c8e9f0}", reason: "is not a valid UUID4"},
		{name: "uuid urn", def: recset.UUID(), value: "urn:uuid:7d444840-9dc0-41f3-a2b6-a1f6d7c8e9f0", reason: "is not a valid UUID4"},
		{name: "uuid wrong variant", def: recset.UUID(), value: "7d444840-9dc0-41f3-c2b6-a1f6d7c8e9f0", reason: "is not a valid UUID4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rs, err := recset.New(recset.Schema{FieldTypes: map[string]recset.TypeDef{"f": tt.def}})
			require.NoError(t, err)

			rec, err := rs.Validate(recset.NewRecord().Add("f", tt.value))
			require.Error(t, err)
			assert.Nil(t, rec)

			var fieldErr *recset.FieldValidationError
			require.ErrorAs(t, err, &fieldErr)
			assert.Equal(t, "f", fieldErr.Field)
			assert.Equal(t, tt.value, fieldErr.Value)
			assert.Equal(t, tt.reason, fieldErr.Reason)
		})
	}
}

func Test_Validate_Coerces_Through_Custom_Type_When_Field_Uses_One(t *testing.T) {
	t.Parallel()

	rs, err := recset.New(recset.Schema{
		CustomTypes: map[string]recset.TypeDef{
			"Short": recset.Size(5),
			"Name":  recset.Custom("Short"),
		},
		FieldTypes: map[string]recset.TypeDef{"name": recset.Custom("Name")},
	})
	require.NoError(t, err)

	_, err = rs.Validate(recset.NewRecord().Add("name", "Ada"))
	require.NoError(t, err)

	_, err = rs.Validate(recset.NewRecord().Add("name", "Adelaide"))

	var fieldErr *recset.FieldValidationError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "is above the size limit of 5 characters", fieldErr.Reason)
}

func Test_Validate_Checks_Every_Value_When_Field_Repeats(t *testing.T) {
	t.Parallel()

	rs, err := recset.New(recset.Schema{FieldTypes: map[string]recset.TypeDef{"n": recset.Int()}})
	require.NoError(t, err)

	rec, err := rs.Validate(recset.NewRecord().Add("n", "1", "0x2", "3"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, rec.Strings("n"))

	_, err = rs.Validate(recset.NewRecord().Add("n", "1", "two"))

	var fieldErr *recset.FieldValidationError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "two", fieldErr.Value)
}

func Test_Value_String_Keeps_Decimal_Point_When_Real_Is_Integral(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2.0", recset.RealValue(2).String())
	assert.Equal(t, "2.5", recset.RealValue(2.5).String())
	assert.Equal(t, "1e+21", recset.RealValue(1e21).String())
	assert.Equal(t, "-3", recset.IntValue(-3).String())
	assert.Equal(t, "x", recset.StringValue("x").String())
}
