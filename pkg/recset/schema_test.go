package recset_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/recnotes/pkg/recset"
)

// customChain builds T1 -> T2 -> ... -> Tn -> int and a field typed T1.
func customChain(n int) recset.Schema {
	custom := make(map[string]recset.TypeDef, n)
	for i := 1; i < n; i++ {
		custom[fmt.Sprintf("T%d", i)] = recset.Custom(fmt.Sprintf("T%d", i+1))
	}

	custom[fmt.Sprintf("T%d", n)] = recset.Int()

	return recset.Schema{
		CustomTypes: custom,
		FieldTypes:  map[string]recset.TypeDef{"f": recset.Custom("T1")},
	}
}

func ptr(v int64) *int64 { return &v }

func Test_New_Accepts_Custom_Type_Chain_When_Within_Ten_Hops(t *testing.T) {
	t.Parallel()

	rs, err := recset.New(customChain(10))
	require.NoError(t, err)

	def, ok := rs.ResolveType("f")
	require.True(t, ok)
	assert.Equal(t, recset.TypeInt, def.Kind)
}

func Test_New_Rejects_Custom_Type_Chain_When_Longer_Than_Ten_Hops(t *testing.T) {
	t.Parallel()

	_, err := recset.New(customChain(11))
	require.ErrorIs(t, err, recset.ErrCustomTypeDepth)

	var schemaErr *recset.SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func Test_New_Returns_SchemaError_When_Schema_Is_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		schema recset.Schema
		want   error
	}{
		{
			name: "undefined custom type on field",
			schema: recset.Schema{
				FieldTypes: map[string]recset.TypeDef{"f": recset.Custom("Missing")},
			},
			want: recset.ErrUndefinedCustomType,
		},
		{
			name: "undefined custom type inside custom type",
			schema: recset.Schema{
				CustomTypes: map[string]recset.TypeDef{"A": recset.Custom("B")},
			},
			want: recset.ErrUndefinedCustomType,
		},
		{
			name: "cyclic custom types",
			schema: recset.Schema{
				CustomTypes: map[string]recset.TypeDef{
					"A": recset.Custom("B"),
					"B": recset.Custom("A"),
				},
			},
			want: recset.ErrCyclicCustomType,
		},
		{
			name: "untyped definition",
			schema: recset.Schema{
				FieldTypes: map[string]recset.TypeDef{"f": {}},
			},
			want: recset.ErrUnknownType,
		},
		{
			name:   "mandatory and prohibited",
			schema: recset.Schema{Mandatory: []string{"a"}, Prohibit: []string{"a"}},
			want:   recset.ErrFieldConflict,
		},
		{
			name:   "unique outside allow-list",
			schema: recset.Schema{Unique: []string{"b"}, Allowed: []string{"a"}},
			want:   recset.ErrFieldConflict,
		},
		{
			name:   "key prohibited",
			schema: recset.Schema{Key: "id", Prohibit: []string{"id"}},
			want:   recset.ErrFieldConflict,
		},
		{
			name: "typed field prohibited",
			schema: recset.Schema{
				FieldTypes: map[string]recset.TypeDef{"a": recset.Line()},
				Prohibit:   []string{"a"},
			},
			want: recset.ErrFieldConflict,
		},
		{
			name:   "sort field outside allow-list",
			schema: recset.Schema{Sort: []string{"z"}, Allowed: []string{"a"}},
			want:   recset.ErrFieldConflict,
		},
		{
			name: "key auto-generated",
			schema: recset.Schema{
				Key:        "id",
				Auto:       []string{"id"},
				FieldTypes: map[string]recset.TypeDef{"id": recset.Int()},
			},
			want: recset.ErrFieldConflict,
		},
		{
			name: "empty regexp",
			schema: recset.Schema{
				FieldTypes: map[string]recset.TypeDef{"a": recset.Regexp("")},
			},
			want: recset.ErrInvalidPattern,
		},
		{
			name: "uncompilable regexp in custom type",
			schema: recset.Schema{
				CustomTypes: map[string]recset.TypeDef{"R": recset.Regexp("([a-z")},
			},
			want: recset.ErrInvalidPattern,
		},
		{
			name: "range min not below max",
			schema: recset.Schema{
				FieldTypes: map[string]recset.TypeDef{"a": recset.Range(5, 5)},
			},
			want: recset.ErrInvalidRange,
		},
		{
			name: "range with one bound",
			schema: recset.Schema{
				FieldTypes: map[string]recset.TypeDef{"a": {Kind: recset.TypeRange, Max: ptr(3)}},
			},
			want: recset.ErrInvalidRange,
		},
		{
			name: "size limit zero",
			schema: recset.Schema{
				FieldTypes: map[string]recset.TypeDef{"a": recset.Size(0)},
			},
			want: recset.ErrInvalidSizeLimit,
		},
		{
			name: "enum without values",
			schema: recset.Schema{
				CustomTypes: map[string]recset.TypeDef{"E": recset.Enum()},
			},
			want: recset.ErrEmptyEnum,
		},
		{
			name:   "cardinality amount zero",
			schema: recset.Schema{Size: &recset.SizeConstraint{Condition: recset.CondEqual, Amount: 0}},
			want:   recset.ErrInvalidSizeCondition,
		},
		{
			name:   "cardinality unknown condition",
			schema: recset.Schema{Size: &recset.SizeConstraint{Condition: "!=", Amount: 2}},
			want:   recset.ErrInvalidSizeCondition,
		},
		{
			name: "auto field typed line",
			schema: recset.Schema{
				FieldTypes: map[string]recset.TypeDef{"a": recset.Line()},
				Auto:       []string{"a"},
			},
			want: recset.ErrUnsupportedAutoType,
		},
		{
			name:   "auto field untyped",
			schema: recset.Schema{Auto: []string{"a"}},
			want:   recset.ErrUnsupportedAutoType,
		},
		{
			name: "auto field resolving to enum through custom type",
			schema: recset.Schema{
				CustomTypes: map[string]recset.TypeDef{"E": recset.Enum("x")},
				FieldTypes:  map[string]recset.TypeDef{"a": recset.Custom("E")},
				Auto:        []string{"a"},
			},
			want: recset.ErrUnsupportedAutoType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rs, err := recset.New(tt.schema)
			require.Error(t, err)
			assert.Nil(t, rs)
			require.ErrorIs(t, err, tt.want)

			var schemaErr *recset.SchemaError
			require.ErrorAs(t, err, &schemaErr)
		})
	}
}

func Test_New_Reports_Every_Problem_When_Schema_Has_Several(t *testing.T) {
	t.Parallel()

	_, err := recset.New(recset.Schema{
		Mandatory:  []string{"a"},
		Prohibit:   []string{"a"},
		FieldTypes: map[string]recset.TypeDef{"b": recset.Size(-1)},
		Size:       &recset.SizeConstraint{Condition: recset.CondLess, Amount: -3},
	})

	var schemaErr *recset.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Len(t, schemaErr.Problems, 3)
	assert.ErrorIs(t, err, recset.ErrFieldConflict)
	assert.ErrorIs(t, err, recset.ErrInvalidSizeLimit)
	assert.ErrorIs(t, err, recset.ErrInvalidSizeCondition)
	assert.Contains(t, err.Error(), `prohibited field "a" specified as mandatory`)
}

func Test_New_Accepts_Auto_Field_When_Custom_Type_Resolves_To_UUID(t *testing.T) {
	t.Parallel()

	err := recset.ValidateSchema(recset.Schema{
		CustomTypes: map[string]recset.TypeDef{"Id": recset.Custom("Uid"), "Uid": recset.UUID()},
		FieldTypes:  map[string]recset.TypeDef{"ref": recset.Custom("Id")},
		Auto:        []string{"ref"},
	})
	require.NoError(t, err)
}

func Test_Schema_Returns_Copy_When_Caller_Mutates_Input(t *testing.T) {
	t.Parallel()

	schema := recset.Schema{
		Name:      "Contact",
		Mandatory: []string{"name"},
		FieldTypes: map[string]recset.TypeDef{
			"level": recset.Range(1, 5),
		},
	}

	rs, err := recset.New(schema)
	require.NoError(t, err)

	schema.Mandatory[0] = "changed"
	schema.FieldTypes["level"] = recset.Line()

	got := rs.Schema()
	assert.Equal(t, "Contact", got.Name)
	assert.Equal(t, []string{"name"}, got.Mandatory)
	assert.Equal(t, recset.TypeRange, got.FieldTypes["level"].Kind)

	got.Mandatory[0] = "again"
	assert.Equal(t, []string{"name"}, rs.Schema().Mandatory)
}

func Test_ParseSchemaJSON_Decodes_Type_Names_When_Valid(t *testing.T) {
	t.Parallel()

	schema, err := recset.ParseSchemaJSON([]byte(`{
		"name": "Task",
		"key": "id",
		"custom_types": {"Prio": {"type": "range", "min": 1, "max": 4}},
		"field_types": {
			"id": {"type": "uuid"},
			"prio": {"type": "custom", "name": "Prio"},
			"status": {"type": "enum", "values": ["open", "done"]}
		},
		"mandatory": ["status"],
		"size": {"condition": "<", "amount": 50}
	}`))
	require.NoError(t, err)

	rs, err := recset.New(schema)
	require.NoError(t, err)

	def, ok := rs.ResolveType("prio")
	require.True(t, ok)
	assert.Equal(t, recset.TypeRange, def.Kind)
	assert.Equal(t, int64(1), *def.Min)
	assert.Equal(t, int64(4), *def.Max)
	assert.Equal(t, recset.CondLess, rs.Schema().Size.Condition)
}

func Test_ParseSchemaJSON_Returns_Error_When_Type_Name_Unknown(t *testing.T) {
	t.Parallel()

	_, err := recset.ParseSchemaJSON([]byte(`{"field_types": {"a": {"type": "email"}}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, recset.ErrUnknownType), "got %v", err)
}
