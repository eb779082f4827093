package recset

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// autoDateLayout is the form of auto-generated date values.
const autoDateLayout = "2006-01-02"

// RecordSet holds a validated schema, the field registry and the records,
// in insertion order.
//
// A RecordSet is not safe for concurrent use. Batch insertions must be
// serialized by the caller: auto-generated ints are derived from the
// records stored when each record is validated.
type RecordSet struct {
	schema *compiledSchema

	// fields is the union of every field name ever inserted.
	fields *orderedmap.OrderedMap[string, struct{}]

	// records maps the primary key value (or a 1-based sequence number when
	// no key is declared) to a validated record.
	records *orderedmap.OrderedMap[string, *Record]

	now     func() time.Time
	newUUID func() (uuid.UUID, error)
}

// Option configures a [RecordSet].
type Option func(*RecordSet)

// WithClock sets the time source for auto-generated dates. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(rs *RecordSet) {
		rs.now = now
	}
}

// WithUUIDSource sets the generator for auto-generated uuids.
// Default: uuid.NewRandom.
func WithUUIDSource(gen func() (uuid.UUID, error)) Option {
	return func(rs *RecordSet) {
		rs.newUUID = gen
	}
}

// New validates the schema and returns an empty record set.
// A schema problem returns a [*SchemaError] and no record set.
func New(schema Schema, opts ...Option) (*RecordSet, error) {
	cs, err := compileSchema(schema)
	if err != nil {
		return nil, err
	}

	rs := &RecordSet{
		schema:  cs,
		fields:  orderedmap.New[string, struct{}](),
		records: orderedmap.New[string, *Record](),
		now:     time.Now,
		newUUID: uuid.NewRandom,
	}

	for _, opt := range opts {
		opt(rs)
	}

	return rs, nil
}

// Schema returns a copy of the validated schema.
func (rs *RecordSet) Schema() Schema {
	return rs.schema.clone()
}

// ResolveType returns the primitive type of a field, following custom type
// links. ok is false for untyped fields.
func (rs *RecordSet) ResolveType(field string) (TypeDef, bool) {
	t, ok := rs.resolve(field)

	return t.TypeDef.clone(), ok
}

func (rs *RecordSet) resolve(field string) (resolvedType, bool) {
	t, ok := rs.schema.resolved[field]

	return t, ok
}

// Fields returns every field name ever inserted, in first-seen order.
func (rs *RecordSet) Fields() []string {
	names := make([]string, 0, rs.fields.Len())
	for pair := rs.fields.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}

	return names
}

// RecordCount returns the number of stored records.
func (rs *RecordSet) RecordCount() int {
	return rs.records.Len()
}

// Records returns copies of all records in insertion order.
func (rs *RecordSet) Records() []*Record {
	out := make([]*Record, 0, rs.records.Len())
	for pair := rs.records.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.Clone())
	}

	return out
}

// Keys returns the store keys in insertion order: primary key values, or
// "1", "2", ... when the schema declares no key.
func (rs *RecordSet) Keys() []string {
	keys := make([]string, 0, rs.records.Len())
	for pair := rs.records.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}

	return keys
}

// Get returns a copy of the record stored under key.
func (rs *RecordSet) Get(key string) (*Record, bool) {
	rec, ok := rs.records.Get(key)
	if !ok {
		return nil, false
	}

	return rec.Clone(), true
}

// Insert validates and commits records one at a time, in order.
//
// The first invalid record aborts the call with a [*RecordError] wrapping
// the validation error. Records committed before it stay committed; there
// is no rollback. After a complete batch the cardinality constraint is
// checked against the final size and a [*SizeError] is returned if it fails.
//
// A record whose primary key is already stored replaces the stored record
// at its original position.
func (rs *RecordSet) Insert(records ...*Record) error {
	for i, raw := range records {
		rec, err := rs.Validate(raw)
		if err != nil {
			return &RecordError{Index: i + 1, Key: rs.rawKey(raw), Err: err}
		}

		rs.commit(rec)
	}

	return rs.CheckSize()
}

// commit stores a validated record under its key.
func (rs *RecordSet) commit(rec *Record) {
	rs.records.Set(rs.storeKey(rec), rec)
}

// storeKey returns the key rec would be stored under.
func (rs *RecordSet) storeKey(rec *Record) string {
	if rs.schema.Key == "" {
		return strconv.Itoa(rs.records.Len() + 1)
	}

	values, _ := rec.fields.Get(rs.schema.Key)

	return values[0].String()
}

// rawKey is the best-effort key of an unvalidated record, for error context.
func (rs *RecordSet) rawKey(raw *Record) string {
	if rs.schema.Key == "" || raw == nil {
		return ""
	}

	values, ok := raw.fields.Get(rs.schema.Key)
	if !ok || len(values) != 1 {
		return ""
	}

	return values[0].String()
}

// CheckSize checks the store size against the cardinality constraint.
func (rs *RecordSet) CheckSize() error {
	return checkSize(rs.records.Len(), rs.schema.Size)
}

// checkSize validates a final store size against all five conditions.
func checkSize(count int, c *SizeConstraint) error {
	if c == nil || c.Condition.holds(count, c.Amount) {
		return nil
	}

	return &SizeError{Condition: c.Condition, Amount: c.Amount, Count: count, Phase: SizeFinalCheck}
}

// autoInt returns one plus the largest value of field over the stored
// records, or 1 when no stored record has the field.
func (rs *RecordSet) autoInt(field string) int64 {
	var highest int64

	found := false

	for pair := rs.records.Oldest(); pair != nil; pair = pair.Next() {
		values, _ := pair.Value.fields.Get(field)
		for _, v := range values {
			n := v.Int
			if v.Kind != ValueInt {
				parsed, err := parseInt(v.String())
				if err != nil {
					continue
				}

				n = parsed
			}

			if !found || n > highest {
				highest = n
				found = true
			}
		}
	}

	if !found {
		return 1
	}

	return highest + 1
}

// autoValue synthesizes a value for an absent auto field.
func (rs *RecordSet) autoValue(field string) (Value, error) {
	t, _ := rs.resolve(field)

	switch t.Kind {
	case TypeDate:
		return StringValue(rs.now().Format(autoDateLayout)), nil
	case TypeInt:
		return IntValue(rs.autoInt(field)), nil
	case TypeUUID:
		id, err := rs.newUUID()
		if err != nil {
			return Value{}, fmt.Errorf("generate uuid for field %q: %w", field, err)
		}

		return StringValue(id.String()), nil
	default:
		return Value{}, &RecordConstraintError{
			Field: field,
			Err:   fmt.Errorf("%w of type %q", ErrUnsupportedAutoType, t.Kind),
		}
	}
}
