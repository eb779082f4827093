package recset

import (
	"errors"
	"slices"
)

var errNilRecord = errors.New("record is nil")

// Validate checks one raw record against the schema and returns the
// coerced record, or an error; never both. It does not store the record,
// so a caller may validate a whole batch and collect every error.
//
// Checks run in this order and stop at the first failure:
//  1. primary key present with exactly one value
//  2. per-field type coercion
//  3. auto-generation of absent auto fields
//  4. mandatory fields present
//  5. unique fields have at most one value
//  6. no field outside the allow-list
//  7. no prohibited field
//  8. an upper-bound size constraint (< or <=) still holds with this record
//
// On success every field name of the record is added to the field registry.
func (rs *RecordSet) Validate(raw *Record) (*Record, error) {
	if raw == nil || raw.fields == nil {
		return nil, errNilRecord
	}

	cs := rs.schema

	if cs.Key != "" {
		values, ok := raw.fields.Get(cs.Key)
		if !ok || len(values) == 0 {
			return nil, &RecordConstraintError{Field: cs.Key, Err: ErrMissingKey}
		}

		if len(values) > 1 {
			return nil, &RecordConstraintError{Field: cs.Key, Err: ErrMultipleKeys}
		}
	}

	rec := NewRecord()

	for pair := raw.fields.Oldest(); pair != nil; pair = pair.Next() {
		field, values := pair.Key, pair.Value
		if len(values) == 0 {
			return nil, &RecordConstraintError{Field: field, Err: ErrEmptyField}
		}

		coerced := values

		if t, ok := rs.resolve(field); ok {
			var err error

			coerced, err = coerceValues(t, field, values)
			if err != nil {
				return nil, err
			}
		}

		rec.Set(field, coerced)
	}

	for _, field := range cs.Auto {
		if rec.Has(field) {
			continue
		}

		v, err := rs.autoValue(field)
		if err != nil {
			return nil, err
		}

		rec.Set(field, []Value{v})
	}

	for _, field := range cs.Mandatory {
		if !rec.Has(field) {
			return nil, &RecordConstraintError{Field: field, Err: ErrMissingMandatory}
		}
	}

	for _, field := range cs.Unique {
		values, _ := rec.fields.Get(field)
		if len(values) > 1 {
			return nil, &RecordConstraintError{Field: field, Err: ErrNotUnique}
		}
	}

	names := rec.Fields()

	if cs.allowed != nil {
		for _, field := range names {
			if _, ok := cs.allowed[field]; !ok {
				return nil, &RecordConstraintError{Field: field, Err: ErrNotAllowed}
			}
		}
	}

	for _, field := range cs.Prohibit {
		if slices.Contains(names, field) {
			return nil, &RecordConstraintError{Field: field, Err: ErrProhibited}
		}
	}

	if err := rs.precheckSize(rec); err != nil {
		return nil, err
	}

	for _, field := range names {
		rs.fields.Set(field, struct{}{})
	}

	return rec, nil
}

// precheckSize enforces < and <= constraints before rec is committed, so an
// upper bound is never exceeded, even in the middle of a batch.
func (rs *RecordSet) precheckSize(rec *Record) error {
	c := rs.schema.Size
	if c == nil || !c.Condition.upperBound() {
		return nil
	}

	after := rs.records.Len()
	if _, replaces := rs.records.Get(rs.storeKey(rec)); !replaces {
		after++
	}

	if c.Condition.holds(after, c.Amount) {
		return nil
	}

	return &SizeError{Condition: c.Condition, Amount: c.Amount, Count: after, Phase: SizePreCheck}
}
