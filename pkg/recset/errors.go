package recset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Schema problems. Every problem in a [SchemaError] wraps one of these.
var (
	ErrUnknownType          = errors.New("unknown type")
	ErrUndefinedCustomType  = errors.New("custom type is not defined")
	ErrCustomTypeDepth      = errors.New("custom type link threshold exceeded")
	ErrCyclicCustomType     = errors.New("cyclic custom type reference")
	ErrFieldConflict        = errors.New("conflicting field roles")
	ErrInvalidPattern       = errors.New("invalid regexp pattern")
	ErrInvalidRange         = errors.New("invalid range")
	ErrInvalidSizeLimit     = errors.New("size types must have a limit greater than zero")
	ErrEmptyEnum            = errors.New("enum types must specify all allowed values")
	ErrInvalidSizeCondition = errors.New("invalid record set size constraint")
	ErrUnsupportedAutoType  = errors.New("cannot auto-generate a value")
)

// Record constraint violations. [RecordConstraintError.Err] is one of these.
var (
	ErrMissingKey       = errors.New("missing primary key field")
	ErrMultipleKeys     = errors.New("primary key field can only have a single value per record")
	ErrMissingMandatory = errors.New("missing mandatory field")
	ErrNotUnique        = errors.New("more than 1 value found for unique field")
	ErrNotAllowed       = errors.New("field not in allowed fields")
	ErrProhibited       = errors.New("prohibited field present in record")
	ErrEmptyField       = errors.New("field has no values")
)

// SchemaError reports every problem found while validating a [Schema].
// No record set is created when it is returned.
type SchemaError struct {
	Problems []error
}

func (e *SchemaError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "invalid schema"
	}

	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}

	return "invalid schema: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual problems to [errors.Is] and [errors.As].
func (e *SchemaError) Unwrap() []error {
	if e == nil {
		return nil
	}

	return e.Problems
}

// FieldValidationError reports a raw value that failed its type's coercion rule.
type FieldValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FieldValidationError) Error() string {
	return fmt.Sprintf("value %q of field %q %s", e.Value, e.Field, e.Reason)
}

// RecordConstraintError reports a role-constraint violation for one field.
type RecordConstraintError struct {
	Field string
	Err   error
}

func (e *RecordConstraintError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}

	return e.Err.Error() + " " + strconv.Quote(e.Field)
}

func (e *RecordConstraintError) Unwrap() error {
	return e.Err
}

// SizePhase tells when a [SizeError] was detected.
type SizePhase uint8

// Size check phases.
const (
	// SizePreCheck is the per-record upper-bound check done before commit.
	SizePreCheck SizePhase = iota
	// SizeFinalCheck is the check over the whole store once a batch completes.
	SizeFinalCheck
)

// SizeError reports a violated cardinality constraint.
type SizeError struct {
	Condition Condition
	Amount    int
	// Count is the store size the constraint was evaluated against. For the
	// pre-check this is the size the store would have after the insertion.
	Count int
	Phase SizePhase
}

func (e *SizeError) Error() string {
	if e.Phase == SizePreCheck {
		return fmt.Sprintf("adding another record would make the record set size %d, violating constraint %s %d",
			e.Count, e.Condition, e.Amount)
	}

	return fmt.Sprintf("record set must have %s but has %d", describeCondition(e.Condition, e.Amount), e.Count)
}

// FormatError reports malformed CSV or JSON input.
type FormatError struct {
	Format string
	Err    error
}

func (e *FormatError) Error() string {
	return e.Format + ": " + e.Err.Error()
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// RecordError attaches batch context to the first failing record of an insert.
//
// Formats as "<cause> (record=N key=K)"; N is 1-based within the batch.
type RecordError struct {
	Index int
	Key   string
	Err   error
}

func (e *RecordError) Error() string {
	if e == nil {
		return ""
	}

	parts := []string{"record=" + strconv.Itoa(e.Index)}
	if e.Key != "" {
		parts = append(parts, "key="+e.Key)
	}

	suffix := "(" + strings.Join(parts, " ") + ")"
	if e.Err == nil {
		return suffix
	}

	return e.Err.Error() + " " + suffix
}

func (e *RecordError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}
