package recset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// recContinuation replaces embedded newlines in rec output.
const recContinuation = "\n+ "

// DefaultValueSeparator joins multiple values of one field in a CSV cell.
const DefaultValueSeparator = "|"

// Format errors.
var (
	ErrNotArray     = errors.New("records must be submitted as an array of objects")
	ErrNotObject    = errors.New("each record must be a JSON object")
	ErrBadLeaf      = errors.New("values must be strings or arrays of strings")
	ErrExtraColumns = errors.New("row has more cells than the header")
	ErrNoHeader     = errors.New("missing header row")
)

// GetRec renders every record as "field: value" lines, one line per value,
// in each record's field order. Newlines inside a value become "\n+ ".
// Records are separated by a blank line.
func (rs *RecordSet) GetRec() string {
	var b strings.Builder

	first := true

	for pair := rs.records.Oldest(); pair != nil; pair = pair.Next() {
		if !first {
			b.WriteString("\n\n")
		}

		first = false

		writeRecLines(&b, pair.Value)
	}

	return b.String()
}

// Rec renders one record the way [RecordSet.GetRec] renders each record.
func (r *Record) Rec() string {
	var b strings.Builder

	writeRecLines(&b, r)

	return b.String()
}

func writeRecLines(b *strings.Builder, rec *Record) {
	firstLine := true

	for pair := rec.fields.Oldest(); pair != nil; pair = pair.Next() {
		for _, v := range pair.Value {
			if !firstLine {
				b.WriteByte('\n')
			}

			firstLine = false

			b.WriteString(pair.Key)
			b.WriteString(": ")
			b.WriteString(strings.ReplaceAll(v.String(), "\n", recContinuation))
		}
	}
}

// CSVOption configures CSV export and import.
type CSVOption func(*csvOptions)

type csvOptions struct {
	valueSeparator string
	split          bool
	headers        bool
	delimiter      rune
}

// WithValueSeparator sets the separator between values of one field.
// Export defaults to "|"; import only splits cells when this option is given.
func WithValueSeparator(sep string) CSVOption {
	return func(o *csvOptions) {
		o.valueSeparator = sep
		o.split = sep != ""
	}
}

// WithHeaders toggles the header row on export. Default: true.
func WithHeaders(include bool) CSVOption {
	return func(o *csvOptions) {
		o.headers = include
	}
}

// WithDelimiter sets the CSV cell delimiter. Default: ','.
func WithDelimiter(r rune) CSVOption {
	return func(o *csvOptions) {
		o.delimiter = r
	}
}

func newCSVOptions(opts []CSVOption) csvOptions {
	o := csvOptions{valueSeparator: DefaultValueSeparator, headers: true, delimiter: ','}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// GetCSV renders the records as CSV. Columns follow [RecordSet.Fields];
// a record without a field gets an empty cell.
func (rs *RecordSet) GetCSV(opts ...CSVOption) (string, error) {
	o := newCSVOptions(opts)
	fields := rs.Fields()

	var buf bytes.Buffer

	w := csv.NewWriter(&buf)
	w.Comma = o.delimiter

	if o.headers {
		if err := w.Write(fields); err != nil {
			return "", &FormatError{Format: "csv", Err: err}
		}
	}

	row := make([]string, len(fields))

	for pair := rs.records.Oldest(); pair != nil; pair = pair.Next() {
		for i, field := range fields {
			row[i] = strings.Join(pair.Value.Strings(field), o.valueSeparator)
		}

		if err := w.Write(row); err != nil {
			return "", &FormatError{Format: "csv", Err: err}
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return "", &FormatError{Format: "csv", Err: err}
	}

	return buf.String(), nil
}

// ParseCSV converts CSV text with a header row into raw records.
//
// Cells are split on the value separator only when [WithValueSeparator] is
// given; otherwise each cell is a single value. Empty cells leave the field
// out of the record.
func ParseCSV(data string, opts ...CSVOption) ([]*Record, error) {
	o := csvOptions{delimiter: ','}
	for _, opt := range opts {
		opt(&o)
	}

	if !validDelimiter(o.delimiter) {
		return nil, &FormatError{Format: "csv", Err: fmt.Errorf("invalid delimiter %q", o.delimiter)}
	}

	r := csv.NewReader(strings.NewReader(data))
	r.Comma = o.delimiter
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}

		return nil, &FormatError{Format: "csv", Err: err}
	}

	if len(header) == 0 {
		return nil, &FormatError{Format: "csv", Err: ErrNoHeader}
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, &FormatError{Format: "csv", Err: err}
	}

	records := make([]*Record, 0, len(rows))

	for i, row := range rows {
		if len(row) > len(header) {
			return nil, &FormatError{Format: "csv", Err: fmt.Errorf("%w (line %d)", ErrExtraColumns, i+2)}
		}

		rec := NewRecord()

		for col, cell := range row {
			if cell == "" {
				continue
			}

			if o.split {
				rec.Add(header[col], strings.Split(cell, o.valueSeparator)...)
			} else {
				rec.Add(header[col], cell)
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

func validDelimiter(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}

// InsertCSV parses CSV data and inserts the rows as one batch.
func (rs *RecordSet) InsertCSV(data string, opts ...CSVOption) error {
	records, err := ParseCSV(data, opts...)
	if err != nil {
		return err
	}

	return rs.Insert(records...)
}

// GetJSON renders the records as a JSON array of objects whose values are
// arrays of strings. Object keys keep each record's field order.
func (rs *RecordSet) GetJSON() (string, error) {
	out := make([]*orderedmap.OrderedMap[string, []string], 0, rs.records.Len())
	for pair := rs.records.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.stringMap())
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", &FormatError{Format: "json", Err: err}
	}

	return string(data), nil
}

// ParseJSON converts a JSON array of objects into raw records. A value may
// be an array of strings or a single string, which becomes a one-value field.
// Field order follows the object's key order.
func ParseJSON(data string) ([]*Record, error) {
	var top json.RawMessage

	if err := json.Unmarshal([]byte(data), &top); err != nil {
		return nil, &FormatError{Format: "json", Err: err}
	}

	if kind := jsonKind(top); kind != "array" {
		return nil, &FormatError{Format: "json", Err: fmt.Errorf("%w, not as %s", ErrNotArray, kind)}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(top, &items); err != nil {
		return nil, &FormatError{Format: "json", Err: err}
	}

	records := make([]*Record, 0, len(items))

	for i, item := range items {
		if kind := jsonKind(item); kind != "object" {
			return nil, &FormatError{Format: "json", Err: fmt.Errorf("%w; found %s at index %d", ErrNotObject, kind, i)}
		}

		obj := orderedmap.New[string, json.RawMessage]()
		if err := json.Unmarshal(item, obj); err != nil {
			return nil, &FormatError{Format: "json", Err: err}
		}

		rec := NewRecord()

		for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
			values, err := jsonValues(pair.Value)
			if err != nil {
				return nil, &FormatError{Format: "json", Err: fmt.Errorf("field %q of record %d: %w", pair.Key, i, err)}
			}

			rec.Add(pair.Key, values...)
		}

		records = append(records, rec)
	}

	return records, nil
}

func jsonValues(raw json.RawMessage) ([]string, error) {
	switch kind := jsonKind(raw); kind {
	case "string":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}

		return []string{s}, nil
	case "array":
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}

		values := make([]string, len(items))

		for i, item := range items {
			if jsonKind(item) != "string" {
				return nil, fmt.Errorf("%w; found %s in array", ErrBadLeaf, jsonKind(item))
			}

			if err := json.Unmarshal(item, &values[i]); err != nil {
				return nil, err
			}
		}

		return values, nil
	default:
		return nil, fmt.Errorf("%w; found %s", ErrBadLeaf, kind)
	}
}

// jsonKind names the JSON type of a syntactically valid value.
func jsonKind(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "nothing"
	}

	switch trimmed[0] {
	case '[':
		return "array"
	case '{':
		return "object"
	case '"':
		return "string"
	case 't', 'f':
		return "bool"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

// InsertJSON parses JSON data and inserts the objects as one batch.
func (rs *RecordSet) InsertJSON(data string) error {
	records, err := ParseJSON(data)
	if err != nil {
		return err
	}

	return rs.Insert(records...)
}
