package recfile

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/calvinalkan/recnotes/pkg/recset"
)

// Parse errors. Every error returned by [Parse] wraps one of these in a
// [*ParseError].
var (
	ErrSyntax              = errors.New("syntax error")
	ErrBadDirective        = errors.New("invalid descriptor directive")
	ErrMisplacedDescriptor = errors.New("misplaced record descriptor")
)

// ParseError reports the line a parse problem was found on.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse recfile line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(line int, base error, format string, args ...any) error {
	return &ParseError{Line: line, Err: fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))}
}

var fieldNameRe = regexp.MustCompile(`^[A-Za-z%][A-Za-z0-9_]*$`)

// Document is a parsed recfile: the schema from its descriptor (zero when
// there is none), the raw, unvalidated data records, and the text the
// schema does not capture, so [Document.Format] can write it back.
type Document struct {
	Schema        recset.Schema
	HasDescriptor bool
	Records       []*recset.Record

	// Header holds the comment lines before and inside the descriptor.
	Header []string
	// Annotations holds directives that are kept but not interpreted
	// (%doc, %singular, %confidential, %constraint), in file order.
	Annotations []Directive
	// RecordComments[i] holds the comment lines read before and inside
	// Records[i].
	RecordComments [][]string
	// Trailer holds the comment lines after the last record.
	Trailer []string

	// recordKeys[i] is the store key Records[i] was loaded under; set by
	// [LoadDocument] when every record got its own key.
	recordKeys []string
}

// Directive is one descriptor line.
type Directive struct {
	Name  string
	Value string
}

type field struct {
	name  string
	value string
	line  int
}

type rawRecord struct {
	fields   []field
	comments []string
	line     int
}

// Parse reads recfile text.
//
// Records are separated by blank lines and hold "name: value" lines. A line
// starting with "+" continues the previous value on a new line; a line
// ending in an odd number of backslashes is joined with the next one; an
// even run of trailing backslashes is literal and stands for half as many.
// Lines starting with "#" are comments. A record made of "%" directives is
// the record descriptor; at most one is allowed and it must precede every
// data record.
func Parse(text string) (*Document, error) {
	records, trailer, err := splitRecords(text)
	if err != nil {
		return nil, err
	}

	doc := &Document{Trailer: trailer}

	for _, rec := range records {
		if strings.HasPrefix(rec.fields[0].name, "%") {
			if doc.HasDescriptor {
				return nil, parseErr(rec.line, ErrMisplacedDescriptor, "only one record descriptor is supported")
			}

			if len(doc.Records) > 0 {
				return nil, parseErr(rec.line, ErrMisplacedDescriptor, "record descriptor must precede data records")
			}

			schema, annotations, err := parseDescriptor(rec)
			if err != nil {
				return nil, err
			}

			doc.Schema = schema
			doc.Annotations = annotations
			doc.Header = rec.comments
			doc.HasDescriptor = true

			continue
		}

		out := recset.NewRecord()

		for _, f := range rec.fields {
			if strings.HasPrefix(f.name, "%") {
				return nil, parseErr(f.line, ErrSyntax, "directive %q inside a data record", f.name)
			}

			out.Add(f.name, f.value)
		}

		doc.Records = append(doc.Records, out)
		doc.RecordComments = append(doc.RecordComments, rec.comments)
	}

	return doc, nil
}

// splitRecords turns text into records of raw fields. Comments belong to
// the record they precede or sit in; the ones after the last record are
// returned separately.
func splitRecords(text string) ([]rawRecord, []string, error) {
	src := newLineSource(text)

	var (
		records []rawRecord
		current rawRecord
	)

	flush := func() {
		if len(current.fields) > 0 {
			records = append(records, current)
			current = rawRecord{}
		}
	}

	for {
		tok, ok := src.nextLogical()
		if !ok {
			break
		}

		switch {
		case strings.TrimSpace(tok.data) == "":
			flush()
		case strings.HasPrefix(tok.data, "#"):
			current.comments = append(current.comments, tok.data)
		case strings.HasPrefix(tok.data, "+"):
			if len(current.fields) == 0 {
				return nil, nil, parseErr(tok.num, ErrSyntax, "continuation line without a field")
			}

			rest := strings.TrimPrefix(tok.data, "+")
			rest = strings.TrimPrefix(rest, " ")

			last := &current.fields[len(current.fields)-1]
			last.value += "\n" + rest
		default:
			name, value, found := strings.Cut(tok.data, ":")
			if !found {
				return nil, nil, parseErr(tok.num, ErrSyntax, "expected 'name: value'")
			}

			if !fieldNameRe.MatchString(name) {
				return nil, nil, parseErr(tok.num, ErrSyntax, "invalid field name %q", name)
			}

			if len(current.fields) == 0 {
				current.line = tok.num
			}

			current.fields = append(current.fields, field{
				name:  name,
				value: strings.TrimLeft(value, " \t"),
				line:  tok.num,
			})
		}
	}

	flush()

	return records, current.comments, nil
}

type lineToken struct {
	data string
	num  int
}

type lineSource struct {
	lines []string
	idx   int
}

func newLineSource(text string) *lineSource {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return &lineSource{}
	}

	return &lineSource{lines: strings.Split(text, "\n")}
}

// nextLogical returns the next line, joined with its successors while it
// ends in an odd number of backslashes. An even run left at the end is
// unescaped to half its length. num is the line number of the first
// physical line.
func (s *lineSource) nextLogical() (lineToken, bool) {
	if s.idx >= len(s.lines) {
		return lineToken{}, false
	}

	tok := lineToken{data: strings.TrimSuffix(s.lines[s.idx], "\r"), num: s.idx + 1}
	s.idx++

	for trailingBackslashes(tok.data)%2 == 1 && s.idx < len(s.lines) {
		tok.data = strings.TrimSuffix(tok.data, `\`) + strings.TrimSuffix(s.lines[s.idx], "\r")
		s.idx++
	}

	if n := trailingBackslashes(tok.data); n > 0 && n%2 == 0 {
		tok.data = tok.data[:len(tok.data)-n/2]
	}

	return tok, true
}

func trailingBackslashes(s string) int {
	return len(s) - len(strings.TrimRight(s, `\`))
}

// parseDescriptor builds a schema from the directives of a descriptor
// record. Directives kept only as annotations are returned in order.
func parseDescriptor(rec rawRecord) (recset.Schema, []Directive, error) {
	var (
		s           recset.Schema
		annotations []Directive
	)

	for _, f := range rec.fields {
		if !strings.HasPrefix(f.name, "%") {
			return recset.Schema{}, nil, parseErr(f.line, ErrBadDirective, "plain field %q inside the record descriptor", f.name)
		}

		words := strings.Fields(f.value)

		switch f.name {
		case "%rec":
			if len(words) == 0 {
				return recset.Schema{}, nil, parseErr(f.line, ErrBadDirective, "%%rec needs a name")
			}

			s.Name = words[0]
		case "%key":
			if len(words) != 1 {
				return recset.Schema{}, nil, parseErr(f.line, ErrBadDirective, "%%key needs exactly one field")
			}

			if s.Key != "" {
				return recset.Schema{}, nil, parseErr(f.line, ErrBadDirective, "%%key given twice")
			}

			s.Key = words[0]
		case "%mandatory":
			s.Mandatory = append(s.Mandatory, words...)
		case "%unique":
			s.Unique = append(s.Unique, words...)
		case "%allowed":
			s.Allowed = append(s.Allowed, words...)
		case "%prohibit":
			s.Prohibit = append(s.Prohibit, words...)
		case "%auto":
			s.Auto = append(s.Auto, words...)
		case "%sort":
			s.Sort = append(s.Sort, words...)
		case "%size":
			size, err := parseSize(words)
			if err != nil {
				return recset.Schema{}, nil, &ParseError{Line: f.line, Err: err}
			}

			s.Size = size
		case "%type":
			names, desc, _ := strings.Cut(strings.TrimSpace(f.value), " ")

			def, err := ParseType(desc)
			if err != nil {
				return recset.Schema{}, nil, &ParseError{Line: f.line, Err: err}
			}

			if s.FieldTypes == nil {
				s.FieldTypes = make(map[string]recset.TypeDef)
			}

			for name := range strings.SplitSeq(names, ",") {
				name = strings.TrimSpace(name)
				if !fieldNameRe.MatchString(name) {
					return recset.Schema{}, nil, parseErr(f.line, ErrBadDirective, "invalid field name %q in %%type", name)
				}

				s.FieldTypes[name] = def
			}
		case "%typedef":
			name, desc, _ := strings.Cut(strings.TrimSpace(f.value), " ")
			if !fieldNameRe.MatchString(name) {
				return recset.Schema{}, nil, parseErr(f.line, ErrBadDirective, "invalid type name %q in %%typedef", name)
			}

			def, err := ParseType(desc)
			if err != nil {
				return recset.Schema{}, nil, &ParseError{Line: f.line, Err: err}
			}

			if s.CustomTypes == nil {
				s.CustomTypes = make(map[string]recset.TypeDef)
			}

			s.CustomTypes[name] = def
		case "%doc", "%singular", "%confidential", "%constraint":
			annotations = append(annotations, Directive{Name: f.name, Value: f.value})
		default:
			return recset.Schema{}, nil, parseErr(f.line, ErrBadDirective, "unsupported directive %q", f.name)
		}
	}

	return s, annotations, nil
}

func parseSize(words []string) (*recset.SizeConstraint, error) {
	cond := recset.CondEqual

	switch len(words) {
	case 1:
	case 2:
		cond = recset.Condition(words[0])
		if !cond.Valid() {
			return nil, fmt.Errorf("%w: unknown %%size operator %q", ErrBadDirective, words[0])
		}

		words = words[1:]
	default:
		return nil, fmt.Errorf("%w: %%size expects [OP] NUMBER", ErrBadDirective)
	}

	n, err := strconv.Atoi(words[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %%size amount %q is not a number", ErrBadDirective, words[0])
	}

	return &recset.SizeConstraint{Condition: cond, Amount: n}, nil
}

// ParseType parses a type description as written after the field list of
// %type or the name of %typedef:
//
//	int | line | date | bool | real | uuid
//	range [MIN] MAX
//	enum VALUE...
//	size N
//	regexp /PATTERN/
//	TYPEDEF_NAME
func ParseType(desc string) (recset.TypeDef, error) {
	desc = strings.TrimSpace(desc)

	words := strings.Fields(desc)
	if len(words) == 0 {
		return recset.TypeDef{}, fmt.Errorf("%w: missing type", ErrBadDirective)
	}

	args := words[1:]

	switch words[0] {
	case "int", "line", "date", "bool", "real", "uuid":
		if len(args) > 0 {
			return recset.TypeDef{}, fmt.Errorf("%w: type %s takes no arguments", ErrBadDirective, words[0])
		}

		kind, err := recset.ParseTypeKind(words[0])
		if err != nil {
			return recset.TypeDef{}, err
		}

		return recset.TypeDef{Kind: kind}, nil
	case "range":
		return parseRange(args)
	case "enum":
		return recset.Enum(args...), nil
	case "size":
		if len(args) != 1 {
			return recset.TypeDef{}, fmt.Errorf("%w: size expects one limit", ErrBadDirective)
		}

		n, err := strconv.Atoi(args[0])
		if err != nil {
			return recset.TypeDef{}, fmt.Errorf("%w: size limit %q is not a number", ErrBadDirective, args[0])
		}

		return recset.Size(n), nil
	case "regexp":
		pattern, err := unquotePattern(strings.TrimSpace(strings.TrimPrefix(desc, "regexp")))
		if err != nil {
			return recset.TypeDef{}, err
		}

		return recset.Regexp(pattern), nil
	default:
		if len(args) > 0 || !fieldNameRe.MatchString(words[0]) {
			return recset.TypeDef{}, fmt.Errorf("%w: unknown type %q", ErrBadDirective, desc)
		}

		return recset.Custom(words[0]), nil
	}
}

func parseRange(args []string) (recset.TypeDef, error) {
	var minValue, maxValue int64

	switch len(args) {
	case 1:
		hi, err := parseBound(args[0])
		if err != nil {
			return recset.TypeDef{}, err
		}

		maxValue = hi
	case 2:
		lo, err := parseBound(args[0])
		if err != nil {
			return recset.TypeDef{}, err
		}

		hi, err := parseBound(args[1])
		if err != nil {
			return recset.TypeDef{}, err
		}

		minValue, maxValue = lo, hi
	default:
		return recset.TypeDef{}, fmt.Errorf("%w: range expects [MIN] MAX", ErrBadDirective)
	}

	return recset.Range(minValue, maxValue), nil
}

func parseBound(s string) (int64, error) {
	switch s {
	case "MIN":
		return math.MinInt64, nil
	case "MAX":
		return math.MaxInt64, nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: range bound %q is not a number", ErrBadDirective, s)
	}

	return n, nil
}

// unquotePattern strips the delimiter around a regexp, e.g. /[a-z]+/.
// Any character may delimit the pattern as long as it ends it too.
func unquotePattern(s string) (string, error) {
	if len(s) < 2 {
		return "", fmt.Errorf("%w: regexp needs a delimited pattern", ErrBadDirective)
	}

	delim := s[0]
	if s[len(s)-1] != delim {
		return "", fmt.Errorf("%w: regexp pattern %s is not closed by %q", ErrBadDirective, s, delim)
	}

	return s[1 : len(s)-1], nil
}
