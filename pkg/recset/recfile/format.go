package recfile

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/calvinalkan/recnotes/pkg/recset"
)

// Load parses text and inserts its data records into a new record set built
// from the descriptor. Text without a descriptor yields an untyped set.
func Load(text string, opts ...recset.Option) (*recset.RecordSet, error) {
	_, rs, err := LoadDocument(text, opts...)

	return rs, err
}

// LoadDocument is [Load] that also returns the parsed document, whose
// [Document.Format] writes the set back with the comments and annotations
// of text preserved.
func LoadDocument(text string, opts ...recset.Option) (*Document, *recset.RecordSet, error) {
	doc, err := Parse(text)
	if err != nil {
		return nil, nil, err
	}

	rs, err := recset.New(doc.Schema, opts...)
	if err != nil {
		return nil, nil, err
	}

	err = rs.Insert(doc.Records...)
	if err != nil {
		return nil, nil, err
	}

	if keys := rs.Keys(); len(keys) == len(doc.Records) {
		doc.recordKeys = keys
	}

	return doc, rs, nil
}

// Format renders a record set as recfile text. With withDescriptor the
// schema is written first as a "%" record; directives always appear in the
// same order so output is stable. The result ends in a newline unless it is
// empty.
func Format(rs *recset.RecordSet, withDescriptor bool) string {
	var parts []string

	if withDescriptor {
		if desc := Descriptor(rs.Schema()); desc != "" {
			parts = append(parts, desc)
		}
	}

	for _, rec := range rs.Records() {
		parts = append(parts, formatRecord(rec))
	}

	return joinParts(parts)
}

// Format renders rs with its descriptor like [Format], adding back the
// comments and annotation directives of d. When d came from
// [LoadDocument] the comments of a record stay in front of it, matched by
// store key; comments whose record is not in rs are written before the
// trailing comments.
func (d *Document) Format(rs *recset.RecordSet) string {
	var parts []string

	desc := Descriptor(rs.Schema())

	var annotations []string
	for _, a := range d.Annotations {
		annotations = append(annotations, escapeLine(a.Name+": "+a.Value))
	}

	if len(annotations) > 0 {
		if strings.HasPrefix(desc, "%rec:") {
			first, rest, _ := strings.Cut(desc, "\n")
			desc = joinLines(first, joinLines(annotations...), rest)
		} else {
			desc = joinLines(joinLines(annotations...), desc)
		}
	}

	if head := joinLines(joinLines(d.Header...), desc); head != "" {
		parts = append(parts, head)
	}

	byKey := make(map[string][]string)

	if d.recordKeys != nil {
		for i, comments := range d.RecordComments {
			byKey[d.recordKeys[i]] = append(byKey[d.recordKeys[i]], comments...)
		}
	}

	records := rs.Records()
	for i, key := range rs.Keys() {
		parts = append(parts, joinLines(joinLines(byKey[key]...), formatRecord(records[i])))
		delete(byKey, key)
	}

	var orphans []string

	for i, comments := range d.RecordComments {
		if d.recordKeys == nil {
			orphans = append(orphans, comments...)
		} else if _, ok := byKey[d.recordKeys[i]]; ok {
			orphans = append(orphans, comments...)
		}
	}

	if tail := joinLines(joinLines(orphans...), joinLines(d.Trailer...)); tail != "" {
		parts = append(parts, tail)
	}

	return joinParts(parts)
}

// formatRecord writes one record as "name: value" lines. A newline inside a
// value continues on a "+ " line; a line ending in backslashes gets them
// doubled so it is not read as a line join.
func formatRecord(rec *recset.Record) string {
	var lines []string

	for _, name := range rec.Fields() {
		values, _ := rec.Get(name)

		for _, v := range values {
			for i, segment := range strings.Split(v.String(), "\n") {
				prefix := name + ": "
				if i > 0 {
					prefix = "+ "
				}

				lines = append(lines, escapeLine(prefix+segment))
			}
		}
	}

	return strings.Join(lines, "\n")
}

func escapeLine(line string) string {
	return line + strings.Repeat(`\`, trailingBackslashes(line))
}

// joinLines joins the non-empty blocks with newlines.
func joinLines(blocks ...string) string {
	var kept []string

	for _, b := range blocks {
		if b != "" {
			kept = append(kept, b)
		}
	}

	return strings.Join(kept, "\n")
}

func joinParts(parts []string) string {
	if len(parts) == 0 {
		return ""
	}

	return strings.Join(parts, "\n\n") + "\n"
}

// Descriptor renders the directives of a schema, one per line, without a
// trailing newline. An empty schema renders as "".
func Descriptor(s recset.Schema) string {
	var lines []string

	add := func(directive string, values ...string) {
		if len(values) > 0 {
			lines = append(lines, directive+": "+strings.Join(values, " "))
		}
	}

	if s.Name != "" {
		add("%rec", s.Name)
	}

	if s.Key != "" {
		add("%key", s.Key)
	}

	for _, name := range slices.Sorted(maps.Keys(s.CustomTypes)) {
		add("%typedef", name, FormatType(s.CustomTypes[name]))
	}

	for _, name := range slices.Sorted(maps.Keys(s.FieldTypes)) {
		add("%type", name, FormatType(s.FieldTypes[name]))
	}

	add("%mandatory", s.Mandatory...)
	add("%unique", s.Unique...)
	add("%allowed", s.Allowed...)
	add("%prohibit", s.Prohibit...)
	add("%auto", s.Auto...)
	add("%sort", s.Sort...)

	if s.Size != nil {
		add("%size", string(s.Size.Condition), strconv.Itoa(s.Size.Amount))
	}

	return strings.Join(lines, "\n")
}

// patternDelimiters are tried in order; the first one absent from the
// pattern delimits it.
const patternDelimiters = "/|#!@%"

// FormatType renders a type definition the way [ParseType] reads it.
func FormatType(def recset.TypeDef) string {
	switch def.Kind {
	case recset.TypeRange:
		if def.Min == nil || def.Max == nil {
			return "range MIN MAX"
		}

		return "range " + formatBound(*def.Min) + " " + formatBound(*def.Max)
	case recset.TypeEnum:
		return strings.Join(append([]string{"enum"}, def.Values...), " ")
	case recset.TypeSize:
		return "size " + strconv.Itoa(def.Limit)
	case recset.TypeRegexp:
		delim := "/"

		for _, d := range patternDelimiters {
			if !strings.ContainsRune(def.Pattern, d) {
				delim = string(d)

				break
			}
		}

		return "regexp " + delim + def.Pattern + delim
	case recset.TypeCustom:
		return def.Name
	default:
		return def.Kind.String()
	}
}

func formatBound(n int64) string {
	switch n {
	case math.MinInt64:
		return "MIN"
	case math.MaxInt64:
		return "MAX"
	default:
		return fmt.Sprint(n)
	}
}
