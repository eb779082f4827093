// Package recset is a typed, schema-validated record store modeled on GNU
// recfile semantics.
//
// A [RecordSet] owns a [Schema], a field registry (every field name ever
// inserted) and an insertion-ordered store of records. Records map field
// names to one or more values; a field may repeat.
//
// # Schema
//
// The schema declares field types and field roles:
//
//	schema := recset.Schema{
//	    Name: "Book",
//	    CustomTypes: map[string]recset.TypeDef{
//	        "Isbn": recset.Regexp(`[0-9]{3}-[0-9]{10}`),
//	    },
//	    FieldTypes: map[string]recset.TypeDef{
//	        "Id":    recset.Int(),
//	        "Isbn":  recset.Custom("Isbn"),
//	        "Added": recset.Date(),
//	    },
//	    Key:       "Title",
//	    Mandatory: []string{"Author"},
//	    Auto:      []string{"Id", "Added"},
//	    Size:      &recset.SizeConstraint{Condition: recset.CondLessEqual, Amount: 100},
//	}
//
// [New] validates the whole schema up front and returns a [*SchemaError]
// listing every problem: undefined or cyclic custom types, custom type
// chains longer than 10 links, role fields that are prohibited or outside
// the allow-list, an auto-generated key, bad regexp/range/size/enum
// parameters, a non-positive cardinality, or auto fields not typed int,
// date or uuid. Custom types are resolved once, so record validation never
// follows links.
//
// # Types
//
//	int     decimal or 0x/-0x hex, stored as int64
//	line    any text without a newline
//	date    free-form date text, kept as written
//	bool    0, 1, true, false, yes, no
//	real    decimal text, stored as float64
//	range   int within [Min, Max], stored as int64
//	enum    one of Values
//	size    at most Limit characters
//	regexp  matches Pattern at the start of the value
//	uuid    canonical version 4 UUID, any case
//
// # Insertion
//
// [RecordSet.Insert] validates records one at a time with
// [RecordSet.Validate] and commits each valid one immediately. The first
// invalid record stops the batch; earlier records of the batch stay
// committed. Cardinality is checked twice: "<" and "<=" before each commit,
// every condition once the batch is done.
//
// Absent auto fields are generated: dates as today's YYYY-MM-DD, ints as one
// more than the largest value stored in that field, uuids as random v4 ids.
//
// # Serialization
//
// [RecordSet.GetRec] writes the line-record format, [RecordSet.GetCSV] and
// [RecordSet.InsertCSV] handle CSV with multi-value cells joined by a
// separator, [RecordSet.GetJSON] and [RecordSet.InsertJSON] handle arrays
// of objects. Parsing the line-record format lives in package recfile.
package recset
