// Package recfile reads and writes the line-record text format of GNU
// recutils for package recset.
//
// Supported subset:
//
//	%rec: Book
//	%key: Title
//	%typedef: Isbn regexp /[0-9]{3}-[0-9]{10}/
//	%type: Isbn Isbn
//	%type: Year,Pages int
//	%mandatory: Author
//
//	Title: GNU Emacs Manual
//	Author: Richard M. Stallman
//	Note: first line
//	+ second line
//
// [Parse] returns the schema and the raw records, [Load] also validates
// them into a [recset.RecordSet], and [Format] writes a set back out.
package recfile
