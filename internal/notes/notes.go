// Package notes finds record sets embedded in markdown notes.
//
// A record set is a fenced code block whose info string starts with
// "rec-data"; its content is recfile text:
//
//	```rec-data
//	%rec: Contact
//	%key: Name
//
//	Name: Ada
//	```
package notes

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/golang-commonmark/markdown"

	"github.com/calvinalkan/recnotes/pkg/recset"
	"github.com/calvinalkan/recnotes/pkg/recset/recfile"
)

// FenceInfo is the fence info word that marks a record set block.
const FenceInfo = "rec-data"

// ErrNoBlock is returned when a requested block index does not exist.
var ErrNoBlock = errors.New("no such rec-data block")

// Block is one rec-data fence of a note.
type Block struct {
	// Index is the 0-based position among the note's rec-data blocks.
	Index int
	// Line is the 1-based line of the opening fence.
	Line int
	// Text is the fence content.
	Text string
}

// BlockError attaches the block position to a load error.
type BlockError struct {
	Index int
	Line  int
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("rec-data block %d (line %d): %v", e.Index, e.Line, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

// View is the read-only data a renderer needs for one block.
type View struct {
	Block Block
	// Name is the %rec name, empty when the block has none.
	Name string
	// Fields lists every field in first-seen order; renderers use it for columns.
	Fields  []string
	Records []*recset.Record
	// JSON is the records as a JSON array of objects.
	JSON string
	Set  *recset.RecordSet
}

var parser = markdown.New()

// Blocks returns the rec-data blocks of a note in document order.
// Fences nested in lists or quotes are included.
func Blocks(note string) []Block {
	var blocks []Block

	for _, tok := range parser.Parse([]byte(note)) {
		fence, ok := tok.(*markdown.Fence)
		if !ok {
			continue
		}

		info, _, _ := strings.Cut(strings.TrimSpace(fence.Params), " ")
		if info != FenceInfo {
			continue
		}

		blocks = append(blocks, Block{
			Index: len(blocks),
			Line:  fence.Map[0] + 1,
			Text:  fence.Content,
		})
	}

	return blocks
}

// LoadBlock loads one block into a record set.
func LoadBlock(b Block, opts ...recset.Option) (*recset.RecordSet, error) {
	rs, err := recfile.Load(b.Text, opts...)
	if err != nil {
		return nil, &BlockError{Index: b.Index, Line: b.Line, Err: err}
	}

	return rs, nil
}

// LoadBlocks loads every block of a note. The first block that fails to
// load aborts with a [*BlockError].
func LoadBlocks(note string, opts ...recset.Option) ([]View, error) {
	blocks := Blocks(note)
	views := make([]View, 0, len(blocks))

	for _, b := range blocks {
		rs, err := LoadBlock(b, opts...)
		if err != nil {
			return nil, err
		}

		data, err := rs.GetJSON()
		if err != nil {
			return nil, &BlockError{Index: b.Index, Line: b.Line, Err: err}
		}

		views = append(views, View{
			Block:   b,
			Name:    rs.Schema().Name,
			Fields:  rs.Fields(),
			Records: rs.Records(),
			JSON:    data,
			Set:     rs,
		})
	}

	return views, nil
}

// Load returns the record set of the block at index.
func Load(note string, index int, opts ...recset.Option) (*recset.RecordSet, error) {
	blocks := Blocks(note)
	if index < 0 || index >= len(blocks) {
		return nil, fmt.Errorf("%w: index %d, note has %d", ErrNoBlock, index, len(blocks))
	}

	return LoadBlock(blocks[index], opts...)
}
