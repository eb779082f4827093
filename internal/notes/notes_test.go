package notes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/recnotes/internal/notes"
	"github.com/calvinalkan/recnotes/pkg/recset"
)

const note = "# Reading list\n" +
	"\n" +
	"Some intro text.\n" +
	"\n" +
	"```go\n" +
	"fmt.Println(\"not a record\")\n" +
	"```\n" +
	"\n" +
	"```rec-data\n" +
	"%rec: Book\n" +
	"%key: Title\n" +
	"%type: Year int\n" +
	"\n" +
	"Title: Dune\n" +
	"Year: 1965\n" +
	"\n" +
	"Title: Emma\n" +
	"Tag: classic\n" +
	"```\n" +
	"\n" +
	"- item\n" +
	"\n" +
	"  ```rec-data extra words\n" +
	"  a: 1\n" +
	"  ```\n"

func Test_Blocks_Returns_Rec_Data_Fences_When_Note_Has_Them(t *testing.T) {
	t.Parallel()

	blocks := notes.Blocks(note)
	require.Len(t, blocks, 2)

	assert.Equal(t, 0, blocks[0].Index)
	assert.Equal(t, 9, blocks[0].Line)
	assert.Contains(t, blocks[0].Text, "%rec: Book\n")

	assert.Equal(t, 1, blocks[1].Index)
	assert.Equal(t, 23, blocks[1].Line)
	assert.Equal(t, "a: 1\n", blocks[1].Text)
}

func Test_Blocks_Returns_Nothing_When_Note_Has_No_Rec_Data(t *testing.T) {
	t.Parallel()

	assert.Empty(t, notes.Blocks(""))
	assert.Empty(t, notes.Blocks("```rec\nx: 1\n```\n"))
}

func Test_LoadBlocks_Returns_Views_When_Blocks_Are_Valid(t *testing.T) {
	t.Parallel()

	views, err := notes.LoadBlocks(note)
	require.NoError(t, err)
	require.Len(t, views, 2)

	book := views[0]
	assert.Equal(t, "Book", book.Name)
	assert.Equal(t, []string{"Title", "Year", "Tag"}, book.Fields)
	require.Len(t, book.Records, 2)
	assert.Equal(t, []string{"1965"}, book.Records[0].Strings("Year"))
	assert.JSONEq(t, `[{"Title":["Dune"],"Year":["1965"]},{"Title":["Emma"],"Tag":["classic"]}]`, book.JSON)
	assert.Equal(t, 2, book.Set.RecordCount())

	assert.Empty(t, views[1].Name)
	assert.Equal(t, []string{"a"}, views[1].Fields)
}

func Test_LoadBlocks_Returns_BlockError_When_Block_Is_Invalid(t *testing.T) {
	t.Parallel()

	bad := "intro\n\n```rec-data\n%type: n int\n\nn: nope\n```\n"

	views, err := notes.LoadBlocks(bad)
	assert.Nil(t, views)

	var blockErr *notes.BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, 0, blockErr.Index)
	assert.Equal(t, 3, blockErr.Line)

	var fieldErr *recset.FieldValidationError
	require.ErrorAs(t, err, &fieldErr)
	assert.Contains(t, err.Error(), "rec-data block 0 (line 3)")
}

func Test_Load_Returns_Block_Set_When_Index_Exists(t *testing.T) {
	t.Parallel()

	rs, err := notes.Load(note, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, rs.RecordCount())

	_, err = notes.Load(note, 2)
	require.ErrorIs(t, err, notes.ErrNoBlock)

	_, err = notes.Load(note, -1)
	require.ErrorIs(t, err, notes.ErrNoBlock)
}
