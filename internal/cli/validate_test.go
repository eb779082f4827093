package cli_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/calvinalkan/recnotes/internal/cli"
)

const booksRec = "%rec: Book\n" +
	"%key: Title\n" +
	"%type: Year int\n" +
	"\n" +
	"Title: Dune\n" +
	"Year: 1965\n" +
	"\n" +
	"Title: Emma\n"

const readingNote = "# Reading\n" +
	"\n" +
	"```rec-data\n" +
	"%rec: Book\n" +
	"%key: Title\n" +
	"\n" +
	"Title: Dune\n" +
	"```\n" +
	"\n" +
	"```rec-data\n" +
	"%rec: Film\n" +
	"%type: Year int\n" +
	"\n" +
	"Title: Alien\n" +
	"Year: 1979\n" +
	"\n" +
	"Title: Heat\n" +
	"Year: 1995\n" +
	"```\n"

const badRec = "%type: n int\n\nn: nope\n"

func Test_Validate_Reports_Ok_When_Files_Are_Valid(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("books.rec", booksRec)
	c.WriteFile("reading.md", readingNote)

	stdout := c.MustRun("validate", "books.rec", "reading.md")

	assert.Equal(t, "books.rec: ok (2 records)\nreading.md: ok (2 blocks, 3 records)", stdout)
}

func Test_Validate_Checks_One_Block_When_Block_Flag_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("reading.md", readingNote)

	stdout := c.MustRun("validate", "--block", "1", "reading.md")
	assert.Equal(t, "reading.md: ok (1 block, 2 records)", stdout)

	stderr := c.MustFail("validate", "--block", "5", "reading.md")
	cli.AssertContains(t, stderr, "no such rec-data block")
}

func Test_Validate_Fails_When_Any_File_Is_Invalid(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("books.rec", booksRec)
	c.WriteFile("bad.rec", badRec)

	stdout, stderr, exitCode := c.Run("validate", "bad.rec", "books.rec")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	assert.Equal(t, "books.rec: ok (2 records)\n", stdout)
	cli.AssertContains(t, stderr, "bad.rec: ")
	cli.AssertContains(t, stderr, `value "nope" of field "n" cannot be converted to an int`)
	cli.AssertContains(t, stderr, "error: validation failed: 1 of 2 files")
}

func Test_Validate_Reports_Block_Position_When_Note_Block_Is_Invalid(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("note.md", "intro\n\n```rec-data\n"+badRec+"```\n")

	stderr := c.MustFail("validate", "note.md")
	cli.AssertContains(t, stderr, "note.md: rec-data block 0 (line 3)")
}

func Test_Validate_Resolves_Files_Against_Notes_Dir_When_Configured(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".recnotes.json", `{"notes_dir": "wiki"}`)
	c.WriteFile("wiki/books.rec", booksRec)

	stdout := c.MustRun("validate", "books.rec")
	assert.Equal(t, "books.rec: ok (2 records)", stdout)
}

func Test_Validate_Returns_Error_When_Arguments_Are_Unusable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no files", args: nil, want: "file argument required"},
		{name: "unsupported extension", args: []string{"notes.txt"}, want: "unsupported file type"},
		{name: "missing file", args: []string{"gone.rec"}, want: "no such file or directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			stderr := c.MustFail(append([]string{"validate"}, tt.args...)...)
			cli.AssertContains(t, stderr, tt.want)
		})
	}
}
