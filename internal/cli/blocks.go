package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/recnotes/internal/config"
	"github.com/calvinalkan/recnotes/internal/notes"
)

// BlocksCmd returns the blocks command.
func BlocksCmd(cfg config.Config) *Command {
	fs := flag.NewFlagSet("blocks", flag.ContinueOnError)

	return &Command{
		Flags: fs,
		Usage: "blocks <note.md>",
		Short: "List the rec-data blocks of a note",
		Long: `Print one line per rec-data block: index, line of the opening fence,
record set name, fields and record count. Blocks that fail to load are
reported as warnings.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return ErrFileRequired
			}

			if len(args) > 1 {
				return fmt.Errorf("%w: blocks takes one file", ErrTooManyArgs)
			}

			path := resolvePath(cfg, args[0])

			kind, err := kindOf(path)
			if err != nil {
				return err
			}

			if kind != sourceNote {
				return fmt.Errorf("%w: blocks needs a markdown note: %s", ErrUnsupportedFile, args[0])
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			for _, b := range notes.Blocks(string(data)) {
				rs, err := notes.LoadBlock(b)
				if err != nil {
					o.Warn(err.Error(), "skipped")

					continue
				}

				name := rs.Schema().Name
				if name == "" {
					name = "-"
				}

				o.Printf("%d\tline %d\t%s\t%s\t%s\n",
					b.Index, b.Line, name, strings.Join(rs.Fields(), ","), plural(rs.RecordCount(), "record"))
			}

			return nil
		},
	}
}
