package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/calvinalkan/recnotes/internal/config"
	"github.com/calvinalkan/recnotes/internal/lock"
	"github.com/calvinalkan/recnotes/pkg/recset"
	"github.com/calvinalkan/recnotes/pkg/recset/recfile"
)

// Export formats.
const (
	formatRec  = "rec"
	formatCSV  = "csv"
	formatJSON = "json"
)

// ExportCmd returns the export command.
func ExportCmd(cfg config.Config, logger *zap.Logger) *Command {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format := fs.StringP("format", "f", formatRec, "Output format: rec, csv or json")
	separator := fs.String("separator", "", "Join multiple CSV values with `sep` (default from config)")
	noHeaders := fs.Bool("no-headers", false, "Omit the CSV header row")
	descriptor := fs.Bool("descriptor", false, "Include the record descriptor in rec output")
	block := fs.Int("block", 0, "Export rec-data block `N` of a markdown note (0-based)")
	output := fs.StringP("output", "o", "", "Write to `file` instead of stdout")

	return &Command{
		Flags: fs,
		Usage: "export [flags] <file>",
		Short: "Print a record set as rec, CSV or JSON",
		Long: `Load a .rec file, or one rec-data block of a .md note, validate it and
print its records. With -o the output file is replaced atomically.`,
		Exec: func(_ context.Context, io *IO, args []string) error {
			if len(args) == 0 {
				return ErrFileRequired
			}

			if len(args) > 1 {
				return fmt.Errorf("%w: export takes one file", ErrTooManyArgs)
			}

			sep := *separator
			if sep == "" {
				sep = cfg.ValueSeparator
			}

			rs, err := loadSet(resolvePath(cfg, args[0]), *block)
			if err != nil {
				return err
			}

			out, err := render(rs, *format, *descriptor,
				recset.WithValueSeparator(sep),
				recset.WithHeaders(cfg.CSVHeaders && !*noHeaders),
				recset.WithDelimiter(cfg.Delimiter()))
			if err != nil {
				return err
			}

			if *output == "" {
				io.Printf("%s", out)

				return nil
			}

			path := resolvePath(cfg, *output)

			err = lock.WriteFile(path, out)
			if err != nil {
				return err
			}

			logger.Info("exported",
				zap.String("file", path),
				zap.String("format", *format),
				zap.Int("records", rs.RecordCount()))

			return nil
		},
	}
}

// render serializes rs in format. Non-empty output ends in a newline.
func render(rs *recset.RecordSet, format string, descriptor bool, csvOpts ...recset.CSVOption) (string, error) {
	switch format {
	case formatRec:
		return recfile.Format(rs, descriptor), nil
	case formatCSV:
		return rs.GetCSV(csvOpts...)
	case formatJSON:
		out, err := rs.GetJSON()
		if err != nil {
			return "", err
		}

		return out + "\n", nil
	default:
		return "", fmt.Errorf("%w: %q (want rec, csv or json)", ErrUnknownFormat, format)
	}
}
