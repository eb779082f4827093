package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/calvinalkan/recnotes/internal/config"
	"github.com/calvinalkan/recnotes/internal/lock"
	"github.com/calvinalkan/recnotes/pkg/recset"
	"github.com/calvinalkan/recnotes/pkg/recset/recfile"
)

// ImportCmd returns the import command.
func ImportCmd(cfg config.Config, logger *zap.Logger) *Command {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	format := fs.StringP("format", "f", "", "Input format: csv or json (default from the input extension)")
	delimiter := fs.String("delimiter", "", "CSV field `delimiter` (default from config)")
	separator := fs.String("separator", "", "Split CSV cells on `sep` into multiple values (default from config)")
	schemaFile := fs.String("schema", "", "Give a file without a descriptor the schema in JSON `file`")

	return &Command{
		Flags: fs,
		Usage: "import [flags] <file.rec> <input|->",
		Short: "Insert CSV or JSON records into a rec file",
		Long: `Read records from input ("-" for stdin), validate them against the
descriptor of file.rec and append them. The rec file is locked for the
whole operation and replaced atomically; if any record is rejected the
file is left unchanged. Comments and documentation directives of file.rec
are kept.

With --schema the file (which may not exist yet) is given the schema read
from a JSON file; this fails if file.rec already has a descriptor.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("%w: import needs <file.rec> and <input>", ErrFileRequired)
			}

			if len(args) > 2 {
				return fmt.Errorf("%w: import takes two arguments", ErrTooManyArgs)
			}

			target := resolvePath(cfg, args[0])

			kind, err := kindOf(target)
			if err != nil {
				return err
			}

			if kind != sourceRec {
				return fmt.Errorf("%w: import target must be a .rec file: %s", ErrUnsupportedFile, args[0])
			}

			inputFormat, err := importFormat(*format, args[1])
			if err != nil {
				return err
			}

			data, err := readInput(o, cfg, args[1])
			if err != nil {
				return err
			}

			delim := cfg.Delimiter()
			if *delimiter != "" {
				if !config.ValidDelimiter(*delimiter) {
					return fmt.Errorf("%w: %q", ErrBadDelimiter, *delimiter)
				}

				delim, _ = utf8.DecodeRuneInString(*delimiter)
			}

			sep := *separator
			if sep == "" {
				sep = cfg.ValueSeparator
			}

			var schema *recset.Schema

			if *schemaFile != "" {
				raw, err := os.ReadFile(resolvePath(cfg, *schemaFile))
				if err != nil {
					return fmt.Errorf("reading %s: %w", *schemaFile, err)
				}

				parsed, err := recset.ParseSchemaJSON(raw)
				if err != nil {
					return fmt.Errorf("%s: %w", *schemaFile, err)
				}

				schema = &parsed
			}

			var batch []*recset.Record

			if inputFormat == formatCSV {
				batch, err = recset.ParseCSV(data, recset.WithDelimiter(delim), recset.WithValueSeparator(sep))
			} else {
				batch, err = recset.ParseJSON(data)
			}

			if err != nil {
				return err
			}

			if len(batch) == 0 {
				o.Warn("no records in "+args[1], "nothing imported")

				return nil
			}

			var total int

			err = lock.WithFile(ctx, target, func(content []byte) ([]byte, error) {
				doc, rs, err := recfile.LoadDocument(string(content))
				if err != nil {
					return nil, fmt.Errorf("loading %s: %w", args[0], err)
				}

				if schema != nil {
					rs, err = withSchema(doc, *schema)
					if err != nil {
						return nil, fmt.Errorf("%s: %w", args[0], err)
					}
				}

				if err := rs.Insert(batch...); err != nil {
					return nil, err
				}

				total = rs.RecordCount()

				return []byte(doc.Format(rs)), nil
			})
			if err != nil {
				return err
			}

			logger.Info("imported",
				zap.String("file", target),
				zap.String("format", inputFormat),
				zap.Int("records", len(batch)),
				zap.Int("total", total))

			o.Printf("imported %s into %s (%d total)\n", plural(len(batch), "record"), args[0], total)

			return nil
		},
	}
}

// withSchema rebuilds the records of a document that has no descriptor
// under schema.
func withSchema(doc *recfile.Document, schema recset.Schema) (*recset.RecordSet, error) {
	if doc.HasDescriptor {
		return nil, ErrHasDescriptor
	}

	rs, err := recset.New(schema)
	if err != nil {
		return nil, err
	}

	if err := rs.Insert(doc.Records...); err != nil {
		return nil, err
	}

	return rs, nil
}

// importFormat returns the explicit format or guesses it from the input
// file extension.
func importFormat(explicit, input string) (string, error) {
	format := explicit
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(input)), ".")
	}

	switch format {
	case formatCSV, formatJSON:
		return format, nil
	case "":
		return "", fmt.Errorf("%w: cannot guess the format of %q, use --format", ErrUnknownFormat, input)
	default:
		return "", fmt.Errorf("%w: %q (want csv or json)", ErrUnknownFormat, format)
	}
}

func readInput(o *IO, cfg config.Config, input string) (string, error) {
	if input == "-" {
		if o.In() == nil {
			return "", fmt.Errorf("%w: no stdin", ErrFileRequired)
		}

		data, err := io.ReadAll(o.In())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}

		return string(data), nil
	}

	data, err := os.ReadFile(resolvePath(cfg, input))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", input, err)
	}

	return string(data), nil
}
