package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/calvinalkan/recnotes/internal/config"
	"github.com/calvinalkan/recnotes/internal/notes"
	"github.com/calvinalkan/recnotes/pkg/recset/recfile"
)

const watchDebounce = 200 * time.Millisecond

// ValidateCmd returns the validate command.
func ValidateCmd(cfg config.Config, logger *zap.Logger) *Command {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	block := fs.Int("block", -1, "Only check rec-data block `N` of markdown notes (0-based)")
	watch := fs.BoolP("watch", "w", false, "Re-validate files whenever they change, until interrupted")

	return &Command{
		Flags: fs,
		Usage: "validate [flags] <file>...",
		Short: "Check record files and note blocks",
		Long: `Load every .rec file, or every rec-data block of every .md note, and
validate all records against the record descriptor. Files are checked
concurrently; results are printed in argument order.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execValidate(ctx, io, cfg, logger, args, *block, *watch)
		},
	}
}

type validateResult struct {
	display string
	kind    sourceKind
	blocks  int
	records int
	err     error
}

func execValidate(ctx context.Context, io *IO, cfg config.Config, logger *zap.Logger, args []string, block int, watch bool) error {
	if len(args) == 0 {
		return ErrFileRequired
	}

	paths := make([]string, len(args))
	for i, arg := range args {
		paths[i] = resolvePath(cfg, arg)
	}

	results := validateAll(ctx, args, paths, block)

	failed := 0

	for _, r := range results {
		if r.err != nil {
			failed++
		}

		reportValidation(io, r)
	}

	if watch {
		return watchAndValidate(ctx, io, logger, args, paths, block)
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d files", ErrValidationFailed, failed, len(paths))
	}

	return nil
}

func validateAll(ctx context.Context, displays, paths []string, block int) []validateResult {
	results := make([]validateResult, len(paths))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := range paths {
		g.Go(func() error {
			results[i] = validatePath(displays[i], paths[i], block)

			return nil
		})
	}

	_ = g.Wait()

	return results
}

func validatePath(display, path string, block int) validateResult {
	r := validateResult{display: display}

	kind, err := kindOf(path)
	if err != nil {
		r.err = err

		return r
	}

	r.kind = kind

	data, err := os.ReadFile(path)
	if err != nil {
		r.err = err

		return r
	}

	if kind == sourceRec {
		rs, err := recfile.Load(string(data))
		if err != nil {
			r.err = err

			return r
		}

		r.records = rs.RecordCount()

		return r
	}

	if block >= 0 {
		rs, err := notes.Load(string(data), block)
		if err != nil {
			r.err = err

			return r
		}

		r.blocks, r.records = 1, rs.RecordCount()

		return r
	}

	views, err := notes.LoadBlocks(string(data))
	if err != nil {
		r.err = err

		return r
	}

	r.blocks = len(views)
	for _, v := range views {
		r.records += len(v.Records)
	}

	return r
}

func reportValidation(io *IO, r validateResult) {
	switch {
	case r.err != nil:
		io.ErrPrintln(r.display+":", r.err)
	case r.kind == sourceNote:
		io.Printf("%s: ok (%s, %s)\n", r.display, plural(r.blocks, "block"), plural(r.records, "record"))
	default:
		io.Printf("%s: ok (%s)\n", r.display, plural(r.records, "record"))
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}

	return fmt.Sprintf("%d %ss", n, noun)
}

func watchAndValidate(ctx context.Context, io *IO, logger *zap.Logger, displays, paths []string, block int) error {
	fw, err := newFileWatcher(paths, watchDebounce, logger)
	if err != nil {
		return err
	}

	defer func() { _ = fw.Close() }()

	display := make(map[string]string, len(paths))
	for i, p := range paths {
		display[p] = displays[i]
	}

	logger.Info("watching for changes", zap.Int("files", len(paths)))

	return fw.Run(ctx, func(path string) {
		reportValidation(io, validatePath(display[path], path, block))
	})
}
