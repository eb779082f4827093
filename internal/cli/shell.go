package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/calvinalkan/recnotes/internal/config"
	"github.com/calvinalkan/recnotes/internal/lock"
	"github.com/calvinalkan/recnotes/pkg/recset"
	"github.com/calvinalkan/recnotes/pkg/recset/recfile"
)

var errBadAssignment = errors.New("expected field=value")

var shellCommands = []string{
	"insert", "fields", "count", "show",
	"rec", "csv", "json", "save",
	"help", "quit", "exit",
}

// ShellCmd returns the shell command.
func ShellCmd(cfg config.Config, logger *zap.Logger) *Command {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)

	return &Command{
		Flags: fs,
		Usage: "shell <file.rec>",
		Short: "Edit a rec file interactively",
		Long: `Open a rec file in an interactive session. Inserted records are
validated immediately and kept in memory until "save". Save rereads the
file under the writer lock, inserts the pending records into what it
finds and replaces the file atomically, so changes made by others since
the session started are kept. Type "help" for commands.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return ErrFileRequired
			}

			if len(args) > 1 {
				return fmt.Errorf("%w: shell takes one file", ErrTooManyArgs)
			}

			path := resolvePath(cfg, args[0])

			kind, err := kindOf(path)
			if err != nil {
				return err
			}

			if kind != sourceRec {
				return fmt.Errorf("%w: shell needs a .rec file: %s", ErrUnsupportedFile, args[0])
			}

			rs, err := loadOrEmpty(path)
			if err != nil {
				return err
			}

			sh := &shell{
				ctx:    ctx,
				io:     o,
				cfg:    cfg,
				logger: logger,
				path:   path,
				name:   args[0],
				rs:     rs,
			}

			return sh.run()
		},
	}
}

// loadOrEmpty loads a rec file; a missing file is an empty untyped set.
func loadOrEmpty(path string) (*recset.RecordSet, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return recfile.Load(string(data))
}

// lineReader is the part of [liner.State] the shell uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// scanReader reads lines from a non-terminal input without prompting.
type scanReader struct {
	s *bufio.Scanner
}

func (r scanReader) Prompt(string) (string, error) {
	if !r.s.Scan() {
		if err := r.s.Err(); err != nil {
			return "", err
		}

		return "", io.EOF
	}

	return r.s.Text(), nil
}

func (scanReader) AppendHistory(string) {}

type shell struct {
	ctx    context.Context
	io     *IO
	cfg    config.Config
	logger *zap.Logger
	path   string
	name   string
	rs     *recset.RecordSet
	// pending holds the inserted records not yet saved, as typed.
	pending []*recset.Record
	dirty   bool
}

func (sh *shell) run() error {
	var reader lineReader

	if f, ok := sh.io.In().(*os.File); ok && isTerminal(f) {
		state := liner.NewLiner()
		defer state.Close()

		state.SetCtrlCAborts(true)
		state.SetCompleter(completeShell)

		loadHistory(state)
		defer saveHistory(state)

		sh.io.Printf("%s: %s, type 'help' for commands\n", sh.name, plural(sh.rs.RecordCount(), "record"))

		reader = state
	} else {
		if sh.io.In() == nil {
			return fmt.Errorf("%w: no input", ErrFileRequired)
		}

		reader = scanReader{s: bufio.NewScanner(sh.io.In())}
	}

	for sh.ctx.Err() == nil {
		line, err := reader.Prompt("recnotes> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		reader.AppendHistory(line)

		cmd, rest, _ := strings.Cut(line, " ")
		if cmd == "quit" || cmd == "exit" {
			break
		}

		if err := sh.exec(strings.ToLower(cmd), strings.TrimSpace(rest)); err != nil {
			sh.io.ErrPrintln("error:", err)
		}
	}

	if sh.dirty {
		sh.io.Warn("unsaved records in "+sh.name, "discarded")
	}

	return nil
}

func (sh *shell) exec(cmd, rest string) error {
	switch cmd {
	case "help", "?":
		sh.printHelp()
	case "insert":
		return sh.insert(rest)
	case "fields":
		sh.fields()
	case "count":
		sh.io.Println(sh.rs.RecordCount())
	case "show":
		return sh.show(rest)
	case "rec":
		sh.io.Printf("%s", recfile.Format(sh.rs, false))
	case "csv":
		out, err := sh.rs.GetCSV(
			recset.WithValueSeparator(sh.cfg.ValueSeparator),
			recset.WithHeaders(sh.cfg.CSVHeaders),
			recset.WithDelimiter(sh.cfg.Delimiter()))
		if err != nil {
			return err
		}

		sh.io.Printf("%s", out)
	case "json":
		out, err := sh.rs.GetJSON()
		if err != nil {
			return err
		}

		sh.io.Println(out)
	case "save":
		return sh.save()
	default:
		return fmt.Errorf("%w: %s (type 'help' for commands)", ErrUnknownCommand, cmd)
	}

	return nil
}

// insert adds one record from "field=value" words. A field may repeat to
// give it several values.
func (sh *shell) insert(rest string) error {
	words := strings.Fields(rest)
	if len(words) == 0 {
		return fmt.Errorf("%w: insert needs at least one assignment", errBadAssignment)
	}

	rec := recset.NewRecord()

	for _, w := range words {
		field, value, ok := strings.Cut(w, "=")
		if !ok || field == "" {
			return fmt.Errorf("%w, got %q", errBadAssignment, w)
		}

		rec.Add(field, value)
	}

	err := sh.rs.Insert(rec.Clone())
	if !committed(err) {
		return err
	}

	sh.pending = append(sh.pending, rec)
	sh.dirty = true
	sh.logger.Debug("record inserted", zap.Int("records", sh.rs.RecordCount()))

	if err != nil {
		return err
	}

	sh.io.Printf("ok (%s)\n", plural(sh.rs.RecordCount(), "record"))

	return nil
}

// committed reports whether an Insert of one record stored it. A failed
// final size check comes after the commit.
func committed(err error) bool {
	if err == nil {
		return true
	}

	var sizeErr *recset.SizeError

	return errors.As(err, &sizeErr) && sizeErr.Phase == recset.SizeFinalCheck
}

func (sh *shell) fields() {
	for _, f := range sh.rs.Fields() {
		def, ok := sh.rs.ResolveType(f)
		if !ok {
			sh.io.Println(f)

			continue
		}

		sh.io.Printf("%s\t%s\n", f, recfile.FormatType(def))
	}
}

func (sh *shell) show(key string) error {
	if key == "" {
		for _, k := range sh.rs.Keys() {
			sh.io.Println(k)
		}

		return nil
	}

	rec, ok := sh.rs.Get(key)
	if !ok {
		return fmt.Errorf("no record with key %q", key)
	}

	sh.io.Println(rec.Rec())

	return nil
}

// save reloads the file under the lock and inserts the pending records into
// it. If they no longer fit the file is left alone and the session keeps
// its pending records.
func (sh *shell) save() error {
	var saved *recset.RecordSet

	err := lock.WithFile(sh.ctx, sh.path, func(content []byte) ([]byte, error) {
		doc, rs, err := recfile.LoadDocument(string(content))
		if err != nil {
			return nil, fmt.Errorf("reloading %s: %w", sh.name, err)
		}

		if err := rs.Insert(clonePending(sh.pending)...); err != nil {
			return nil, err
		}

		saved = rs

		return []byte(doc.Format(rs)), nil
	})
	if err != nil {
		return err
	}

	sh.rs = saved
	sh.pending = nil
	sh.dirty = false
	sh.logger.Info("saved", zap.String("file", sh.path), zap.Int("records", sh.rs.RecordCount()))
	sh.io.Printf("saved %s to %s\n", plural(sh.rs.RecordCount(), "record"), sh.name)

	return nil
}

func clonePending(records []*recset.Record) []*recset.Record {
	out := make([]*recset.Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}

	return out
}

func (sh *shell) printHelp() {
	sh.io.Println("Commands:")
	sh.io.Println("  insert f=v [f=v ...]   Validate and add a record (repeat a field for more values)")
	sh.io.Println("  fields                 List fields and their types")
	sh.io.Println("  count                  Number of records")
	sh.io.Println("  show [key]             List keys, or print one record")
	sh.io.Println("  rec | csv | json       Print all records")
	sh.io.Println("  save                   Write the records back to the file")
	sh.io.Println("  help                   Show this help")
	sh.io.Println("  quit / exit            Leave (unsaved records are discarded)")
}

func completeShell(line string) []string {
	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range shellCommands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0 && liner.TerminalSupported()
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".recnotes_history")
}

func loadHistory(state *liner.State) {
	f, err := os.Open(historyFile())
	if err != nil {
		return
	}

	defer func() { _ = f.Close() }()

	_, _ = state.ReadHistory(f)
}

func saveHistory(state *liner.State) {
	path := historyFile()
	if path == "" {
		return
	}

	f, err := os.Create(path)
	if err != nil {
		return
	}

	defer func() { _ = f.Close() }()

	_, _ = state.WriteHistory(f)
}
