package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/calvinalkan/recnotes/internal/config"
)

// Run is the main entry point. Returns exit code.
//
// args includes the program name. sigCh may be nil; when a signal arrives
// the command's context is cancelled.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globalFlags := flag.NewFlagSet("recnotes", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.SetOutput(&strings.Builder{})

	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")
	flagCwd := globalFlags.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagConfig := globalFlags.StringP("config", "c", "", "Use specified config `file`")
	flagNotesDir := globalFlags.String("notes-dir", "", "Resolve file arguments against `dir`")
	flagVerbose := globalFlags.BoolP("verbose", "v", false, "Log debug output to stderr")

	if len(args) > 0 {
		args = args[1:]
	}

	err := globalFlags.Parse(args)
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printGlobalFlags(errOut, globalFlags)

		return 1
	}

	if globalFlags.Changed("notes-dir") && *flagNotesDir == "" {
		fprintln(errOut, "error:", config.ErrNotesDirEmpty)
		fprintln(errOut)
		printGlobalFlags(errOut, globalFlags)

		return 1
	}

	rest := globalFlags.Args()

	if *flagHelp || len(rest) == 0 {
		printUsage(out, globalFlags, commandList(config.Default(), zap.NewNop()))

		return 0
	}

	overrides := config.Overrides{NotesDir: *flagNotesDir}
	if *flagVerbose {
		overrides.LogLevel = "debug"
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: *flagCwd,
		ConfigPath:      *flagConfig,
		Overrides:       overrides,
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	logger, err := newLogger(errOut, cfg.LogLevel)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	defer func() { _ = logger.Sync() }()

	commands := commandList(cfg, logger)

	cmd, ok := findCommand(commands, rest[0])
	if !ok {
		fprintln(errOut, "error:", fmt.Errorf("%w: %s", ErrUnknownCommand, rest[0]))
		fprintln(errOut)
		printUsage(errOut, globalFlags, commands)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case sig := <-sigCh:
				logger.Debug("signal received, cancelling", zap.Stringer("signal", sig))
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	logger.Debug("running command",
		zap.String("command", cmd.Name()),
		zap.String("cwd", cfg.EffectiveCwd),
		zap.String("notes_dir", cfg.NotesDirAbs))

	o := NewIO(in, out, errOut)

	code := cmd.Run(ctx, o, rest[1:])
	if code != 0 {
		return code
	}

	return o.Finish()
}

func commandList(cfg config.Config, logger *zap.Logger) []*Command {
	return []*Command{
		ValidateCmd(cfg, logger),
		ExportCmd(cfg, logger),
		ImportCmd(cfg, logger),
		BlocksCmd(cfg),
		ShellCmd(cfg, logger),
		PrintConfigCmd(cfg),
	}
}

func findCommand(commands []*Command, name string) (*Command, bool) {
	for _, c := range commands {
		if c.Name() == name {
			return c, true
		}
	}

	return nil, false
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printGlobalFlags(w io.Writer, globalFlags *flag.FlagSet) {
	var buf strings.Builder

	globalFlags.SetOutput(&buf)
	globalFlags.PrintDefaults()
	globalFlags.SetOutput(&strings.Builder{})

	fprintln(w, "Global flags:")
	fprintln(w, strings.TrimRight(buf.String(), "\n"))
}

func printUsage(w io.Writer, globalFlags *flag.FlagSet, commands []*Command) {
	fprintln(w, "recnotes - typed record sets in plain-text notes")
	fprintln(w)
	fprintln(w, "Usage: recnotes [global flags] <command> [args]")
	fprintln(w)
	printGlobalFlags(w, globalFlags)
	fprintln(w)
	fprintln(w, "Commands:")

	for _, c := range commands {
		fprintln(w, c.HelpLine())
	}

	fprintln(w)
	fprintln(w, "Run 'recnotes <command> --help' for command flags.")
}
