// Package config loads the recnotes configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"unicode/utf8"

	"github.com/tailscale/hujson"
)

// Errors.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrNotesDirEmpty      = errors.New("notes_dir cannot be empty")
	ErrSeparatorEmpty     = errors.New("value_separator cannot be empty")
	ErrDelimiterInvalid   = errors.New("csv_delimiter must be exactly one character other than a quote or newline")
	ErrLogLevelInvalid    = errors.New("log_level must be one of debug, info, warn, error")
)

// LogLevels lists the accepted log_level values.
var LogLevels = []string{"debug", "info", "warn", "error"}

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	NotesDir       string `json:"notes_dir"`
	ValueSeparator string `json:"value_separator"`
	CSVDelimiter   string `json:"csv_delimiter"`
	CSVHeaders     bool   `json:"csv_headers"`
	LogLevel       string `json:"log_level"`

	// Resolved paths (computed, not serialized)
	EffectiveCwd string `json:"-"` // Absolute working directory (from -C flag or os.Getwd)
	NotesDirAbs  string `json:"-"` // Absolute path to the notes directory

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// Delimiter returns the CSV delimiter as a rune.
func (c Config) Delimiter() rune {
	r, _ := utf8.DecodeRuneInString(c.CSVDelimiter)

	return r
}

// layer is one config file; nil fields are not set by it.
type layer struct {
	NotesDir       *string `json:"notes_dir"`
	ValueSeparator *string `json:"value_separator"`
	CSVDelimiter   *string `json:"csv_delimiter"`
	CSVHeaders     *bool   `json:"csv_headers"`
	LogLevel       *string `json:"log_level"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		NotesDir:       ".",
		ValueSeparator: "|",
		CSVDelimiter:   ",",
		CSVHeaders:     true,
		LogLevel:       "warn",
	}
}

// FileName is the project config file name.
const FileName = ".recnotes.json"

// globalPath returns $XDG_CONFIG_HOME/recnotes/config.json, falling back to
// ~/.config/recnotes/config.json. Empty when neither variable is set.
func globalPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "recnotes", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "recnotes", "config.json")
	}

	return ""
}

// Overrides are values from CLI flags; empty fields do not override.
type Overrides struct {
	NotesDir string
	LogLevel string
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	Overrides       Overrides         // CLI flag values
	Env             map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/recnotes/config.json or ~/.config/recnotes/config.json)
// 3. Project config file (.recnotes.json in the work dir, if it exists)
// 4. Explicit config file via ConfigPath (replaces 3, must exist)
// 5. CLI overrides.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("cannot resolve working directory: %w", err)
	}

	cfg := Default()

	if path := globalPath(input.Env); path != "" {
		loaded, err := loadFile(path, false, &cfg)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = path
		}
	}

	projectPath := filepath.Join(workDir, FileName)
	mustExist := false

	if input.ConfigPath != "" {
		projectPath = input.ConfigPath
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}

		mustExist = true

		if _, statErr := os.Stat(projectPath); statErr != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigFileNotFound, input.ConfigPath)
		}
	}

	loaded, err := loadFile(projectPath, mustExist, &cfg)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg.Sources.Project = projectPath
	}

	if input.Overrides.NotesDir != "" {
		cfg.NotesDir = input.Overrides.NotesDir
	}

	if input.Overrides.LogLevel != "" {
		cfg.LogLevel = input.Overrides.LogLevel
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	cfg.EffectiveCwd = workDir

	if filepath.IsAbs(cfg.NotesDir) {
		cfg.NotesDirAbs = cfg.NotesDir
	} else {
		cfg.NotesDirAbs = filepath.Join(workDir, cfg.NotesDir)
	}

	return cfg, nil
}

// loadFile merges the file at path into cfg. A missing optional file is
// not an error and reports loaded=false.
func loadFile(path string, mustExist bool, cfg *Config) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !mustExist {
			return false, nil
		}

		return false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
	}

	l, err := parse(data)
	if err != nil {
		return false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	if err := l.validate(); err != nil {
		return false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	l.mergeInto(cfg)

	return true, nil
}

func parse(data []byte) (layer, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return layer{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var l layer

	err = json.Unmarshal(standardized, &l)
	if err != nil {
		return layer{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return l, nil
}

// validate rejects values set explicitly to something unusable, so a file
// cannot silently fall back to a lower layer.
func (l layer) validate() error {
	if l.NotesDir != nil && *l.NotesDir == "" {
		return ErrNotesDirEmpty
	}

	if l.ValueSeparator != nil && *l.ValueSeparator == "" {
		return ErrSeparatorEmpty
	}

	return nil
}

func (l layer) mergeInto(cfg *Config) {
	if l.NotesDir != nil {
		cfg.NotesDir = *l.NotesDir
	}

	if l.ValueSeparator != nil {
		cfg.ValueSeparator = *l.ValueSeparator
	}

	if l.CSVDelimiter != nil {
		cfg.CSVDelimiter = *l.CSVDelimiter
	}

	if l.CSVHeaders != nil {
		cfg.CSVHeaders = *l.CSVHeaders
	}

	if l.LogLevel != nil {
		cfg.LogLevel = *l.LogLevel
	}
}

// Validate checks a fully merged configuration.
func Validate(cfg Config) error {
	if cfg.NotesDir == "" {
		return ErrNotesDirEmpty
	}

	if cfg.ValueSeparator == "" {
		return ErrSeparatorEmpty
	}

	if !ValidDelimiter(cfg.CSVDelimiter) {
		return fmt.Errorf("%w, got %q", ErrDelimiterInvalid, cfg.CSVDelimiter)
	}

	if !slices.Contains(LogLevels, cfg.LogLevel) {
		return fmt.Errorf("%w, got %q", ErrLogLevelInvalid, cfg.LogLevel)
	}

	return nil
}

// ValidDelimiter reports whether s is usable as a CSV delimiter.
func ValidDelimiter(s string) bool {
	if utf8.RuneCountInString(s) != 1 {
		return false
	}

	r, _ := utf8.DecodeRuneInString(s)

	return r != '"' && r != '\r' && r != '\n' && r != utf8.RuneError
}
