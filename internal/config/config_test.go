package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/recnotes/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func load(t *testing.T, dir string, mutate func(*config.LoadInput)) (config.Config, error) {
	t.Helper()

	input := config.LoadInput{
		WorkDirOverride: dir,
		Env:             map[string]string{"XDG_CONFIG_HOME": filepath.Join(dir, "xdg")},
	}

	if mutate != nil {
		mutate(&input)
	}

	return config.Load(input)
}

func Test_Load_Returns_Defaults_When_No_Files_Exist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := load(t, dir, nil)
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.NotesDir)
	assert.Equal(t, dir, cfg.NotesDirAbs)
	assert.Equal(t, dir, cfg.EffectiveCwd)
	assert.Equal(t, "|", cfg.ValueSeparator)
	assert.Equal(t, ',', cfg.Delimiter())
	assert.True(t, cfg.CSVHeaders)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Empty(t, cfg.Sources.Global)
	assert.Empty(t, cfg.Sources.Project)
}

func Test_Load_Layers_Files_When_Global_And_Project_Exist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	global := filepath.Join(dir, "xdg", "recnotes", "config.json")

	writeFile(t, global, `{
		// shared defaults
		"value_separator": ";",
		"csv_headers": false,
		"log_level": "info",
	}`)
	writeFile(t, filepath.Join(dir, config.FileName), `{"notes_dir": "wiki", "log_level": "debug"}`)

	cfg, err := load(t, dir, nil)
	require.NoError(t, err)

	assert.Equal(t, ";", cfg.ValueSeparator)
	assert.False(t, cfg.CSVHeaders)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, filepath.Join(dir, "wiki"), cfg.NotesDirAbs)
	assert.Equal(t, global, cfg.Sources.Global)
	assert.Equal(t, filepath.Join(dir, config.FileName), cfg.Sources.Project)
}

func Test_Load_Uses_Home_Config_When_XDG_Unset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "home", ".config", "recnotes", "config.json"), `{"csv_delimiter": "\t"}`)

	cfg, err := load(t, dir, func(in *config.LoadInput) {
		in.Env = map[string]string{"HOME": filepath.Join(dir, "home")}
	})
	require.NoError(t, err)
	assert.Equal(t, '\t', cfg.Delimiter())
}

func Test_Load_Prefers_Explicit_File_And_Overrides_When_Given(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), `{"notes_dir": "ignored"}`)
	writeFile(t, filepath.Join(dir, "custom.json"), `{"notes_dir": "custom", "log_level": "error"}`)

	cfg, err := load(t, dir, func(in *config.LoadInput) {
		in.ConfigPath = "custom.json"
		in.Overrides.LogLevel = "debug"
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "custom"), cfg.NotesDirAbs)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, filepath.Join(dir, "custom.json"), cfg.Sources.Project)

	cfg, err = load(t, dir, func(in *config.LoadInput) {
		in.Overrides.NotesDir = "/abs/notes"
	})
	require.NoError(t, err)
	assert.Equal(t, "/abs/notes", cfg.NotesDirAbs)
}

func Test_Load_Returns_Error_When_Config_Is_Unusable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "invalid json", content: `{invalid json}`, want: config.ErrConfigInvalid},
		{name: "wrong value type", content: `{"csv_headers": "yes"}`, want: config.ErrConfigInvalid},
		{name: "empty notes dir", content: `{"notes_dir": ""}`, want: config.ErrNotesDirEmpty},
		{name: "empty separator", content: `{"value_separator": ""}`, want: config.ErrSeparatorEmpty},
		{name: "long delimiter", content: `{"csv_delimiter": ";;"}`, want: config.ErrDelimiterInvalid},
		{name: "quote delimiter", content: `{"csv_delimiter": "\""}`, want: config.ErrDelimiterInvalid},
		{name: "unknown log level", content: `{"log_level": "trace"}`, want: config.ErrLogLevelInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, config.FileName), tt.content)

			_, err := load(t, dir, nil)
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, config.ErrConfigInvalid)
		})
	}
}

func Test_Load_Returns_Not_Found_When_Explicit_File_Missing(t *testing.T) {
	t.Parallel()

	_, err := load(t, t.TempDir(), func(in *config.LoadInput) {
		in.ConfigPath = "nope.json"
	})
	require.ErrorIs(t, err, config.ErrConfigFileNotFound)
	assert.Contains(t, err.Error(), "nope.json")
}

func Test_Load_Rejects_Override_When_Log_Level_Unknown(t *testing.T) {
	t.Parallel()

	_, err := load(t, t.TempDir(), func(in *config.LoadInput) {
		in.Overrides.LogLevel = "loud"
	})
	require.ErrorIs(t, err, config.ErrLogLevelInvalid)
}
