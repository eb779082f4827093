package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/calvinalkan/recnotes/internal/config"
	"github.com/calvinalkan/recnotes/internal/notes"
	"github.com/calvinalkan/recnotes/pkg/recset"
	"github.com/calvinalkan/recnotes/pkg/recset/recfile"
)

type sourceKind uint8

const (
	sourceRec sourceKind = iota
	sourceNote
)

// resolvePath makes a file argument absolute relative to the notes directory.
func resolvePath(cfg config.Config, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(cfg.NotesDirAbs, path)
}

func kindOf(path string) (sourceKind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".rec":
		return sourceRec, nil
	case ".md", ".markdown":
		return sourceNote, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
}

// loadSet loads the record set of a .rec file, or of block number block of
// a markdown note.
func loadSet(path string, block int) (*recset.RecordSet, error) {
	kind, err := kindOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if kind == sourceNote {
		return notes.Load(string(data), block)
	}

	return recfile.Load(string(data))
}
