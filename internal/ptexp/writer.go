package ptexp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"passthru_parser/internal/logging"
	"passthru_parser/internal/passthru"
)

// Writer writes expression sets into OutputDir.
type Writer struct {
	OutputDir string
	Log       logging.Logger
}

// NewWriter creates a Writer for dir.
func NewWriter(dir string, log logging.Logger) *Writer {
	if log == nil {
		log = logging.Discard()
	}
	return &Writer{OutputDir: dir, Log: log}
}

// Path returns the file a set with the given hint is written to.
func (w *Writer) Path(hint string) string {
	return filepath.Join(w.OutputDir, fileName(hint))
}

// Write renders set and writes it to OutputDir, named after hint with the
// .ptExp extension. When the hint lives outside OutputDir a copy is also
// written next to it. Writes replace any previous file atomically; on
// failure the destination is left untouched and ("", err) is returned.
func (w *Writer) Write(set *passthru.ExpressionSet, hint string) (string, error) {
	path, err := w.write(set, hint)
	if err != nil {
		w.logger().Error("write ptExp failed", "hint", hint, "error", err)
		return "", err
	}
	return path, nil
}

func (w *Writer) write(set *passthru.ExpressionSet, hint string) (string, error) {
	if strings.TrimSpace(hint) == "" {
		return "", errors.New("empty destination hint")
	}
	if w.OutputDir == "" {
		return "", errors.New("no output directory configured")
	}

	data := Render(set.Expressions)

	if err := os.MkdirAll(w.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := w.Path(hint)
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}

	if outside, err := isOutside(w.OutputDir, hint); err == nil && outside {
		sibling := filepath.Join(filepath.Dir(hint), fileName(hint))
		if err := writeAtomic(sibling, data); err != nil {
			w.logger().Warn("copy next to source failed", "path", sibling, "error", err)
		}
	}

	w.logger().Info("wrote ptExp", "path", path, "expressions", set.Len())
	return path, nil
}

func (w *Writer) logger() logging.Logger {
	if w.Log == nil {
		return logging.Discard()
	}
	return w.Log
}

// fileName maps a hint such as "logs/run1.txt" to "run1.ptExp".
func fileName(hint string) string {
	base := filepath.Base(hint)
	return strings.TrimSuffix(base, filepath.Ext(base)) + Extension
}

func isOutside(dir, hint string) (bool, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, err
	}
	absHint, err := filepath.Abs(filepath.Dir(hint))
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(absDir, absHint)
	if err != nil {
		return true, nil
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)), nil
}

// writeAtomic writes data to a temp file in the target directory and renames
// it over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ptexp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
