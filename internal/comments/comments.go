// Package comments appends reviewer remarks to a plain-text log, one
// "<caseId>: <comment>" line per remark.
package comments

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrEmptyComment is returned for comments with no visible text.
var ErrEmptyComment = errors.New("empty comment")

// Log is an append-only comment file. The file is opened per write so an
// external editor or tail can hold it between submissions.
type Log struct {
	mu   sync.Mutex
	path string
}

// NewLog returns a Log writing to path. The file is created on first Append.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Fold replaces line breaks in text with spaces. Everything else is kept
// as typed.
func Fold(text string) string {
	return lineBreaks.Replace(text)
}

// Append writes one "<caseID>: <text>" line with text folded onto a single
// line but otherwise verbatim.
func (l *Log) Append(caseID, text string) error {
	text = Fold(text)
	if strings.TrimSpace(text) == "" {
		return ErrEmptyComment
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating comment log directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening comment log: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%s: %s\n", caseID, text); err != nil {
		f.Close()
		return fmt.Errorf("writing comment log: %w", err)
	}
	return f.Close()
}
