package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	auditFileName      = "audit.log"
	rotatedTimeLayout  = "2006-01-02-15-04-05.000"
	defaultMaxFileSize = 100 * 1024 * 1024
	defaultMaxFiles    = 10
)

// RotatingFileConfig configures a RotatingFileWriter
type RotatingFileConfig struct {
	Dir      string // Directory holding audit.log
	MaxSize  int64  // Max file size in bytes (default: 100MB)
	MaxFiles int    // Max number of rotated files to keep (default: 10)

	// OnRotate is called with the path of each rotated file. It runs with
	// the writer locked and must not block.
	OnRotate func(path string)
}

// RotatingFileWriter appends to <dir>/audit.log and renames it to
// audit-<timestamp>.log once it reaches MaxSize.
type RotatingFileWriter struct {
	mu       sync.Mutex
	dir      string
	file     *os.File
	size     int64
	maxSize  int64
	maxFiles int
	onRotate func(path string)
	now      func() time.Time
}

// NewRotatingFileWriter opens (or creates) the audit file
func NewRotatingFileWriter(cfg RotatingFileConfig) (*RotatingFileWriter, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	w := &RotatingFileWriter{
		dir:      cfg.Dir,
		maxSize:  cfg.MaxSize,
		maxFiles: cfg.MaxFiles,
		onRotate: cfg.OnRotate,
		now:      time.Now,
	}
	if w.maxSize <= 0 {
		w.maxSize = defaultMaxFileSize
	}
	if w.maxFiles <= 0 {
		w.maxFiles = defaultMaxFiles
	}

	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Path returns the active file path
func (w *RotatingFileWriter) Path() string {
	return filepath.Join(w.dir, auditFileName)
}

func (w *RotatingFileWriter) open() error {
	file, err := os.OpenFile(w.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat audit log file: %w", err)
	}

	w.file = file
	w.size = info.Size()
	return nil
}

// Write appends p, rotating first if p would push the file past MaxSize.
// A single write is never split across files.
func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// rotate renames the active file and opens a fresh one
func (w *RotatingFileWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log file: %w", err)
	}
	w.file = nil

	rotated := filepath.Join(w.dir, fmt.Sprintf("audit-%s.log", w.now().UTC().Format(rotatedTimeLayout)))
	if err := os.Rename(w.Path(), rotated); err != nil {
		// Keep writing to the old file rather than losing records
		if openErr := w.open(); openErr != nil {
			return fmt.Errorf("failed to reopen audit log after rename error %v: %w", err, openErr)
		}
		return fmt.Errorf("failed to rename audit log file: %w", err)
	}

	if err := w.open(); err != nil {
		return err
	}

	w.cleanupOldFiles()

	if w.onRotate != nil {
		w.onRotate(rotated)
	}
	return nil
}

// cleanupOldFiles removes the oldest rotated files beyond MaxFiles.
// Rotated names embed a sortable timestamp.
func (w *RotatingFileWriter) cleanupOldFiles() {
	files, err := filepath.Glob(filepath.Join(w.dir, "audit-*.log"))
	if err != nil || len(files) <= w.maxFiles {
		return
	}

	sort.Strings(files)
	for _, file := range files[:len(files)-w.maxFiles] {
		if err := os.Remove(file); err != nil {
			fmt.Fprintf(os.Stderr, "failed to remove old audit log %s: %v\n", file, err)
		}
	}
}

// Close closes the active file
func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
