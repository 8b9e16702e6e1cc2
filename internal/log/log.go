// Package log installs the process-wide slog logger.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
)

// LevelNone disables logging.
const LevelNone = slog.Level(100)

// ParseLevel maps debug, info, warn, error and none to a slog level.
// Anything else gives error.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "trace", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "none":
		return LevelNone
	default:
		return slog.LevelError
	}
}

// File is a log file that can be reopened after it has been rotated.
type File struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

func OpenFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory for '%s': %w", path, err)
	}
	lf := &File{path: path}
	if err := lf.Reopen(); err != nil {
		return nil, err
	}
	return lf, nil
}

func (lf *File) Write(p []byte) (int, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	return lf.f.Write(p)
}

// Reopen closes the file and opens path again, creating it when it was
// moved away.
func (lf *File) Reopen() error {
	f, err := os.OpenFile(lf.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file '%s': %w", lf.path, err)
	}
	lf.mu.Lock()
	old := lf.f
	lf.f = f
	lf.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

func (lf *File) Close() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.f == nil {
		return nil
	}
	err := lf.f.Close()
	lf.f = nil
	return err
}

// reopenOnHangup reopens lf whenever the process receives SIGHUP:
//
//	mv ksx.log ksx.bak && kill -HUP <pid>
func reopenOnHangup(lf *File) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP)
	go func() {
		for range sigs {
			if err := lf.Reopen(); err != nil {
				fmt.Fprintf(os.Stderr, "could not reopen log file: %v\n", err)
			}
		}
	}()
}

// Setup installs a JSON slog logger writing to file, or to stderr when file
// is empty or cannot be opened. The returned closer releases the file.
func Setup(level, file string) io.Closer {
	var w io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	if file != "" {
		lf, err := OpenFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v; falling back to stderr\n", err)
		} else {
			w = lf
			closer = lf
			reopenOnHangup(lf)
		}
	}

	slog.SetDefault(New(w, ParseLevel(level)))
	return closer
}

// New builds the JSON logger used by the command line tools.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	}))
}
