// Package logging configures the application logger.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Options configures New.
type Options struct {
	// Level is a logrus level name; invalid or empty values mean info.
	Level string
	// ErrorDir receives errors_YYYYMMDD.log files. Empty disables the file hook.
	ErrorDir string
	Output   io.Writer
}

// New builds the process logger: text output with full timestamps plus a hook
// that copies error entries into a daily file.
func New(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if opts.Output != nil {
		logger.SetOutput(opts.Output)
	} else {
		logger.SetOutput(os.Stdout)
	}

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if opts.ErrorDir != "" {
		hook, err := NewErrorFileHook(opts.ErrorDir)
		if err != nil {
			return logger, err
		}
		logger.AddHook(hook)
	}
	return logger, nil
}

// Close releases the files held by the logger's hooks. Call it once on shutdown.
func Close(logger *logrus.Logger) error {
	seen := make(map[logrus.Hook]bool)
	var errs []error
	for _, hooks := range logger.Hooks {
		for _, hook := range hooks {
			closer, ok := hook.(io.Closer)
			if !ok || seen[hook] {
				continue
			}
			seen[hook] = true
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// ErrorFileHook appends error, fatal and panic entries to a file per day.
type ErrorFileHook struct {
	dir       string
	formatter logrus.Formatter

	mu   sync.Mutex
	day  string
	file *os.File
}

// NewErrorFileHook creates dir if needed and returns a hook writing into it.
func NewErrorFileHook(dir string) (*ErrorFileHook, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	return &ErrorFileHook{
		dir:       dir,
		formatter: &logrus.TextFormatter{FullTimestamp: true, DisableColors: true},
	}, nil
}

// Levels implements logrus.Hook.
func (h *ErrorFileHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}
}

// Fire implements logrus.Hook.
func (h *ErrorFileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	file, err := h.fileFor(entry.Time)
	if err != nil {
		return err
	}
	_, err = file.Write(line)
	return err
}

// Close closes the currently open file.
func (h *ErrorFileHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	return err
}

// FileName returns the error log name for the day of t.
func FileName(t time.Time) string {
	return "errors_" + t.Format("20060102") + ".log"
}

func (h *ErrorFileHook) fileFor(t time.Time) (*os.File, error) {
	if t.IsZero() {
		t = time.Now()
	}
	day := t.Format("20060102")
	if h.file != nil && h.day == day {
		return h.file, nil
	}
	if h.file != nil {
		h.file.Close()
		h.file = nil
	}
	file, err := os.OpenFile(filepath.Join(h.dir, FileName(t)), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open error log: %w", err)
	}
	h.file = file
	h.day = day
	return file, nil
}
