// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// LogType selects how package loggers are created, chosen by build tag.
type LogType byte

const (
	// LogTypeNone indicates no logging.
	LogTypeNone LogType = iota

	// LogTypeStdOut all logging is written directly to stdout.
	LogTypeStdOut

	// LogTypeDefault logs to both stdout and a given io.PipeWriter.
	LogTypeDefault
)

// String returns a human readable identifier for the logging type.
func (t LogType) String() string {
	switch t {
	case LogTypeNone:
		return "none"
	case LogTypeStdOut:
		return "stdout"
	case LogTypeDefault:
		return "default"
	default:
		return "unknown"
	}
}

// NewSubLogger constructs a new subsystem log from the current LogWriter
// implementation. This is primarily intended for use with stdlog, as the actual
// writer is shared amongst all instantiations.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	switch Deployment {

	// For production builds, generate a new subsystem logger from the
	// primary log backend. If no function is provided, logging will be
	// disabled.
	case Production:
		if genSubLogger != nil {
			return genSubLogger(subsystem)
		}

	// For development builds, we must handle two distinct types of logging:
	// unit tests and running the host binary, e.g. for integration testing.
	case Development:
		switch LoggingType {
		case LogTypeDefault:
			if genSubLogger != nil {
				return genSubLogger(subsystem)
			}

		// Logging to stdout is used in unit tests. It is not important
		// that they share the same backend, since all output is written
		// to std out.
		case LogTypeStdOut:
			backend := btclog.NewBackend(os.Stdout)
			logger := backend.Logger(subsystem)

			level, _ := btclog.LevelFromString(LogLevel)
			logger.SetLevel(level)

			return logger
		}
	}

	// For any other configurations, we'll disable logging.
	return btclog.Disabled
}

// LogWriter writes log lines to an optional console writer and, once
// InitLogRotator has been called, to a size-rotated log file.
type LogWriter struct {
	console io.Writer

	mu      sync.Mutex
	rotator *rotator.Rotator
}

// NewLogWriter returns a LogWriter that echoes to console.  A nil console
// disables console output.
func NewLogWriter(console io.Writer) *LogWriter {
	return &LogWriter{console: console}
}

// Write implements io.Writer.
func (w *LogWriter) Write(b []byte) (int, error) {
	if w.console != nil {
		w.console.Write(b)
	}

	w.mu.Lock()
	r := w.rotator
	w.mu.Unlock()
	if r != nil {
		r.Write(b)
	}

	return len(b), nil
}

// InitLogRotator starts writing to logFile, rolling it every maxSizeKB
// kilobytes and keeping at most maxRolls old files.
func (w *LogWriter) InitLogRotator(logFile string, maxSizeKB int64,
	maxRolls int) error {

	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	r, err := rotator.New(logFile, maxSizeKB, false, maxRolls)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	w.mu.Lock()
	w.rotator = r
	w.mu.Unlock()

	return nil
}

// Close closes the log rotator, if any.
func (w *LogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.rotator == nil {
		return nil
	}
	err := w.rotator.Close()
	w.rotator = nil
	return err
}

// SubLoggers maps subsystem tags to loggers sharing a single backend.  Each
// subsystem is registered with the function its package exposes to replace
// the package-level logger.
type SubLoggers struct {
	backend *btclog.Backend

	mu      sync.Mutex
	loggers map[string]btclog.Logger
}

// NewSubLoggers creates an empty registry writing through w.
func NewSubLoggers(w io.Writer) *SubLoggers {
	return &SubLoggers{
		backend: btclog.NewBackend(w),
		loggers: make(map[string]btclog.Logger),
	}
}

// Register creates the logger for subsystem and hands it to useLogger.
func (s *SubLoggers) Register(subsystem string, useLogger func(btclog.Logger)) {
	logger := s.backend.Logger(subsystem)

	s.mu.Lock()
	s.loggers[subsystem] = logger
	s.mu.Unlock()

	if useLogger != nil {
		useLogger(logger)
	}
}

// Logger returns the logger registered for subsystem.
func (s *SubLoggers) Logger(subsystem string) (btclog.Logger, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger, ok := s.loggers[subsystem]
	return logger, ok
}

// SetLogLevel sets the logging level for the provided subsystem.  Invalid
// subsystems are ignored and invalid levels default to info.
func (s *SubLoggers) SetLogLevel(subsystem, logLevel string) {
	logger, ok := s.Logger(subsystem)
	if !ok {
		return
	}

	level, ok := btclog.LevelFromString(logLevel)
	if !ok {
		level = btclog.LevelInfo
	}
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all registered subsystem loggers.
func (s *SubLoggers) SetLogLevels(logLevel string) {
	for _, subsystem := range s.Subsystems() {
		s.SetLogLevel(subsystem, logLevel)
	}
}

// Subsystems returns the sorted list of registered subsystem tags.
func (s *SubLoggers) Subsystems() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	subsystems := make([]string, 0, len(s.loggers))
	for subsystem := range s.loggers {
		subsystems = append(subsystems, subsystem)
	}
	sort.Strings(subsystems)
	return subsystems
}

// LogClosure is used to provide a closure over expensive logging operations so
// don't have to be performed when the logging level doesn't warrant it.
type LogClosure func() string

// String invokes the underlying function and returns the result.
func (c LogClosure) String() string {
	return c()
}

// NewLogClosure returns a new closure over a function that returns a string
// which itself provides a Stringer interface so that it can be used with the
// logging system.
func NewLogClosure(c func() string) LogClosure {
	return LogClosure(c)
}
