// Package logging holds the logger shared by the reconstruction packages.
// Library code only sees the Logger interface; commands build a SlogLogger
// writing human readable lines to stdout and JSON errors to stderr.
package logging

import (
	"io"
	"log/slog"
	"os"
)

type Logger interface {
	Info(message string, module string)
	Error(message string)
}

type SlogLogger struct {
	InfoLog  *slog.Logger
	ErrorLog *slog.Logger
}

func (l SlogLogger) Info(message string, module string) {
	l.InfoLog.Info(message, "module", module)
}

func (l SlogLogger) Error(message string) {
	l.ErrorLog.Error(message)
}

// NewLogger builds the command line logger. Verbosity above 2 enables debug
// records.
func NewLogger(out io.Writer, errOut io.Writer, verbosity int) SlogLogger {
	level := slog.LevelInfo
	if verbosity > 2 {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	return SlogLogger{
		InfoLog:  slog.New(NewHandler(out, opts)),
		ErrorLog: slog.New(slog.NewJSONHandler(errOut, opts)),
	}
}

func NewDefaultLogger(verbosity int) SlogLogger {
	return NewLogger(os.Stdout, os.Stderr, verbosity)
}

type nopLogger struct{}

func (nopLogger) Info(string, string) {}
func (nopLogger) Error(string)        {}

// Nop discards everything.
func Nop() Logger {
	return nopLogger{}
}
