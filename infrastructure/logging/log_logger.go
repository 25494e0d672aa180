package logging

import (
	"log"
	"meshvpn/application/logging"
)

type LogLogger struct {
}

func NewLogLogger() logging.Logger {
	return &LogLogger{}
}

func (l LogLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}

// DiscardLogger drops everything. It backs the debug logger unless verbose
// output was requested.
type DiscardLogger struct {
}

func NewDiscardLogger() logging.Logger {
	return &DiscardLogger{}
}

func (l DiscardLogger) Printf(string, ...any) {}

// NewDebugLogger returns a LogLogger when verbose is set and a DiscardLogger otherwise.
func NewDebugLogger(verbose bool) logging.Logger {
	if verbose {
		return NewLogLogger()
	}
	return NewDiscardLogger()
}
