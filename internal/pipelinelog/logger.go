// Package pipelinelog writes messages to a pipeline's console output.
package pipelinelog

import (
	"fmt"
	"io"
	"sync"
)

const prefix = "[Atlassian Cloud] "

// Logger prints prefixed lines to the build console. Debug lines are only printed
// when debug logging is enabled process-wide.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	debug bool
}

// New creates a logger writing to out.
func New(out io.Writer, debug bool) *Logger {
	if out == nil {
		out = io.Discard
	}
	return &Logger{out: out, debug: debug}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, false)
}

// DebugEnabled reports whether Debug lines are printed.
func (l *Logger) DebugEnabled() bool {
	return l.debug
}

// Info prints a message.
func (l *Logger) Info(format string, args ...any) {
	l.write("", format, args...)
}

// Warn prints a warning.
func (l *Logger) Warn(format string, args ...any) {
	l.write("WARN: ", format, args...)
}

// Debug prints a message when debug logging is on.
func (l *Logger) Debug(format string, args ...any) {
	if !l.debug {
		return
	}
	l.write("DEBUG: ", format, args...)
}

func (l *Logger) write(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, prefix+level+format+"\n", args...)
}
