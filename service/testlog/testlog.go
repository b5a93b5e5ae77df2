// Package testlog provides a log handler for unit tests.
package testlog

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Testing interface to log to. Standard Go testing.TB implements this.
type Testing interface {
	Logf(format string, args ...any)
	Helper()
	FailNow()
}

// logger implements log.Logger such that all output goes to the unit test log via
// t.Logf(). All methods are marked as test helpers, so the file and line number in
// unit test output correspond to the call site which emitted the log message.
type logger struct {
	t   Testing
	l   log.Logger
	mu  *sync.Mutex
	buf *bytes.Buffer
}

var _ log.Logger = (*logger)(nil)

// Logger returns a logger which logs to the unit test log of t.
func Logger(t Testing, level slog.Level) log.Logger {
	return LoggerWithHandlerMod(t, level, nil)
}

// LoggerWithHandlerMod is Logger with the terminal handler wrapped by mod, if non-nil.
func LoggerWithHandlerMod(t Testing, level slog.Level, mod func(slog.Handler) slog.Handler) log.Logger {
	l := &logger{t: t, mu: new(sync.Mutex), buf: new(bytes.Buffer)}
	var handler slog.Handler = log.NewTerminalHandlerWithLevel(l.buf, level, false)
	if mod != nil {
		handler = mod(handler)
	}
	l.l = log.NewLogger(handler)
	return l
}

func (l *logger) Handler() slog.Handler {
	return l.l.Handler()
}

func (l *logger) Trace(msg string, ctx ...any) {
	l.t.Helper()
	l.Log(log.LevelTrace, msg, ctx...)
}

func (l *logger) Debug(msg string, ctx ...any) {
	l.t.Helper()
	l.Log(log.LevelDebug, msg, ctx...)
}

func (l *logger) Info(msg string, ctx ...any) {
	l.t.Helper()
	l.Log(log.LevelInfo, msg, ctx...)
}

func (l *logger) Warn(msg string, ctx ...any) {
	l.t.Helper()
	l.Log(log.LevelWarn, msg, ctx...)
}

func (l *logger) Error(msg string, ctx ...any) {
	l.t.Helper()
	l.Log(log.LevelError, msg, ctx...)
}

func (l *logger) Crit(msg string, ctx ...any) {
	l.t.Helper()
	// l.l.Crit would exit the process before the buffer is flushed.
	l.Log(log.LevelCrit, msg, ctx...)
	l.t.FailNow()
}

func (l *logger) Log(level slog.Level, msg string, ctx ...any) {
	l.t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.l.Write(level, msg, ctx...)
	l.flush()
}

func (l *logger) Write(level slog.Level, msg string, ctx ...any) {
	l.t.Helper()
	l.Log(level, msg, ctx...)
}

func (l *logger) New(ctx ...any) log.Logger {
	return &logger{l.t, l.l.New(ctx...), l.mu, l.buf}
}

func (l *logger) With(ctx ...any) log.Logger {
	return l.New(ctx...)
}

func (l *logger) Enabled(ctx context.Context, level slog.Level) bool {
	return l.l.Enabled(ctx, level)
}

// flush writes all buffered messages and clears the buffer.
func (l *logger) flush() {
	l.t.Helper()
	scanner := bufio.NewScanner(l.buf)
	for scanner.Scan() {
		l.t.Logf("%s", scanner.Text())
	}
	l.buf.Reset()
}
