package testlog

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// CapturedRecord is a log record with the attributes inherited from the logger it was written to.
type CapturedRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// CapturingHandler records every log record and forwards it to a delegate.
type CapturingHandler struct {
	handler slog.Handler
	attrs   []slog.Attr
	mu      *sync.Mutex
	logs    *[]CapturedRecord
}

// CaptureLogger returns a test logger together with the handler capturing its output.
func CaptureLogger(t Testing, level slog.Level) (log.Logger, *CapturingHandler) {
	var ch *CapturingHandler
	lgr := LoggerWithHandlerMod(t, level, func(h slog.Handler) slog.Handler {
		ch = &CapturingHandler{handler: h, mu: new(sync.Mutex), logs: new([]CapturedRecord)}
		return ch
	})
	return lgr, ch
}

func (c *CapturingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return c.handler.Enabled(ctx, level)
}

func (c *CapturingHandler) Handle(ctx context.Context, r slog.Record) error {
	rec := CapturedRecord{Level: r.Level, Message: r.Message, Attrs: make(map[string]any)}
	for _, a := range c.attrs {
		rec.Attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attrs[a.Key] = a.Value.Any()
		return true
	})
	c.mu.Lock()
	*c.logs = append(*c.logs, rec)
	c.mu.Unlock()
	return c.handler.Handle(ctx, r)
}

func (c *CapturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CapturingHandler{
		handler: c.handler.WithAttrs(attrs),
		attrs:   append(append([]slog.Attr{}, c.attrs...), attrs...),
		mu:      c.mu,
		logs:    c.logs,
	}
}

func (c *CapturingHandler) WithGroup(name string) slog.Handler {
	return &CapturingHandler{
		handler: c.handler.WithGroup(name),
		attrs:   c.attrs,
		mu:      c.mu,
		logs:    c.logs,
	}
}

// FindLog returns the first captured record at level whose message contains msg.
func (c *CapturingHandler) FindLog(level slog.Level, msg string) *CapturedRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range *c.logs {
		rec := (*c.logs)[i]
		if rec.Level == level && strings.Contains(rec.Message, msg) {
			return &rec
		}
	}
	return nil
}

// Logs returns a copy of all captured records.
func (c *CapturingHandler) Logs() []CapturedRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CapturedRecord(nil), *c.logs...)
}
