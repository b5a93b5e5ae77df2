package log

import (
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"reflect"
	"time"

	"github.com/holiman/uint256"

	elog "github.com/ethereum/go-ethereum/log"
)

const timeFormatMs = "2006-01-02T15:04:05.000-0700"

type leveler struct{ minLevel slog.Level }

func (l *leveler) Level() slog.Level {
	return l.minLevel
}

// JSONMsHandler writes one JSON object per record, with millisecond timestamps.
func JSONMsHandler(wr io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(wr, &slog.HandlerOptions{
		ReplaceAttr: replaceJSONMs,
		Level:       &leveler{level},
	})
}

// LogfmtMsHandler writes logfmt lines with millisecond timestamps.
func LogfmtMsHandler(wr io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(wr, &slog.HandlerOptions{
		ReplaceAttr: replaceLogfmtMs,
		Level:       &leveler{level},
	})
}

func replaceLogfmtMs(_ []string, attr slog.Attr) slog.Attr {
	return replaceMs(attr, true)
}

func replaceJSONMs(_ []string, attr slog.Attr) slog.Attr {
	return replaceMs(attr, false)
}

func replaceMs(attr slog.Attr, logfmt bool) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		if attr.Value.Kind() == slog.KindTime {
			if logfmt {
				return slog.String("t", attr.Value.Time().Format(timeFormatMs))
			}
			return slog.Attr{Key: "t", Value: attr.Value}
		}
	case slog.LevelKey:
		if l, ok := attr.Value.Any().(slog.Level); ok {
			return slog.Any("lvl", elog.LevelString(l))
		}
	}

	switch v := attr.Value.Any().(type) {
	case time.Time:
		if logfmt {
			attr = slog.String(attr.Key, v.Format(timeFormatMs))
		}
	case time.Duration:
		attr.Value = slog.StringValue(v.String())
	case *big.Int:
		if v == nil {
			attr.Value = slog.StringValue("<nil>")
		} else {
			attr.Value = slog.StringValue(v.String())
		}
	case *uint256.Int:
		if v == nil {
			attr.Value = slog.StringValue("<nil>")
		} else {
			attr.Value = slog.StringValue(v.Dec())
		}
	case fmt.Stringer:
		if v == nil || (reflect.ValueOf(v).Kind() == reflect.Pointer && reflect.ValueOf(v).IsNil()) {
			attr.Value = slog.StringValue("<nil>")
		} else {
			attr.Value = slog.StringValue(v.String())
		}
	}
	return attr
}
