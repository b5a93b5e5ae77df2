package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
)

const (
	LevelFlagName  = "log.level"
	FormatFlagName = "log.format"
	ColorFlagName  = "log.color"
)

type FormatType string

const (
	FormatTerminal FormatType = "terminal"
	FormatLogFmt   FormatType = "logfmt"
	FormatJSON     FormatType = "json"
)

func (f FormatType) String() string {
	return string(f)
}

// CLIFlags returns the logging flags, with env vars derived from envPrefix.
func CLIFlags(envPrefix string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    LevelFlagName,
			Usage:   "The lowest log level that will be output. One of trace, debug, info, warn, error, crit",
			Value:   "info",
			EnvVars: []string{envPrefix + "_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    FormatFlagName,
			Usage:   "Format the log output. One of terminal, logfmt, json",
			Value:   FormatTerminal.String(),
			EnvVars: []string{envPrefix + "_LOG_FORMAT"},
		},
		&cli.BoolFlag{
			Name:    ColorFlagName,
			Usage:   "Color the log output if in terminal mode",
			EnvVars: []string{envPrefix + "_LOG_COLOR"},
		},
	}
}

type CLIConfig struct {
	Level  slog.Level
	Color  bool
	Format FormatType
}

func DefaultCLIConfig() CLIConfig {
	return CLIConfig{
		Level:  log.LevelInfo,
		Format: FormatTerminal,
		Color:  isatty.IsTerminal(os.Stdout.Fd()),
	}
}

func (c CLIConfig) Check() error {
	switch c.Format {
	case FormatTerminal, FormatLogFmt, FormatJSON:
		return nil
	default:
		return fmt.Errorf("unrecognized log format: %q", c.Format)
	}
}

// ReadCLIConfig reads the logging flags. Invalid values fall back to the defaults,
// flag validation belongs to the app's Before hook.
func ReadCLIConfig(ctx *cli.Context) CLIConfig {
	cfg := DefaultCLIConfig()
	if lvl, err := LevelFromString(ctx.String(LevelFlagName)); err == nil {
		cfg.Level = lvl
	}
	if ctx.IsSet(FormatFlagName) {
		cfg.Format = FormatType(strings.ToLower(ctx.String(FormatFlagName)))
	}
	if ctx.IsSet(ColorFlagName) {
		cfg.Color = ctx.Bool(ColorFlagName)
	}
	return cfg
}

func LevelFromString(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace", "trce":
		return log.LevelTrace, nil
	case "debug", "dbug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error", "eror":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	default:
		return 0, fmt.Errorf("unknown log level: %q", s)
	}
}

// NewHandler builds the slog handler described by cfg.
func NewHandler(wr io.Writer, cfg CLIConfig) slog.Handler {
	switch cfg.Format {
	case FormatJSON:
		return JSONMsHandler(wr, cfg.Level)
	case FormatLogFmt:
		return LogfmtMsHandler(wr, cfg.Level)
	default:
		return log.NewTerminalHandlerWithLevel(wr, cfg.Level, cfg.Color)
	}
}

func NewLogger(wr io.Writer, cfg CLIConfig) log.Logger {
	return log.NewLogger(NewHandler(wr, cfg))
}

// SetGlobalLogHandler routes the geth root logger through h.
func SetGlobalLogHandler(h slog.Handler) {
	log.SetDefault(log.NewLogger(h))
}

// AppOut returns the app writer of the CLI, defaulting to stdout.
func AppOut(ctx *cli.Context) io.Writer {
	if ctx == nil || ctx.App == nil || ctx.App.Writer == nil {
		return os.Stdout
	}
	return ctx.App.Writer
}
