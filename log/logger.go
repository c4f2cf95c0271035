package log

import (
	"fmt"
	"io"
	"strings"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger interface is compatible with Tendermint logger
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})

	// With returns a logger that adds keyvals to every entry.
	With(keyvals ...interface{}) Logger
}

// Format selects the encoding of log lines.
type Format string

const (
	// FormatPlain encodes entries as logfmt.
	FormatPlain Format = "plain"
	// FormatJSON encodes entries as JSON objects.
	FormatJSON Format = "json"
)

// Options configures NewLogger.
type Options struct {
	Level  string
	Format Format
}

type kitLogger struct {
	l kitlog.Logger
}

var _ Logger = &kitLogger{}

// NewLogger returns a Logger writing to w, filtering entries below opts.Level.
func NewLogger(w io.Writer, opts Options) (Logger, error) {
	var l kitlog.Logger
	switch opts.Format {
	case FormatJSON:
		l = kitlog.NewJSONLogger(kitlog.NewSyncWriter(w))
	case FormatPlain, "":
		l = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	default:
		return nil, fmt.Errorf("unsupported log format: %q", opts.Format)
	}

	option, err := levelOption(opts.Level)
	if err != nil {
		return nil, err
	}
	l = level.NewFilter(l, option)
	l = kitlog.With(l, "ts", kitlog.DefaultTimestampUTC)
	return &kitLogger{l: l}, nil
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	return &kitLogger{l: kitlog.NewNopLogger()}
}

// Kit exposes the underlying go-kit logger. Libraries that take a go-kit
// logger (object store providers) share the node's sink through it.
func Kit(l Logger) kitlog.Logger {
	if kl, ok := l.(*kitLogger); ok {
		return kl.l
	}
	return kitlog.NewNopLogger()
}

func (k *kitLogger) Debug(msg string, keyvals ...interface{}) {
	_ = level.Debug(k.l).Log(append([]interface{}{"msg", msg}, keyvals...)...)
}

func (k *kitLogger) Info(msg string, keyvals ...interface{}) {
	_ = level.Info(k.l).Log(append([]interface{}{"msg", msg}, keyvals...)...)
}

func (k *kitLogger) Error(msg string, keyvals ...interface{}) {
	_ = level.Error(k.l).Log(append([]interface{}{"msg", msg}, keyvals...)...)
}

func (k *kitLogger) With(keyvals ...interface{}) Logger {
	return &kitLogger{l: kitlog.With(k.l, keyvals...)}
}

func levelOption(lvl string) (level.Option, error) {
	switch strings.ToLower(lvl) {
	case "debug":
		return level.AllowDebug(), nil
	case "info", "":
		return level.AllowInfo(), nil
	case "error":
		return level.AllowError(), nil
	case "none":
		return level.AllowNone(), nil
	default:
		return nil, fmt.Errorf("unsupported log level: %q", lvl)
	}
}
