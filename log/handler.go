// Package log provides a slog.Handler that writes through a zap logger, so
// library code can log with log/slog while the process owns a zap core.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapHandler implements slog.Handler on top of a *zap.Logger.
type ZapHandler struct {
	logger *zap.Logger
	fields []zap.Field
	groups []string
	opts   handlerConfig
}

// HandlerOption configures the ZapHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	level     slog.Level
	addSource bool
}

// defaultHandlerConfig returns the default configuration.
func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum log level to report.
func WithLevel(level slog.Level) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// NewHandler creates a ZapHandler writing to logger. A nil logger discards
// everything.
func NewHandler(logger *zap.Logger, opts ...HandlerOption) *ZapHandler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapHandler{logger: logger, opts: cfg}
}

// New returns a *slog.Logger backed by logger.
func New(logger *zap.Logger, opts ...HandlerOption) *slog.Logger {
	return slog.New(NewHandler(logger, opts...))
}

// ParseLevel maps "debug", "info", "warn" or "error" to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// Enabled reports whether the handler handles records at the given level.
func (h *ZapHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level && h.logger.Core().Enabled(zapLevel(level))
}

// Handle writes the record to the zap logger.
func (h *ZapHandler) Handle(_ context.Context, record slog.Record) error {
	ce := h.logger.Check(zapLevel(record.Level), record.Message)
	if ce == nil {
		return nil
	}
	if !record.Time.IsZero() {
		ce.Time = record.Time
	}

	fields := make([]zap.Field, 0, len(h.fields)+record.NumAttrs()+1)
	fields = append(fields, h.fields...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendAttr(fields, h.groups, attr)
		return true
	})

	if h.opts.addSource && record.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{record.PC})
		frame, _ := frames.Next()
		fields = append(fields, zap.String(slog.SourceKey, fmt.Sprintf("%s:%d", frame.File, frame.Line)))
	}

	ce.Write(fields...)
	return nil
}

// WithAttrs returns a new ZapHandler that includes the given attributes.
func (h *ZapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	newHandler := h.clone()
	for _, attr := range attrs {
		newHandler.fields = appendAttr(newHandler.fields, h.groups, attr)
	}
	return newHandler
}

// WithGroup returns a new ZapHandler with the given group name.
func (h *ZapHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newHandler := h.clone()
	newHandler.groups = append(newHandler.groups, name)
	return newHandler
}

func (h *ZapHandler) clone() *ZapHandler {
	newHandler := *h
	newHandler.fields = append([]zap.Field(nil), h.fields...)
	newHandler.groups = append([]string(nil), h.groups...)
	return &newHandler
}

// appendAttr converts one slog attribute to zap fields. Groups are flattened
// into dotted keys.
func appendAttr(fields []zap.Field, groups []string, attr slog.Attr) []zap.Field {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return fields
	}

	if attr.Value.Kind() == slog.KindGroup {
		nested := groups
		if attr.Key != "" {
			nested = append(append([]string(nil), groups...), attr.Key)
		}
		for _, member := range attr.Value.Group() {
			fields = appendAttr(fields, nested, member)
		}
		return fields
	}

	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	switch attr.Value.Kind() {
	case slog.KindString:
		return append(fields, zap.String(key, attr.Value.String()))
	case slog.KindInt64:
		return append(fields, zap.Int64(key, attr.Value.Int64()))
	case slog.KindUint64:
		return append(fields, zap.Uint64(key, attr.Value.Uint64()))
	case slog.KindBool:
		return append(fields, zap.Bool(key, attr.Value.Bool()))
	case slog.KindFloat64:
		return append(fields, zap.Float64(key, attr.Value.Float64()))
	case slog.KindTime:
		return append(fields, zap.Time(key, attr.Value.Time()))
	case slog.KindDuration:
		return append(fields, zap.Duration(key, attr.Value.Duration()))
	default:
		v := attr.Value.Any()
		if err, isErr := v.(error); isErr {
			return append(fields, zap.NamedError(key, err))
		}
		return append(fields, zap.Any(key, v))
	}
}

// zapLevel maps slog levels onto the nearest zap level.
func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
