// Package probe calls the entry points of a foreign library and reports what
// each one delivered, including broken callback contracts.
package probe

import (
	"context"
	"encoding/hex"
	stdErrors "errors"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/clue-ffi/bridge"
	"github.com/reglet-dev/clue-ffi/convert"
	"github.com/reglet-dev/clue-ffi/domain/entities"
	"github.com/reglet-dev/clue-ffi/domain/errors"
	"github.com/reglet-dev/clue-ffi/view"
)

// Library is a foreign library whose entry points deliver a string view.
type Library interface {
	// Exports lists the entry points, sorted.
	Exports() []string

	// Invoke calls export and converts what it delivers with conv.
	Invoke(ctx context.Context, export string, conv convert.Converter[view.StringView, any], opts ...bridge.Option) (any, error)
}

// ConverterFor returns the converter implementing mode. Bytes are rendered
// as a hex string.
func ConverterFor(mode entities.DecodeMode) (convert.Converter[view.StringView, any], error) {
	switch mode {
	case entities.ModeStrict, "":
		return convert.Any[view.StringView, string](convert.String{}), nil
	case entities.ModeLossy:
		return convert.Any[view.StringView, string](convert.LossyString{}), nil
	case entities.ModeBytes:
		return convert.Any[view.StringView, string](convert.ConverterFunc[view.StringView, string](func(raw view.StringView) (string, error) {
			return hex.EncodeToString(raw.Bytes()), nil
		})), nil
	case entities.ModeJSON:
		return convert.Any[view.StringView, any](convert.NewJSON[any]()), nil
	default:
		return nil, fmt.Errorf("unknown decode mode %q", mode)
	}
}

// Service probes a library according to a ProbeConfig.
type Service struct {
	lib    Library
	logger *slog.Logger
	cfg    entities.ProbeConfig
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service probing lib.
func NewService(lib Library, cfg entities.ProbeConfig, opts ...Option) *Service {
	s := &Service{lib: lib, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run calls every configured export, or every export of the library when
// none are configured, and returns one result per export in order.
func (s *Service) Run(ctx context.Context) ([]entities.ProbeResult, error) {
	conv, err := ConverterFor(s.cfg.Mode)
	if err != nil {
		return nil, err
	}
	policy, ok := bridge.ParseInterruptPolicy(s.cfg.InterruptPolicy)
	if !ok {
		return nil, fmt.Errorf("unknown interrupt policy %q", s.cfg.InterruptPolicy)
	}

	exports := s.cfg.Exports
	if len(exports) == 0 {
		exports = s.lib.Exports()
	}

	results := make([]entities.ProbeResult, 0, len(exports))
	for _, export := range exports {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result := s.probe(ctx, export, conv, policy)
		s.logger.DebugContext(ctx, "probe: export done", "export", export, "kind", result.Kind)
		results = append(results, result)
	}
	return results, nil
}

// probe calls one export. A protocol violation is reported as a result; any
// other panic is re-raised.
func (s *Service) probe(ctx context.Context, export string, conv convert.Converter[view.StringView, any], policy bridge.InterruptPolicy) (result entities.ProbeResult) {
	result.Export = export

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		violation, ok := r.(*errors.ProtocolViolationError)
		if !ok {
			panic(r)
		}
		s.logger.WarnContext(ctx, "probe: callback contract broken", "export", export, "reason", string(violation.Reason))
		result.Kind = entities.ResultViolation
		result.Value = nil
		result.Error = violation.ToErrorDetail()
	}()

	v, err := s.lib.Invoke(ctx, export, conv, bridge.WithInterruptPolicy(policy))
	if err != nil {
		result.Kind = entities.ResultErr
		var panicErr *errors.PanicError
		if stdErrors.As(err, &panicErr) {
			result.Kind = entities.ResultInterrupted
		}
		result.Error = errors.ToErrorDetail(err)
		return result
	}

	result.Kind = entities.ResultOk
	result.Value = v
	return result
}
