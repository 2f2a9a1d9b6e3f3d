package wazero

import (
	"context"
	"log/slog"

	"github.com/reglet-dev/clue-ffi/bridge"
	"github.com/reglet-dev/clue-ffi/domain/errors"
	"github.com/reglet-dev/clue-ffi/internal/abi"
	"github.com/reglet-dev/clue-ffi/view"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const (
	// DefaultModuleName is the host module the guest imports deliver_string from.
	DefaultModuleName = "clue_host"

	// DefaultMaxViewSize is the largest view a guest may deliver (1MB).
	DefaultMaxViewSize = 1 << 20

	deliverStringName = "deliver_string"
)

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// Logger receives diagnostics from the host function and bridged calls.
	Logger *slog.Logger

	// ModuleName is the host module name (default: "clue_host").
	ModuleName string

	// MaxViewSize limits the length of a view delivered by the guest.
	// Zero disables the limit.
	MaxViewSize uint32
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module name (default: "clue_host").
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = name
	}
}

// WithMaxViewSize sets the maximum length of a view read from guest memory.
func WithMaxViewSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxViewSize = size
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// defaultAdapterConfig returns the default adapter configuration.
func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Logger:      slog.Default(),
		ModuleName:  DefaultModuleName,
		MaxViewSize: DefaultMaxViewSize,
	}
}

func newAdapterConfig(opts []AdapterOption) AdapterConfig {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// GuestView is the raw value a guest delivers: a range of its linear memory
// that has not been checked yet. It is only meaningful while the host
// function that built it is running.
type GuestView struct {
	Memory api.Memory
	Ptr    uint32
	Len    uint32

	// null is set when the packed value carried a null pointer with a
	// non-zero length.
	null bool
}

// View checks the range against the guest memory and limit, and returns a
// zero-copy view over it. A limit of zero disables the size check.
func (g GuestView) View(limit uint32) (view.StringView, error) {
	if g.null || g.Memory == nil {
		return view.StringView{}, &errors.BoundsError{Ptr: g.Ptr, Len: g.Len}
	}
	if limit > 0 && g.Len > limit {
		return view.StringView{}, &errors.BoundsError{Ptr: g.Ptr, Len: g.Len, Limit: limit}
	}
	if !abi.InRange(g.Ptr, g.Len, g.Memory.Size()) {
		return view.StringView{}, &errors.BoundsError{Ptr: g.Ptr, Len: g.Len}
	}

	b, ok := g.Memory.Read(g.Ptr, g.Len)
	if !ok {
		return view.StringView{}, &errors.BoundsError{Ptr: g.Ptr, Len: g.Len}
	}
	return view.FromBytes(b), nil
}

// RegisterWithRuntime instantiates the host module with the deliver_string
// function in runtime. It must be called before any guest importing it is
// instantiated.
//
// Example:
//
//	runtime := wazero.NewRuntime(ctx)
//	err := clueWazero.RegisterWithRuntime(ctx, runtime,
//	    clueWazero.WithModuleName("clue_host"),
//	)
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, opts ...AdapterOption) error {
	cfg := newAdapterConfig(opts)

	_, err := runtime.NewHostModuleBuilder(cfg.ModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			handleDeliverString(ctx, mod, stack, cfg.Logger)
		}), []api.ValueType{api.ValueTypeI64, api.ValueTypeI64}, []api.ValueType{}).
		Export(deliverStringName).
		Instantiate(ctx)
	return err
}

// handleDeliverString is the trampoline called by the guest. It never panics:
// conversion panics are captured by the bridge, and routing failures are
// logged and dropped.
func handleDeliverString(ctx context.Context, mod api.Module, stack []uint64, logger *slog.Logger) {
	env := bridge.Env(uintptr(stack[0]))
	ptr, length, ok := abi.UnpackPtrLen(stack[1])

	raw := GuestView{
		Memory: mod.Memory(),
		Ptr:    ptr,
		Len:    length,
		null:   !ok,
	}
	if err := bridge.Deliver(env, raw); err != nil {
		logger.ErrorContext(ctx, "wazero: dropped string delivery",
			"export", exportName(ctx, mod), "env", stack[0], "error", err)
	}
}
