package wazero

import (
	"context"
	stdErrors "errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/reglet-dev/clue-ffi/bridge"
	"github.com/reglet-dev/clue-ffi/convert"
	"github.com/reglet-dev/clue-ffi/view"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

var (
	// ErrExportNotFound is returned when the guest has no export of the given name.
	ErrExportNotFound = stdErrors.New("export not found")

	// ErrExportSignature is returned when an export is not an entry point of
	// type (i64) -> ().
	ErrExportSignature = stdErrors.New("export is not an entry point")
)

// Library is an instantiated guest module whose exports are bridged entry points.
type Library struct {
	runtime wazero.Runtime
	module  api.Module
	cfg     AdapterConfig

	// mu serialises calls; a guest keeps its own state in linear memory.
	mu sync.Mutex
}

// Load compiles and instantiates wasm in a new runtime, together with the host
// module it imports. A call whose context is done is stopped, and the guest
// is closed with it.
func Load(ctx context.Context, wasm []byte, opts ...AdapterOption) (*Library, error) {
	cfg := newAdapterConfig(opts)

	runtime := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	if err := RegisterWithRuntime(ctx, runtime, opts...); err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("failed to register host module %q: %w", cfg.ModuleName, err)
	}

	compiled, err := runtime.CompileModule(ctx, wasm)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("failed to compile guest module: %w", err)
	}

	module, err := runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate guest module: %w", err)
	}

	cfg.Logger.DebugContext(ctx, "wazero: guest loaded",
		"module", module.Name(), "host_module", cfg.ModuleName, "max_view_size", cfg.MaxViewSize)

	return &Library{runtime: runtime, module: module, cfg: cfg}, nil
}

// Exports returns the sorted names of the guest's entry points.
func (l *Library) Exports() []string {
	defs := l.module.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for _, name := range slices.Sorted(maps.Keys(defs)) {
		if isEntryPoint(defs[name]) {
			names = append(names, name)
		}
	}
	return names
}

// Close releases the guest and its runtime.
func (l *Library) Close(ctx context.Context) error {
	return l.runtime.Close(ctx)
}

// entry returns the bridged entry point for export.
func (l *Library) entry(ctx context.Context, export string) (bridge.FallibleEntryPoint[GuestView], error) {
	fn := l.module.ExportedFunction(export)
	if fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrExportNotFound, export)
	}
	if !isEntryPoint(fn.Definition()) {
		return nil, fmt.Errorf("%w: %q has type %v -> %v", ErrExportSignature, export,
			valueTypeNames(fn.Definition().ParamTypes()), valueTypeNames(fn.Definition().ResultTypes()))
	}

	ctx = WithExportName(ctx, export)
	return func(env bridge.Env, _ bridge.Callback[GuestView]) error {
		// The host import is the callback; the guest finds it by name.
		_, err := fn.Call(ctx, uint64(env))
		return err
	}, nil
}

// Call runs export and converts the view it delivers with conv. opts are
// passed to the bridge after the library's own name and logger. conv must not
// call back into lib.
func Call[T any](ctx context.Context, lib *Library, export string, conv convert.Converter[view.StringView, T], opts ...bridge.Option) (T, error) {
	var zero T

	entry, err := lib.entry(ctx, export)
	if err != nil {
		return zero, err
	}

	lib.mu.Lock()
	defer lib.mu.Unlock()

	bridgeOpts := append([]bridge.Option{
		bridge.WithName(export),
		bridge.WithLogger(lib.cfg.Logger),
	}, opts...)
	return bridge.CallFallible[GuestView, T](guestConverter[T]{inner: conv, limit: lib.cfg.MaxViewSize}, entry, bridgeOpts...)
}

// GetString runs export and returns the string it delivers.
func GetString(ctx context.Context, lib *Library, export string, opts ...bridge.Option) (string, error) {
	return Call[string](ctx, lib, export, convert.String{}, opts...)
}

// Invoke runs export with a type-erased converter. It lets a Library be used
// where the target type is chosen at run time.
func (l *Library) Invoke(ctx context.Context, export string, conv convert.Converter[view.StringView, any], opts ...bridge.Option) (any, error) {
	return Call(ctx, l, export, conv, opts...)
}

// guestConverter checks a GuestView before handing the view to inner.
type guestConverter[T any] struct {
	inner convert.Converter[view.StringView, T]
	limit uint32
}

func (c guestConverter[T]) Convert(raw GuestView) (T, error) {
	v, err := raw.View(c.limit)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.inner.Convert(v)
}

func isEntryPoint(def api.FunctionDefinition) bool {
	params := def.ParamTypes()
	return len(params) == 1 && params[0] == api.ValueTypeI64 && len(def.ResultTypes()) == 0
}

func valueTypeNames(types []api.ValueType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return names
}
