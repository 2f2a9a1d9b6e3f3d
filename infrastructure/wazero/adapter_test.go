package wazero

import (
	"bytes"
	"context"
	stdErrors "errors"
	"log/slog"
	"testing"

	"github.com/reglet-dev/clue-ffi/bridge"
	"github.com/reglet-dev/clue-ffi/convert"
	"github.com/reglet-dev/clue-ffi/domain/errors"
	"github.com/reglet-dev/clue-ffi/internal/testutil"
	"github.com/reglet-dev/clue-ffi/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
)

func loadGuest(t *testing.T, opts ...AdapterOption) *Library {
	t.Helper()
	ctx := context.Background()
	lib, err := Load(ctx, testutil.GuestModule(DefaultModuleName), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lib.Close(ctx) })
	return lib
}

func TestDefaultAdapterConfig(t *testing.T) {
	cfg := defaultAdapterConfig()
	assert.Equal(t, "clue_host", cfg.ModuleName)
	assert.Equal(t, uint32(DefaultMaxViewSize), cfg.MaxViewSize)
	assert.NotNil(t, cfg.Logger)
}

func TestAdapterOptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	cfg := newAdapterConfig([]AdapterOption{
		WithModuleName("custom_module"),
		WithMaxViewSize(2048),
		WithLogger(logger),
		WithLogger(nil),
	})

	assert.Equal(t, "custom_module", cfg.ModuleName)
	assert.Equal(t, uint32(2048), cfg.MaxViewSize)
	assert.Same(t, logger, cfg.Logger)
}

func TestGetString(t *testing.T) {
	lib := loadGuest(t)
	ctx := context.Background()

	got, err := GetString(ctx, lib, "clue_color")
	require.NoError(t, err)
	assert.Equal(t, "blue", got)

	// Repeated calls get a fresh slot each time.
	got, err = GetString(ctx, lib, "clue_color")
	require.NoError(t, err)
	assert.Equal(t, "blue", got)
}

func TestGetString_Empty(t *testing.T) {
	got, err := GetString(context.Background(), loadGuest(t), "clue_empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetString_DoesNotAliasGuestMemory(t *testing.T) {
	lib := loadGuest(t)
	ctx := context.Background()

	got, err := GetString(ctx, lib, "clue_color")
	require.NoError(t, err)

	mem := lib.module.Memory()
	require.True(t, mem.Write(testutil.ColorPtr, []byte("gray")))
	assert.Equal(t, "blue", got)

	got, err = GetString(ctx, lib, "clue_color")
	require.NoError(t, err)
	assert.Equal(t, "gray", got)
}

func TestGetString_InvalidEncoding(t *testing.T) {
	_, err := GetString(context.Background(), loadGuest(t), "clue_invalid")

	var encErr *errors.EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, 2, encErr.ValidUpTo)
	assert.Equal(t, len(testutil.InvalidData), encErr.Len)
}

func TestCall_Lossy(t *testing.T) {
	got, err := Call(context.Background(), loadGuest(t), "clue_invalid", convert.LossyString{})
	require.NoError(t, err)
	assert.Equal(t, "ab�c", got)
}

func TestCall_Bytes(t *testing.T) {
	got, err := Call(context.Background(), loadGuest(t), "clue_invalid", convert.Bytes{})
	require.NoError(t, err)
	assert.Equal(t, testutil.InvalidData, got)
}

type color struct {
	Name string `json:"name" validate:"required"`
	Hex  string `json:"hex" validate:"omitempty,hexcolor"`
}

func TestCall_JSON(t *testing.T) {
	got, err := Call(context.Background(), loadGuest(t), "clue_json", convert.NewJSON[color]())
	require.NoError(t, err)
	assert.Equal(t, color{Name: "blue", Hex: "#0000ff"}, got)
}

func TestGetString_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		export string
		opts   []AdapterOption
		want   errors.BoundsError
	}{
		{
			name:   "past end of memory",
			export: "clue_oob",
			want:   errors.BoundsError{Ptr: 65534, Len: 4},
		},
		{
			name:   "null pointer",
			export: "clue_null",
			want:   errors.BoundsError{Ptr: 0, Len: 4},
		},
		{
			name:   "over limit",
			export: "clue_color",
			opts:   []AdapterOption{WithMaxViewSize(2)},
			want:   errors.BoundsError{Ptr: testutil.ColorPtr, Len: 4, Limit: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GetString(context.Background(), loadGuest(t, tt.opts...), tt.export)

			var boundsErr *errors.BoundsError
			require.ErrorAs(t, err, &boundsErr)
			assert.Equal(t, tt.want, *boundsErr)
		})
	}
}

func TestGetString_NoLimit(t *testing.T) {
	got, err := GetString(context.Background(), loadGuest(t, WithMaxViewSize(0)), "clue_color")
	require.NoError(t, err)
	assert.Equal(t, "blue", got)
}

func TestGetString_NotInvoked(t *testing.T) {
	lib := loadGuest(t)

	violation := testutil.ProtocolViolation(t, func() {
		_, _ = GetString(context.Background(), lib, "clue_silent")
	})
	assert.Equal(t, errors.ReasonNotInvoked, violation.Reason)
	assert.Equal(t, "clue_silent", violation.Entry)
}

func TestGetString_InvokedTwice(t *testing.T) {
	lib := loadGuest(t)

	violation := testutil.ProtocolViolation(t, func() {
		_, _ = GetString(context.Background(), lib, "clue_twice")
	})
	assert.Equal(t, errors.ReasonInvokedTwice, violation.Reason)

	// The library stays usable after a broken call.
	got, err := GetString(context.Background(), lib, "clue_color")
	require.NoError(t, err)
	assert.Equal(t, "blue", got)
}

func TestGetString_StrayDeliveryIsLogged(t *testing.T) {
	var buf bytes.Buffer
	lib := loadGuest(t, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	violation := testutil.ProtocolViolation(t, func() {
		_, _ = GetString(context.Background(), lib, "clue_stray")
	})
	assert.Equal(t, errors.ReasonNotInvoked, violation.Reason)
	assert.Contains(t, buf.String(), "wazero: dropped string delivery")
	assert.Contains(t, buf.String(), "export=clue_stray")
}

func TestGetString_Trap(t *testing.T) {
	_, err := GetString(context.Background(), loadGuest(t), "clue_trap")

	var callErr *errors.ForeignCallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "clue_trap", callErr.Entry)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestGetString_TrapAfterDelivery(t *testing.T) {
	_, err := GetString(context.Background(), loadGuest(t), "clue_trap_after")

	var callErr *errors.ForeignCallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "clue_trap_after", callErr.Entry)
}

func TestCall_ConverterPanic(t *testing.T) {
	lib := loadGuest(t)
	payload := stdErrors.New("converter exploded")
	exploding := convert.ConverterFunc[view.StringView, string](func(view.StringView) (string, error) {
		panic(payload)
	})

	assert.PanicsWithValue(t, payload, func() {
		_, _ = Call(context.Background(), lib, "clue_color", exploding)
	})

	_, err := Call(context.Background(), lib, "clue_color", exploding,
		bridge.WithInterruptPolicy(bridge.ErrorPolicy))
	var panicErr *errors.PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.ErrorIs(t, err, payload)
	assert.Equal(t, "clue_color", panicErr.Entry)
}

func TestCall_UnknownExport(t *testing.T) {
	lib := loadGuest(t)

	_, err := GetString(context.Background(), lib, "clue_missing")
	assert.ErrorIs(t, err, ErrExportNotFound)

	_, err = GetString(context.Background(), lib, "version")
	assert.ErrorIs(t, err, ErrExportSignature)
	assert.Contains(t, err.Error(), "[] -> [i32]")
}

func TestLibrary_Exports(t *testing.T) {
	assert.Equal(t, testutil.GuestExports(), loadGuest(t).Exports())
	assert.NotContains(t, loadGuest(t).Exports(), "version")
}

func TestLoad_CustomModuleName(t *testing.T) {
	ctx := context.Background()

	lib, err := Load(ctx, testutil.GuestModule("custom_host"), WithModuleName("custom_host"))
	require.NoError(t, err)
	defer lib.Close(ctx)

	got, err := GetString(ctx, lib, "clue_color")
	require.NoError(t, err)
	assert.Equal(t, "blue", got)
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Load(ctx, []byte("not wasm"))
	assert.ErrorContains(t, err, "failed to compile guest module")

	// The guest imports a host module that is not registered.
	_, err = Load(ctx, testutil.GuestModule("other_host"))
	assert.ErrorContains(t, err, "failed to instantiate guest module")
}

func TestRegisterWithRuntime(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	require.NoError(t, RegisterWithRuntime(ctx, runtime))

	host := runtime.Module(DefaultModuleName)
	require.NotNil(t, host)

	// Registering the same module name twice fails.
	assert.Error(t, RegisterWithRuntime(ctx, runtime))
}

func TestGuestView_NoMemory(t *testing.T) {
	_, err := GuestView{Ptr: 1, Len: 1}.View(0)
	var boundsErr *errors.BoundsError
	assert.ErrorAs(t, err, &boundsErr)
}

func TestExportNameFromContext(t *testing.T) {
	_, ok := ExportNameFromContext(context.Background())
	assert.False(t, ok)

	name, ok := ExportNameFromContext(WithExportName(context.Background(), "clue_color"))
	assert.True(t, ok)
	assert.Equal(t, "clue_color", name)
}

func TestLibrary_Invoke(t *testing.T) {
	conv := convert.Any[view.StringView, string](convert.String{})

	got, err := loadGuest(t).Invoke(context.Background(), "clue_color", conv)
	require.NoError(t, err)
	assert.Equal(t, "blue", got)
}
