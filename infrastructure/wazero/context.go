package wazero

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// contextKey is a private type for context keys.
type contextKey struct {
	name string
}

var exportNameKey = &contextKey{name: "export_name"}

// WithExportName adds the name of the export being called to the context.
// The host function uses it to label deliveries it has to drop.
func WithExportName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, exportNameKey, name)
}

// ExportNameFromContext retrieves the export name from the context.
func ExportNameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(exportNameKey).(string)
	return name, ok
}

// exportName extracts the export name from context, falling back to the module name.
func exportName(ctx context.Context, mod api.Module) string {
	if name, ok := ExportNameFromContext(ctx); ok {
		return name
	}
	return mod.Name()
}
