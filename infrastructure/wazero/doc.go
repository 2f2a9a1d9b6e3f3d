// Package wazero runs a WebAssembly module as the foreign library behind a
// bridged call.
//
// The guest exports entry points of type (env i64) -> () and imports one host
// function, deliver_string(env i64, view i64), from the host module (default:
// "clue_host"). The view argument is a packed pointer/length pair into the
// guest's linear memory; the host function is the callback trampoline.
//
// # Basic Usage
//
//	lib, err := wazero.Load(ctx, wasmBytes,
//	    wazero.WithMaxViewSize(64<<10),
//	)
//	if err != nil {
//	    return err
//	}
//	defer lib.Close(ctx)
//
//	color, err := wazero.GetString(ctx, lib, "clue_color")
//
// Any converter can be used in place of the string converter:
//
//	cfg, err := wazero.Call(ctx, lib, "clue_config", convert.NewJSON[Config]())
//
// A guest that traps before delivering a value yields a
// *errors.ForeignCallError. A guest that returns cleanly without delivering,
// or delivers twice, breaks the callback contract and the call panics with a
// *errors.ProtocolViolationError.
package wazero
