//go:build cgo

package main

import (
	"github.com/reglet-dev/clue-ffi/application/probe"
	"github.com/reglet-dev/clue-ffi/native"
)

func openNative() (probe.Library, error) {
	return native.SampleLibrary(), nil
}
