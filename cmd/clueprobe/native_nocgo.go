//go:build !cgo

package main

import (
	stdErrors "errors"

	"github.com/reglet-dev/clue-ffi/application/probe"
)

func openNative() (probe.Library, error) {
	return nil, stdErrors.New("native library unavailable: built without cgo")
}
