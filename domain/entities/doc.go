// Package entities holds the value types shared across the conversion boundary
// that carry no behavior of their own.
package entities
