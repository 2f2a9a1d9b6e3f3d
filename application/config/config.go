// Package config loads and validates the probe configuration.
package config

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"maps"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/clue-ffi/domain/entities"
	"github.com/reglet-dev/clue-ffi/domain/errors"
	"github.com/reglet-dev/clue-ffi/domain/ports"
)

// validate is a package-level singleton; it caches struct metadata.
var validate = newValidator()

// newValidator reports fields by their JSON names, which are the keys users
// write in config files.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Defaults returns the configuration used for keys that are not set.
func Defaults() entities.ProbeConfig {
	return entities.ProbeConfig{
		Mode:            entities.ModeStrict,
		InterruptPolicy: "error",
		LogLevel:        "info",
		ModuleName:      "clue_host",
		MaxViewSize:     1 << 20,
	}
}

// Load reads the file at path, if any, and builds the configuration from it.
// An empty path means defaults and overrides only.
func Load(path string, parser ports.ConfigParser, overrides map[string]any) (*entities.ProbeConfig, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return Parse(data, parser, overrides)
}

// Parse builds the configuration from data, applying overrides on top of the
// parsed keys and defaults beneath them, then validates the result.
func Parse(data []byte, parser ports.ConfigParser, overrides map[string]any) (*entities.ProbeConfig, error) {
	raw, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	maps.Copy(raw, overrides)

	cfg := Defaults()
	if err := Decode(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode decodes a raw config map into target and validates it.
// It first marshals the map to JSON, then unmarshals it into the target struct,
// and finally runs the validator on the struct.
func Decode(raw map[string]any, target any) error {
	// 1. Convert map[string]any to JSON bytes
	jsonBytes, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal config map: %w", err)
	}

	// 2. Unmarshal JSON bytes into the target struct
	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return &errors.DecodeError{Err: err, Target: fmt.Sprintf("%T", target), Format: "config"}
	}

	// 3. Validate the struct using go-playground/validator
	return Validate(target)
}

// Validate runs the struct validator on target and reports failing fields as
// an *errors.ValidationError.
func Validate(target any) error {
	err := validate.Struct(target)
	if err == nil {
		return nil
	}

	verr := &errors.ValidationError{Err: err, Target: fmt.Sprintf("%T", target)}
	var fieldErrs validator.ValidationErrors
	if stdErrors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			verr.Fields = append(verr.Fields, fe.Field())
		}
	}
	return verr
}
