package convert

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/reglet-dev/clue-ffi/domain/errors"
	"github.com/reglet-dev/clue-ffi/view"
)

// defaultValidator is shared by JSON converters created without one.
// validator.Validate caches struct metadata and is safe for concurrent use.
var defaultValidator = validator.New(validator.WithRequiredStructEnabled())

// JSON converts a StringView holding a JSON document into a T. The text must
// be valid UTF-8; struct targets are then checked against their `validate`
// tags.
type JSON[T any] struct {
	validate *validator.Validate
}

// JSONOption configures a JSON converter.
type JSONOption func(*jsonConfig)

type jsonConfig struct {
	validate *validator.Validate
}

// WithValidator replaces the validator used for struct targets.
func WithValidator(v *validator.Validate) JSONOption {
	return func(c *jsonConfig) {
		c.validate = v
	}
}

// NewJSON creates a JSON converter for T.
func NewJSON[T any](opts ...JSONOption) JSON[T] {
	cfg := jsonConfig{validate: defaultValidator}
	for _, opt := range opts {
		opt(&cfg)
	}
	return JSON[T]{validate: cfg.validate}
}

// Convert implements Converter.
func (c JSON[T]) Convert(raw view.StringView) (T, error) {
	var out T
	if _, err := view.FromView(raw); err != nil {
		return out, err
	}

	// json.Unmarshal copies everything it keeps, so decoding straight from
	// the borrowed bytes is safe.
	if err := json.Unmarshal(raw.Bytes(), &out); err != nil {
		return out, &errors.DecodeError{Err: err, Target: typeName[T](), Format: "json"}
	}

	if err := c.validateStruct(out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Schema returns the JSON Schema describing T.
func (c JSON[T]) Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	var zero T
	schema := reflector.Reflect(&zero)

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema for %s: %w", typeName[T](), err)
	}
	return data, nil
}

func (c JSON[T]) validateStruct(v T) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	validate := c.validate
	if validate == nil {
		validate = defaultValidator
	}

	err := validate.Struct(rv.Interface())
	if err == nil {
		return nil
	}

	verr := &errors.ValidationError{Err: err, Target: typeName[T]()}
	var fieldErrs validator.ValidationErrors
	if stdErrors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			verr.Fields = append(verr.Fields, fe.Namespace())
		}
	}
	return verr
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
