package convert

import (
	stdErrors "errors"
	"fmt"
	"strings"
	"testing"
	"unsafe"

	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/clue-ffi/domain/errors"
	"github.com/reglet-dev/clue-ffi/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	buf := []byte("blue")
	got, err := String{}.Convert(view.FromBytes(buf))
	require.NoError(t, err)
	assert.Equal(t, "blue", got)

	// The result owns its memory.
	assert.NotEqual(t, unsafe.Pointer(unsafe.SliceData(buf)), unsafe.Pointer(unsafe.StringData(got)))
}

func TestString_InvalidUTF8(t *testing.T) {
	_, err := String{}.Convert(view.FromBytes([]byte{'b', 0xff}))

	var encErr *errors.EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, 1, encErr.ValidUpTo)
}

func TestLossyString(t *testing.T) {
	got, err := LossyString{}.Convert(view.FromBytes([]byte{'b', 0xff}))
	require.NoError(t, err)
	assert.Equal(t, "b�", got)
}

func TestBytes(t *testing.T) {
	buf := []byte{0xff, 0x00, 'x'}
	got, err := Bytes{}.Convert(view.FromBytes(buf))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0x00, 'x'}, got)

	buf[0] = 0
	assert.Equal(t, byte(0xff), got[0], "result must not alias the view")

	empty, err := Bytes{}.Convert(view.StringView{})
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestConverterFunc(t *testing.T) {
	upper := ConverterFunc[view.StringView, string](func(raw view.StringView) (string, error) {
		s, err := view.FromView(raw)
		if err != nil {
			return "", err
		}
		return strings.ToUpper(s), nil
	})

	got, err := upper.Convert(view.ToView("blue"))
	require.NoError(t, err)
	assert.Equal(t, "BLUE", got)
}

func TestAny(t *testing.T) {
	conv := Any[view.StringView, string](String{})

	got, err := conv.Convert(view.ToView("blue"))
	require.NoError(t, err)
	assert.Equal(t, "blue", got)

	got, err = conv.Convert(view.FromBytes([]byte{0xff}))
	assert.Error(t, err)
	assert.Nil(t, got)
}

type color struct {
	Name string `json:"name" validate:"required"`
	Hex  string `json:"hex,omitempty" validate:"omitempty,hexcolor"`
}

func TestJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    color
		errType any
	}{
		{
			name:  "valid document",
			input: []byte(`{"name":"blue","hex":"#0000ff"}`),
			want:  color{Name: "blue", Hex: "#0000ff"},
		},
		{
			name:    "invalid utf-8",
			input:   []byte{'{', 0xff, '}'},
			errType: &errors.EncodingError{},
		},
		{
			name:    "malformed json",
			input:   []byte(`{"name":`),
			errType: &errors.DecodeError{},
		},
		{
			name:    "missing required field",
			input:   []byte(`{"hex":"#0000ff"}`),
			errType: &errors.ValidationError{},
		},
		{
			name:    "bad hex color",
			input:   []byte(`{"name":"blue","hex":"blue"}`),
			errType: &errors.ValidationError{},
		},
	}

	conv := NewJSON[color]()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := conv.Convert(view.FromBytes(tt.input))
			if tt.errType == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			require.Error(t, err)
			assert.IsType(t, tt.errType, err)
			assert.Equal(t, color{}, got)
		})
	}
}

func TestJSON_ValidationFields(t *testing.T) {
	_, err := NewJSON[color]().Convert(view.ToView(`{}`))

	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"color.Name"}, verr.Fields)
	assert.Equal(t, "convert.color", verr.Target)
}

func TestJSON_NonStructTarget(t *testing.T) {
	got, err := NewJSON[[]int]().Convert(view.ToView(`[1,2,3]`))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestJSON_PointerTarget(t *testing.T) {
	got, err := NewJSON[*color]().Convert(view.ToView(`{"name":"green"}`))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "green", got.Name)

	_, err = NewJSON[*color]().Convert(view.ToView(`{"name":""}`))
	var verr *errors.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestJSON_WithValidator(t *testing.T) {
	v := validator.New()
	require.NoError(t, v.RegisterValidation("primary", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "red", "green", "blue":
			return true
		}
		return false
	}))

	type primary struct {
		Name string `json:"name" validate:"primary"`
	}

	conv := NewJSON[primary](WithValidator(v))

	got, err := conv.Convert(view.ToView(`{"name":"blue"}`))
	require.NoError(t, err)
	assert.Equal(t, "blue", got.Name)

	_, err = conv.Convert(view.ToView(`{"name":"teal"}`))
	var verr *errors.ValidationError
	assert.True(t, stdErrors.As(err, &verr), fmt.Sprintf("expected ValidationError, got %v", err))
}

func TestJSON_Schema(t *testing.T) {
	schema, err := NewJSON[color]().Schema()
	require.NoError(t, err)
	assert.Contains(t, string(schema), `"name"`)
	assert.Contains(t, string(schema), `"hex"`)
}
