package entities

// DecodeMode selects how a delivered view is turned into a value.
type DecodeMode string

const (
	// ModeStrict decodes UTF-8 text and rejects invalid input.
	ModeStrict DecodeMode = "strict"
	// ModeLossy decodes UTF-8 text, replacing invalid bytes with U+FFFD.
	ModeLossy DecodeMode = "lossy"
	// ModeBytes copies the raw bytes.
	ModeBytes DecodeMode = "bytes"
	// ModeJSON decodes the text as a JSON document.
	ModeJSON DecodeMode = "json"
)

// ProbeConfig describes which library to load and how to bridge its exports.
type ProbeConfig struct {
	// Library is the path of a WebAssembly module. Mutually exclusive with Native.
	Library string `json:"library,omitempty" validate:"required_without=Native,excluded_with=Native" jsonschema:"description=Path of the WebAssembly module to load"`

	// Native probes the sample C library linked into the binary.
	Native bool `json:"native,omitempty" jsonschema:"description=Probe the linked sample C library instead of a WebAssembly module"`

	// Exports lists the entry points to call. Empty means all of them.
	Exports []string `json:"exports,omitempty" validate:"dive,required" jsonschema:"description=Entry points to call (default: all)"`

	Mode DecodeMode `json:"mode,omitempty" validate:"oneof=strict lossy bytes json" jsonschema:"enum=strict,enum=lossy,enum=bytes,enum=json,default=strict"`

	// InterruptPolicy is "repanic" or "error".
	InterruptPolicy string `json:"interrupt_policy,omitempty" validate:"oneof=repanic error" jsonschema:"enum=repanic,enum=error,default=error"`

	LogLevel string `json:"log_level,omitempty" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`

	// ModuleName is the host module WebAssembly guests import from.
	ModuleName string `json:"module_name,omitempty" validate:"required" jsonschema:"default=clue_host"`

	// MaxViewSize limits the length of a delivered view. Zero disables it.
	MaxViewSize uint32 `json:"max_view_size,omitempty" jsonschema:"default=1048576"`
}

// Result kinds reported by a probe.
const (
	ResultOk          = "ok"
	ResultErr         = "err"
	ResultInterrupted = "interrupted"
	ResultViolation   = "violation"
)

// ProbeResult is what one export delivered.
type ProbeResult struct {
	Value  any          `json:"value,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
	Export string       `json:"export"`
	Kind   string       `json:"kind"`
}

// Failed reports whether the export did not produce a value.
func (r ProbeResult) Failed() bool {
	return r.Kind != ResultOk
}
