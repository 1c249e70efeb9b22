package archive

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/arlink/internal/importlib"
)

// DllImport describes one symbol imported from a dynamic library.
// Params and Results are only consulted by wasm import stubs.
type DllImport = importlib.Import

// CallingConvention of an imported function.
type CallingConvention = importlib.CallingConvention

// ValueType is a wasm value type, used in DllImport signatures.
type ValueType = api.ValueType

const (
	ConventionC          = importlib.ConventionC
	ConventionStdcall    = importlib.ConventionStdcall
	ConventionFastcall   = importlib.ConventionFastcall
	ConventionVectorcall = importlib.ConventionVectorcall
)

// ParseCallingConvention parses "C", "stdcall", "fastcall" or "vectorcall".
func ParseCallingConvention(s string) (CallingConvention, error) {
	return importlib.ParseCallingConvention(s)
}
