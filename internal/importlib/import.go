package importlib

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/arlink/errors"
)

// CallingConvention is the calling convention of an imported function.
type CallingConvention int

const (
	ConventionC CallingConvention = iota
	ConventionStdcall
	ConventionFastcall
	ConventionVectorcall
)

func (c CallingConvention) String() string {
	switch c {
	case ConventionC:
		return "C"
	case ConventionStdcall:
		return "stdcall"
	case ConventionFastcall:
		return "fastcall"
	case ConventionVectorcall:
		return "vectorcall"
	default:
		return fmt.Sprintf("CallingConvention(%d)", int(c))
	}
}

// ParseCallingConvention accepts the names used in manifests.
func ParseCallingConvention(s string) (CallingConvention, error) {
	switch strings.ToLower(s) {
	case "", "c", "cdecl":
		return ConventionC, nil
	case "stdcall":
		return ConventionStdcall, nil
	case "fastcall":
		return ConventionFastcall, nil
	case "vectorcall":
		return ConventionVectorcall, nil
	}
	return ConventionC, fmt.Errorf("unknown calling convention %q", s)
}

// Import describes one symbol imported from a dynamic library.
type Import struct {
	Name              string
	Ordinal           *uint16
	CallingConvention CallingConvention
	ArgSize           int // bytes of stack arguments, used for x86 decoration
	IsData            bool

	// Function signature, only consulted by the wasm encoding.
	Params  []api.ValueType
	Results []api.ValueType
}

func (imp Import) equal(other Import) bool {
	sameOrdinal := (imp.Ordinal == nil) == (other.Ordinal == nil) &&
		(imp.Ordinal == nil || *imp.Ordinal == *other.Ordinal)
	return imp.Name == other.Name &&
		sameOrdinal &&
		imp.CallingConvention == other.CallingConvention &&
		imp.ArgSize == other.ArgSize &&
		imp.IsData == other.IsData &&
		slices.Equal(imp.Params, other.Params) &&
		slices.Equal(imp.Results, other.Results)
}

// Member is one synthesized archive member.
type Member struct {
	Name string
	Data []byte
}

// normalize validates names and drops exact duplicates, keeping first-seen order.
func normalize(imports []Import) ([]Import, error) {
	seen := make(map[string]Import, len(imports))
	out := make([]Import, 0, len(imports))
	for _, imp := range imports {
		if imp.Name == "" {
			return nil, errors.Unrepresentable("", "empty symbol name")
		}
		if strings.ContainsRune(imp.Name, 0) {
			return nil, errors.Unrepresentable(imp.Name, "symbol name contains NUL")
		}
		if imp.ArgSize < 0 {
			return nil, errors.Unrepresentable(imp.Name, fmt.Sprintf("negative argument size %d", imp.ArgSize))
		}
		if prev, ok := seen[imp.Name]; ok {
			if prev.equal(imp) {
				continue
			}
			return nil, errors.Unrepresentable(imp.Name, "imported twice with conflicting descriptors")
		}
		seen[imp.Name] = imp
		out = append(out, imp)
	}
	return out, nil
}

// memberStem turns a library path into a string usable in member file names.
func memberStem(lib string) string {
	base := path.Base(strings.ReplaceAll(lib, "\\", "/"))
	return sanitize(strings.TrimSuffix(base, path.Ext(base)))
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "imports"
	}
	return b.String()
}
