package archive

import (
	"context"

	"github.com/wippyai/arlink/errors"
	"github.com/wippyai/arlink/internal/arfile"
	"github.com/wippyai/arlink/internal/importlib"
	"github.com/wippyai/arlink/target"
)

// variant holds everything that differs between archive encodings.
type variant interface {
	name() string
	format() arfile.Format
	importStubs(ctx context.Context, libName string, imports []DllImport) ([]importlib.Member, error)
}

func variantFor(t target.Target) (variant, error) {
	switch t.ArchiveFormat {
	case target.FormatGNU:
		return gnuVariant{}, nil
	case target.FormatBSD:
		return bsdVariant{}, nil
	case target.FormatCOFF:
		machine, err := importlib.MachineFor(t.Arch)
		if err != nil {
			return nil, err
		}
		return coffVariant{machine: machine}, nil
	case target.FormatWasm:
		return wasmVariant{}, nil
	}
	return nil, errors.New(errors.PhaseStage, errors.KindUnsupported).
		Value(t.ArchiveFormat).
		Detail("unknown archive format %q for target %s", t.ArchiveFormat, t.Name).
		Build()
}

type gnuVariant struct{}

func (gnuVariant) name() string          { return "gnu" }
func (gnuVariant) format() arfile.Format { return arfile.FormatGNU }

func (gnuVariant) importStubs(context.Context, string, []DllImport) ([]importlib.Member, error) {
	return nil, errors.Unsupported(errors.PhaseImport, "import libraries require a COFF or wasm target")
}

// bsdVariant writes a "__.SYMDEF" table of contents for Mach-O members.
type bsdVariant struct{}

func (bsdVariant) name() string          { return "bsd" }
func (bsdVariant) format() arfile.Format { return arfile.FormatBSD }

func (bsdVariant) importStubs(context.Context, string, []DllImport) ([]importlib.Member, error) {
	return nil, errors.Unsupported(errors.PhaseImport, "import libraries require a COFF or wasm target")
}

type coffVariant struct {
	machine importlib.Machine
}

func (coffVariant) name() string          { return "coff" }
func (coffVariant) format() arfile.Format { return arfile.FormatCOFF }

func (v coffVariant) importStubs(_ context.Context, libName string, imports []DllImport) ([]importlib.Member, error) {
	return importlib.COFF(v.machine, libName, imports)
}

type wasmVariant struct{}

func (wasmVariant) name() string          { return "wasm" }
func (wasmVariant) format() arfile.Format { return arfile.FormatGNU }

func (wasmVariant) importStubs(ctx context.Context, libName string, imports []DllImport) ([]importlib.Member, error) {
	return importlib.Wasm(ctx, libName, imports)
}
