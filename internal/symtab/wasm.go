package symtab

import (
	"fmt"

	"github.com/wippyai/arlink/internal/binary"
)

var wasmMagic = []byte("\x00asm")

const (
	wasmSectionCustom = 0
	wasmSectionExport = 7

	linkingSymbolTable = 8

	symKindFunction = 0
	symKindData     = 1
	symKindGlobal   = 2
	symKindSection  = 3
	symKindTag      = 4
	symKindTable    = 5

	symFlagLocal        = 0x02
	symFlagUndefined    = 0x10
	symFlagExplicitName = 0x40
)

// wasmSymbols lists the defined non-local symbols of a relocatable wasm
// object from its "linking" section. Modules without one, such as
// synthesized import stubs, are indexed by their export names.
func wasmSymbols(data []byte) ([]string, error) {
	r := binary.NewReader(data[8:])

	var exports []string
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("wasm section %d: %w", id, err)
		}
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("wasm section %d: %w", id, err)
		}

		switch id {
		case wasmSectionCustom:
			pr := binary.NewReader(payload)
			name, err := pr.ReadName()
			if err != nil {
				return nil, fmt.Errorf("wasm custom section: %w", err)
			}
			if name == "linking" {
				return linkingSymbols(pr)
			}
		case wasmSectionExport:
			exports, err = exportNames(binary.NewReader(payload))
			if err != nil {
				return nil, fmt.Errorf("wasm export section: %w", err)
			}
		}
	}
	return exports, nil
}

func exportNames(r *binary.Reader) ([]string, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	var out []string
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return nil, err
		}
		if _, err := r.ReadByte(); err != nil {
			return nil, err
		}
		if _, err := r.ReadU32(); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

func linkingSymbols(r *binary.Reader) ([]string, error) {
	version, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("wasm linking section: %w", err)
	}
	if version != 2 {
		return nil, fmt.Errorf("wasm linking section version %d", version)
	}

	for r.Len() > 0 {
		typ, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("wasm linking subsection %d: %w", typ, err)
		}
		if typ == linkingSymbolTable {
			syms, err := symbolTable(binary.NewReader(payload))
			if err != nil {
				return nil, fmt.Errorf("wasm symbol table: %w", err)
			}
			return syms, nil
		}
	}
	return nil, nil
}

func symbolTable(r *binary.Reader) ([]string, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}

	var out []string
	for i := uint32(0); i < count; i++ {
		kind, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		flags, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		undefined := flags&symFlagUndefined != 0

		var name string
		switch kind {
		case symKindFunction, symKindGlobal, symKindTag, symKindTable:
			if _, err := r.ReadU32(); err != nil {
				return nil, err
			}
			if !undefined || flags&symFlagExplicitName != 0 {
				if name, err = r.ReadName(); err != nil {
					return nil, err
				}
			}
		case symKindData:
			if name, err = r.ReadName(); err != nil {
				return nil, err
			}
			if !undefined {
				// segment index, offset, size
				for j := 0; j < 3; j++ {
					if _, err := r.ReadU64(); err != nil {
						return nil, err
					}
				}
			}
		case symKindSection:
			if _, err := r.ReadU32(); err != nil {
				return nil, err
			}
			continue
		default:
			return nil, fmt.Errorf("unknown symbol kind %d", kind)
		}

		if undefined || flags&symFlagLocal != 0 || name == "" {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}
