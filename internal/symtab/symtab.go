// Package symtab lists the globally defined symbols of archive members so the
// archive writer can emit a symbol index.
//
// ELF, COFF, Mach-O and wasm objects are understood. Members that are not
// recognizable object files (metadata blobs, bitcode) define no indexed
// symbols.
package symtab

import (
	"bytes"
	"debug/elf"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
)

// Kind is the detected object file kind of a member.
type Kind int

const (
	KindUnknown Kind = iota
	KindELF
	KindCOFF
	KindShortImport
	KindMachO
	KindWasm
)

// COFF machine values accepted as object files.
var coffMachines = map[uint16]bool{
	pe.IMAGE_FILE_MACHINE_I386:  true,
	pe.IMAGE_FILE_MACHINE_AMD64: true,
	pe.IMAGE_FILE_MACHINE_ARM64: true,
	pe.IMAGE_FILE_MACHINE_ARMNT: true,
}

// Detect classifies member data by its leading bytes.
func Detect(data []byte) Kind {
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], []byte(elf.ELFMAG)):
		return KindELF
	case isShortImport(data):
		return KindShortImport
	case len(data) >= 20 && coffMachines[binary.LittleEndian.Uint16(data)]:
		return KindCOFF
	case isMachO(data):
		return KindMachO
	case len(data) >= 8 && bytes.Equal(data[:4], wasmMagic):
		return KindWasm
	}
	return KindUnknown
}

// Bigobj COFF files share the 0x0000/0xFFFF signature but carry version 2.
func isShortImport(data []byte) bool {
	if len(data) < shortImportHeaderSize {
		return false
	}
	le := binary.LittleEndian
	return le.Uint16(data[0:]) == 0 && le.Uint16(data[2:]) == 0xFFFF && le.Uint16(data[4:]) == 0
}

// Symbols returns the defined global symbols of one member.
func Symbols(data []byte) ([]string, error) {
	switch Detect(data) {
	case KindELF:
		return elfSymbols(data)
	case KindCOFF:
		return coffSymbols(data)
	case KindShortImport:
		return shortImportSymbols(data)
	case KindMachO:
		return machoSymbols(data)
	case KindWasm:
		return wasmSymbols(data)
	}
	return nil, nil
}

func elfSymbols(data []byte) ([]string, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("elf: %w", err)
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil {
		if errors.Is(err, elf.ErrNoSymbols) {
			return nil, nil
		}
		return nil, fmt.Errorf("elf symbols: %w", err)
	}

	var out []string
	for _, s := range syms {
		if s.Name == "" || s.Section == elf.SHN_UNDEF {
			continue
		}
		switch elf.ST_BIND(s.Info) {
		case elf.STB_GLOBAL, elf.STB_WEAK, stbGNUUnique:
		default:
			continue
		}
		switch elf.ST_TYPE(s.Info) {
		case elf.STT_FILE, elf.STT_SECTION:
			continue
		}
		out = append(out, s.Name)
	}
	return out, nil
}

const (
	imageSymClassExternal = 2
	stbGNUUnique          = elf.STB_LOOS
)

func coffSymbols(data []byte) ([]string, error) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("coff: %w", err)
	}
	defer f.Close()

	var out []string
	for _, s := range f.Symbols {
		if s.StorageClass != imageSymClassExternal {
			continue
		}
		// Section 0 with a non-zero value is a common symbol.
		if s.SectionNumber > 0 || (s.SectionNumber == 0 && s.Value > 0) {
			out = append(out, s.Name)
		}
	}
	return out, nil
}

// ShortImport is the decoded header and names of a COFF short import object.
type ShortImport struct {
	Machine     uint16
	OrdinalHint uint16
	Type        uint16 // bits 0-1 import type, bits 2-4 name type
	Symbol      string
	DLL         string
}

// ImportType returns the import type bits (code, data, const).
func (s ShortImport) ImportType() uint16 { return s.Type & 0x3 }

// NameType returns the name type bits.
func (s ShortImport) NameType() uint16 { return (s.Type >> 2) & 0x7 }

const shortImportHeaderSize = 20

// ParseShortImport decodes a short import object.
func ParseShortImport(data []byte) (ShortImport, error) {
	if len(data) < shortImportHeaderSize {
		return ShortImport{}, fmt.Errorf("short import object truncated: %d bytes", len(data))
	}
	le := binary.LittleEndian
	if le.Uint16(data[0:]) != 0 || le.Uint16(data[2:]) != 0xFFFF {
		return ShortImport{}, fmt.Errorf("not a short import object")
	}
	size := le.Uint32(data[12:])
	names := data[shortImportHeaderSize:]
	if uint32(len(names)) < size {
		return ShortImport{}, fmt.Errorf("short import names truncated: %d < %d", len(names), size)
	}
	names = names[:size]
	parts := bytes.SplitN(names, []byte{0}, 3)
	if len(parts) < 3 {
		return ShortImport{}, fmt.Errorf("short import names not NUL-terminated")
	}
	return ShortImport{
		Machine:     le.Uint16(data[6:]),
		OrdinalHint: le.Uint16(data[16:]),
		Type:        le.Uint16(data[18:]),
		Symbol:      string(parts[0]),
		DLL:         string(parts[1]),
	}, nil
}

func shortImportSymbols(data []byte) ([]string, error) {
	imp, err := ParseShortImport(data)
	if err != nil {
		return nil, err
	}
	out := []string{"__imp_" + imp.Symbol}
	// Code imports also define the thunk symbol.
	if imp.ImportType() == 0 {
		out = append(out, imp.Symbol)
	}
	return out, nil
}
