package importlib

import (
	"fmt"
	"path"
	"strings"

	"github.com/wippyai/arlink/errors"
	"github.com/wippyai/arlink/internal/binary"
	"github.com/wippyai/arlink/target"
)

// Machine is a COFF machine type.
type Machine uint16

const (
	MachineI386  Machine = 0x014c
	MachineARMNT Machine = 0x01c4
	MachineAMD64 Machine = 0x8664
	MachineARM64 Machine = 0xaa64
)

// MachineFor maps a target architecture to its COFF machine type.
func MachineFor(arch target.Arch) (Machine, error) {
	switch arch {
	case target.ArchX86:
		return MachineI386, nil
	case target.ArchX86_64:
		return MachineAMD64, nil
	case target.ArchAArch64:
		return MachineARM64, nil
	case target.ArchARM:
		return MachineARMNT, nil
	}
	return 0, errors.Unsupported(errors.PhaseImport, fmt.Sprintf("no COFF machine for architecture %s", arch))
}

func (m Machine) is64() bool {
	return m == MachineAMD64 || m == MachineARM64
}

// Short import object type field: bits 0-1 import type, bits 2-4 name type.
const (
	importCode uint16 = 0
	importData uint16 = 1

	nameOrdinal    uint16 = 0
	nameName       uint16 = 1
	nameNoPrefix   uint16 = 2
	nameUndecorate uint16 = 3
)

const shortImportHeaderSize = 20

// DLLName appends ".dll" when lib has no extension.
func DLLName(lib string) string {
	if path.Ext(lib) == "" {
		return lib + ".dll"
	}
	return lib
}

// COFF synthesizes an import library for lib: one short import object per
// import followed by the three descriptor objects.
func COFF(machine Machine, lib string, imports []Import) ([]Member, error) {
	if lib == "" || strings.ContainsRune(lib, 0) {
		return nil, errors.New(errors.PhaseImport, errors.KindInvalidInput).
			Library(lib).
			Detail("invalid import library name").
			Build()
	}
	imports, err := normalize(imports)
	if err != nil {
		return nil, err
	}

	dll := DLLName(lib)
	stem := strings.TrimSuffix(dll, path.Ext(dll))
	fileStem := memberStem(dll)

	members := make([]Member, 0, len(imports)+3)
	for i, imp := range imports {
		data, err := shortImport(machine, dll, imp)
		if err != nil {
			return nil, err
		}
		members = append(members, Member{
			Name: fmt.Sprintf("%s_imp%d.obj", fileStem, i),
			Data: data,
		})
	}

	members = append(members,
		Member{Name: fileStem + "_idesc.obj", Data: importDescriptor(machine, dll, stem)},
		Member{Name: fileStem + "_nulldesc.obj", Data: nullImportDescriptorObject(machine)},
		Member{Name: fileStem + "_nullthunk.obj", Data: nullThunk(machine, stem)},
	)
	return members, nil
}

// decorate returns the symbol name the linker sees and the name type telling
// the loader how to derive the exported name from it.
func decorate(machine Machine, imp Import) (string, uint16, error) {
	if imp.IsData && imp.CallingConvention != ConventionC {
		return "", 0, errors.Unrepresentable(imp.Name,
			fmt.Sprintf("data import cannot use the %s calling convention", imp.CallingConvention))
	}

	var sym string
	var nameType uint16
	switch machine {
	case MachineI386:
		switch imp.CallingConvention {
		case ConventionC:
			sym, nameType = "_"+imp.Name, nameNoPrefix
		case ConventionStdcall:
			sym, nameType = fmt.Sprintf("_%s@%d", imp.Name, imp.ArgSize), nameUndecorate
		case ConventionFastcall:
			sym, nameType = fmt.Sprintf("@%s@%d", imp.Name, imp.ArgSize), nameUndecorate
		case ConventionVectorcall:
			sym, nameType = fmt.Sprintf("%s@@%d", imp.Name, imp.ArgSize), nameUndecorate
		}
	case MachineAMD64:
		switch imp.CallingConvention {
		case ConventionC, ConventionStdcall, ConventionFastcall:
			sym, nameType = imp.Name, nameName
		case ConventionVectorcall:
			sym, nameType = fmt.Sprintf("%s@@%d", imp.Name, imp.ArgSize), nameUndecorate
		}
	case MachineARM64, MachineARMNT:
		switch imp.CallingConvention {
		case ConventionC, ConventionStdcall, ConventionFastcall:
			sym, nameType = imp.Name, nameName
		case ConventionVectorcall:
			return "", 0, errors.Unrepresentable(imp.Name, "vectorcall is not available on ARM targets")
		}
	default:
		return "", 0, errors.Unrepresentable(imp.Name, fmt.Sprintf("unknown COFF machine %#x", uint16(machine)))
	}
	if sym == "" {
		return "", 0, errors.Unrepresentable(imp.Name, fmt.Sprintf("unknown calling convention %s", imp.CallingConvention))
	}

	if imp.Ordinal != nil {
		nameType = nameOrdinal
	}
	return sym, nameType, nil
}

func shortImport(machine Machine, dll string, imp Import) ([]byte, error) {
	sym, nameType, err := decorate(machine, imp)
	if err != nil {
		return nil, err
	}

	importType := importCode
	if imp.IsData {
		importType = importData
	}
	var hint uint16
	if imp.Ordinal != nil {
		hint = *imp.Ordinal
	}

	w := binary.NewWriter()
	w.WriteU16LE(0)      // Sig1
	w.WriteU16LE(0xffff) // Sig2
	w.WriteU16LE(0)      // Version
	w.WriteU16LE(uint16(machine))
	w.WriteU32LE(0) // TimeDateStamp
	w.WriteU32LE(uint32(len(sym) + 1 + len(dll) + 1))
	w.WriteU16LE(hint)
	w.WriteU16LE(importType | nameType<<2)
	w.WriteCString(sym)
	w.WriteCString(dll)
	return w.Bytes(), nil
}
