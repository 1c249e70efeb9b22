package importlib

import (
	"github.com/wippyai/arlink/internal/binary"
)

// Section characteristics used by the descriptor objects.
const (
	scnCntInitializedData uint32 = 0x00000040
	scnAlign2Bytes        uint32 = 0x00200000
	scnAlign4Bytes        uint32 = 0x00300000
	scnAlign8Bytes        uint32 = 0x00400000
	scnMemRead            uint32 = 0x40000000
	scnMemWrite           uint32 = 0x80000000

	idataFlags = scnCntInitializedData | scnMemRead | scnMemWrite
)

// Symbol storage classes.
const (
	classExternal uint8 = 2
	classStatic   uint8 = 3
	classSection  uint8 = 104
)

const (
	fileHeaderSize    = 20
	sectionHeaderSize = 40
	relocSize         = 10
	symbolSize        = 18

	file32BitMachine uint16 = 0x0100

	importDescriptorPrefix = "__IMPORT_DESCRIPTOR_"
	nullImportDescriptor   = "__NULL_IMPORT_DESCRIPTOR"
	nullThunkSuffix        = "_NULL_THUNK_DATA"
)

type coffReloc struct {
	offset uint32
	symbol uint32
	typ    uint16
}

type coffSection struct {
	name   string
	data   []byte
	relocs []coffReloc
	flags  uint32
}

type coffSymbol struct {
	name    string
	section int16
	class   uint8
}

// addr32NB returns the image-relative 32-bit relocation type for machine.
func addr32NB(machine Machine) uint16 {
	switch machine {
	case MachineI386:
		return 0x0007
	case MachineAMD64:
		return 0x0003
	default:
		return 0x0002
	}
}

// importDescriptor builds the object defining __IMPORT_DESCRIPTOR_<stem>: the
// import directory entry in .idata$2 and the DLL name in .idata$6.
func importDescriptor(machine Machine, dll, stem string) []byte {
	name := make([]byte, 0, len(dll)+2)
	name = append(name, dll...)
	name = append(name, 0)
	if len(name)%2 != 0 {
		name = append(name, 0)
	}

	rel := addr32NB(machine)
	sections := []coffSection{
		{
			name: ".idata$2",
			data: make([]byte, 20),
			relocs: []coffReloc{
				{offset: 12, symbol: 2, typ: rel}, // Name RVA
				{offset: 0, symbol: 3, typ: rel},  // ImportLookupTable RVA
				{offset: 16, symbol: 4, typ: rel}, // ImportAddressTable RVA
			},
			flags: scnAlign4Bytes | idataFlags,
		},
		{
			name:  ".idata$6",
			data:  name,
			flags: scnAlign2Bytes | idataFlags,
		},
	}
	symbols := []coffSymbol{
		{name: importDescriptorPrefix + stem, section: 1, class: classExternal},
		{name: ".idata$2", section: 1, class: classSection},
		{name: ".idata$6", section: 2, class: classStatic},
		{name: ".idata$4", section: 0, class: classSection},
		{name: ".idata$5", section: 0, class: classSection},
		{name: nullImportDescriptor, section: 0, class: classExternal},
		{name: "\x7f" + stem + nullThunkSuffix, section: 0, class: classExternal},
	}
	return writeObject(machine, sections, symbols)
}

// nullImportDescriptorObject terminates the import directory.
func nullImportDescriptorObject(machine Machine) []byte {
	sections := []coffSection{{
		name:  ".idata$3",
		data:  make([]byte, 20),
		flags: scnAlign4Bytes | idataFlags,
	}}
	symbols := []coffSymbol{{name: nullImportDescriptor, section: 1, class: classExternal}}
	return writeObject(machine, sections, symbols)
}

// nullThunk terminates the lookup and address tables of one DLL.
func nullThunk(machine Machine, stem string) []byte {
	ptr, align := 4, scnAlign4Bytes
	if machine.is64() {
		ptr, align = 8, scnAlign8Bytes
	}
	sections := []coffSection{
		{name: ".idata$5", data: make([]byte, ptr), flags: align | idataFlags},
		{name: ".idata$4", data: make([]byte, ptr), flags: align | idataFlags},
	}
	symbols := []coffSymbol{{name: "\x7f" + stem + nullThunkSuffix, section: 1, class: classExternal}}
	return writeObject(machine, sections, symbols)
}

// writeObject lays out header, section table, raw data with relocations,
// symbol table and string table in that order.
func writeObject(machine Machine, sections []coffSection, symbols []coffSymbol) []byte {
	offset := fileHeaderSize + sectionHeaderSize*len(sections)
	dataOff := make([]int, len(sections))
	relocOff := make([]int, len(sections))
	for i, s := range sections {
		dataOff[i] = offset
		offset += len(s.data)
		relocOff[i] = offset
		offset += relocSize * len(s.relocs)
	}
	symtabOff := offset

	var characteristics uint16
	if !machine.is64() {
		characteristics = file32BitMachine
	}

	w := binary.NewWriter()
	w.WriteU16LE(uint16(machine))
	w.WriteU16LE(uint16(len(sections)))
	w.WriteU32LE(0) // TimeDateStamp
	w.WriteU32LE(uint32(symtabOff))
	w.WriteU32LE(uint32(len(symbols)))
	w.WriteU16LE(0) // SizeOfOptionalHeader
	w.WriteU16LE(characteristics)

	for i, s := range sections {
		w.WriteFixedName(s.name, 8)
		w.WriteU32LE(0) // VirtualSize
		w.WriteU32LE(0) // VirtualAddress
		w.WriteU32LE(uint32(len(s.data)))
		w.WriteU32LE(uint32(dataOff[i]))
		if len(s.relocs) > 0 {
			w.WriteU32LE(uint32(relocOff[i]))
		} else {
			w.WriteU32LE(0)
		}
		w.WriteU32LE(0) // PointerToLinenumbers
		w.WriteU16LE(uint16(len(s.relocs)))
		w.WriteU16LE(0) // NumberOfLinenumbers
		w.WriteU32LE(s.flags)
	}

	for _, s := range sections {
		w.WriteBytes(s.data)
		for _, r := range s.relocs {
			w.WriteU32LE(r.offset)
			w.WriteU32LE(r.symbol)
			w.WriteU16LE(r.typ)
		}
	}

	strtab := binary.NewWriter()
	for _, sym := range symbols {
		if len(sym.name) <= 8 {
			w.WriteFixedName(sym.name, 8)
		} else {
			w.WriteU32LE(0)
			w.WriteU32LE(uint32(4 + strtab.Len()))
			strtab.WriteCString(sym.name)
		}
		w.WriteU32LE(0) // Value
		w.WriteU16LE(uint16(sym.section))
		w.WriteU16LE(0) // Type
		w.Byte(sym.class)
		w.Byte(0) // NumberOfAuxSymbols
	}

	w.WriteU32LE(uint32(4 + strtab.Len()))
	w.WriteBytes(strtab.Bytes())
	return w.Bytes()
}
