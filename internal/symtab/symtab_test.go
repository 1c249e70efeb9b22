package symtab

import (
	"bytes"
	"debug/elf"
	"debug/pe"
	"encoding/binary"
	"strings"
	"testing"
)

type elfSym struct {
	name  string
	bind  elf.SymBind
	typ   elf.SymType
	shndx uint16
}

// buildELF assembles a minimal ELF64 relocatable object with one .text section.
func buildELF(t *testing.T, syms []elfSym) []byte {
	t.Helper()

	strtab := []byte{0}
	nameOff := make([]uint32, len(syms))
	for i, s := range syms {
		nameOff[i] = uint32(len(strtab))
		strtab = append(strtab, s.name...)
		strtab = append(strtab, 0)
	}
	shstrtab := []byte("\x00.text\x00.strtab\x00.symtab\x00.shstrtab\x00")

	var symtab bytes.Buffer
	binary.Write(&symtab, binary.LittleEndian, elf.Sym64{})
	firstGlobal := uint32(1)
	for i, s := range syms {
		if s.bind == elf.STB_LOCAL {
			firstGlobal = uint32(i + 2)
		}
		binary.Write(&symtab, binary.LittleEndian, elf.Sym64{
			Name:  nameOff[i],
			Info:  elf.ST_INFO(s.bind, s.typ),
			Shndx: s.shndx,
		})
	}

	text := []byte{0xc3, 0x90, 0x90, 0x90}
	align := func(n int) int { return (n + 7) &^ 7 }

	textOff := 64
	strtabOff := textOff + len(text)
	symtabOff := align(strtabOff + len(strtab))
	shstrOff := symtabOff + symtab.Len()
	shOff := align(shstrOff + len(shstrtab))

	var out bytes.Buffer
	hdr := elf.Header64{
		Type:      uint16(elf.ET_REL),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     uint64(shOff),
		Ehsize:    64,
		Shentsize: 64,
		Shnum:     5,
		Shstrndx:  4,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	binary.Write(&out, binary.LittleEndian, hdr)

	out.Write(text)
	out.Write(strtab)
	out.Write(make([]byte, symtabOff-out.Len()))
	out.Write(symtab.Bytes())
	out.Write(shstrtab)
	out.Write(make([]byte, shOff-out.Len()))

	sections := []elf.Section64{
		{},
		{Name: 1, Type: uint32(elf.SHT_PROGBITS), Flags: uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR), Off: uint64(textOff), Size: uint64(len(text)), Addralign: 1},
		{Name: 7, Type: uint32(elf.SHT_STRTAB), Off: uint64(strtabOff), Size: uint64(len(strtab)), Addralign: 1},
		{Name: 15, Type: uint32(elf.SHT_SYMTAB), Off: uint64(symtabOff), Size: uint64(symtab.Len()), Link: 2, Info: firstGlobal, Addralign: 8, Entsize: 24},
		{Name: 23, Type: uint32(elf.SHT_STRTAB), Off: uint64(shstrOff), Size: uint64(len(shstrtab)), Addralign: 1},
	}
	for _, s := range sections {
		binary.Write(&out, binary.LittleEndian, s)
	}
	return out.Bytes()
}

type coffSym struct {
	name    string
	section int16
	value   uint32
	class   uint8
}

// buildCOFF assembles a minimal COFF object with one .text section.
func buildCOFF(t *testing.T, machine uint16, syms []coffSym) []byte {
	t.Helper()

	text := []byte{0xc3, 0x90, 0x90, 0x90}
	textOff := 20 + 40
	symOff := textOff + len(text)

	var strtab []byte
	var symbols bytes.Buffer
	for _, s := range syms {
		var cs pe.COFFSymbol
		if len(s.name) <= 8 {
			copy(cs.Name[:], s.name)
		} else {
			binary.LittleEndian.PutUint32(cs.Name[4:], uint32(4+len(strtab)))
			strtab = append(strtab, s.name...)
			strtab = append(strtab, 0)
		}
		cs.Value = s.value
		cs.SectionNumber = s.section
		cs.StorageClass = s.class
		binary.Write(&symbols, binary.LittleEndian, cs)
	}

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, pe.FileHeader{
		Machine:              machine,
		NumberOfSections:     1,
		PointerToSymbolTable: uint32(symOff),
		NumberOfSymbols:      uint32(len(syms)),
	})
	var sh pe.SectionHeader32
	copy(sh.Name[:], ".text")
	sh.SizeOfRawData = uint32(len(text))
	sh.PointerToRawData = uint32(textOff)
	sh.Characteristics = pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ
	binary.Write(&out, binary.LittleEndian, sh)
	out.Write(text)
	out.Write(symbols.Bytes())
	binary.Write(&out, binary.LittleEndian, uint32(4+len(strtab)))
	out.Write(strtab)
	// debug/pe reads a fixed 96-byte prefix.
	for out.Len() < 96 {
		out.WriteByte(0)
	}
	return out.Bytes()
}

func shortImport(symbol, dll string, typ uint16) []byte {
	var out bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&out, le, uint16(0))
	binary.Write(&out, le, uint16(0xFFFF))
	binary.Write(&out, le, uint16(0))
	binary.Write(&out, le, uint16(pe.IMAGE_FILE_MACHINE_AMD64))
	binary.Write(&out, le, uint32(0))
	binary.Write(&out, le, uint32(len(symbol)+len(dll)+2))
	binary.Write(&out, le, uint16(5))
	binary.Write(&out, le, typ)
	out.WriteString(symbol + "\x00" + dll + "\x00")
	return out.Bytes()
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Kind
	}{
		{"empty", nil, KindUnknown},
		{"metadata", []byte("rust metadata blob"), KindUnknown},
		{"wasm", []byte("\x00asm\x01\x00\x00\x00"), KindWasm},
		{"macho", []byte{0xcf, 0xfa, 0xed, 0xfe}, KindMachO},
		{"elf", buildELF(t, nil), KindELF},
		{"coff", buildCOFF(t, pe.IMAGE_FILE_MACHINE_AMD64, nil), KindCOFF},
		{"short import", shortImport("f", "k.dll", 0), KindShortImport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.data); got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestELFSymbols(t *testing.T) {
	data := buildELF(t, []elfSym{
		{name: "local_helper", bind: elf.STB_LOCAL, typ: elf.STT_FUNC, shndx: 1},
		{name: "foo", bind: elf.STB_GLOBAL, typ: elf.STT_FUNC, shndx: 1},
		{name: "undefined_ref", bind: elf.STB_GLOBAL, typ: elf.STT_NOTYPE, shndx: uint16(elf.SHN_UNDEF)},
		{name: "weak_bar", bind: elf.STB_WEAK, typ: elf.STT_OBJECT, shndx: 1},
	})

	got, err := Symbols(data)
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	if strings.Join(got, ",") != "foo,weak_bar" {
		t.Errorf("Symbols() = %v, want [foo weak_bar]", got)
	}
}

func TestELFNoSymbols(t *testing.T) {
	got, err := Symbols(buildELF(t, nil))
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Symbols() = %v, want none", got)
	}
}

func TestCOFFSymbols(t *testing.T) {
	data := buildCOFF(t, pe.IMAGE_FILE_MACHINE_AMD64, []coffSym{
		{name: "main", section: 1, class: imageSymClassExternal},
		{name: "a_rather_long_symbol", section: 1, class: imageSymClassExternal},
		{name: "static", section: 1, class: 3},
		{name: "extern_ref", section: 0, class: imageSymClassExternal},
		{name: "common", section: 0, value: 16, class: imageSymClassExternal},
	})

	got, err := Symbols(data)
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	if strings.Join(got, ",") != "main,a_rather_long_symbol,common" {
		t.Errorf("Symbols() = %v", got)
	}
}

func TestShortImportSymbols(t *testing.T) {
	got, err := Symbols(shortImport("GetTickCount", "kernel32.dll", 0))
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	if strings.Join(got, ",") != "__imp_GetTickCount,GetTickCount" {
		t.Errorf("code import symbols = %v", got)
	}

	got, err = Symbols(shortImport("errno_value", "msvcrt.dll", 1))
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	if strings.Join(got, ",") != "__imp_errno_value" {
		t.Errorf("data import symbols = %v", got)
	}
}

func TestParseShortImport(t *testing.T) {
	imp, err := ParseShortImport(shortImport("Sleep", "kernel32.dll", 1|(2<<2)))
	if err != nil {
		t.Fatalf("ParseShortImport: %v", err)
	}
	if imp.Symbol != "Sleep" || imp.DLL != "kernel32.dll" {
		t.Errorf("names = %q/%q", imp.Symbol, imp.DLL)
	}
	if imp.Machine != pe.IMAGE_FILE_MACHINE_AMD64 {
		t.Errorf("Machine = %#x", imp.Machine)
	}
	if imp.OrdinalHint != 5 {
		t.Errorf("OrdinalHint = %d", imp.OrdinalHint)
	}
	if imp.ImportType() != 1 || imp.NameType() != 2 {
		t.Errorf("type bits = %d/%d", imp.ImportType(), imp.NameType())
	}

	data := shortImport("Sleep", "kernel32.dll", 0)
	if _, err := ParseShortImport(data[:len(data)-3]); err == nil {
		t.Error("expected error for truncated names")
	}
	if _, err := ParseShortImport(data[:10]); err == nil {
		t.Error("expected error for truncated header")
	}
}
