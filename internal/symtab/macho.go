package symtab

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
	"fmt"
)

// nlist type bits.
const (
	machoStab = 0xe0
	machoType = 0x0e
	machoExt  = 0x01
	machoUndf = 0x00
)

func isMachO(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	for _, m := range []uint32{binary.LittleEndian.Uint32(data), binary.BigEndian.Uint32(data)} {
		if m == macho.Magic32 || m == macho.Magic64 {
			return true
		}
	}
	return false
}

func machoSymbols(data []byte) ([]string, error) {
	f, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("macho: %w", err)
	}
	defer f.Close()
	if f.Symtab == nil {
		return nil, nil
	}

	var out []string
	for _, s := range f.Symtab.Syms {
		if s.Name == "" || s.Type&machoStab != 0 || s.Type&machoExt == 0 {
			continue
		}
		// Undefined with a non-zero value is a common symbol.
		if s.Type&machoType == machoUndf && s.Value == 0 {
			continue
		}
		out = append(out, s.Name)
	}
	return out, nil
}
