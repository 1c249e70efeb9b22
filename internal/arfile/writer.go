package arfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

const (
	memberMode = 0o644
	padByte    = '\n'
	symdefName = "__.SYMDEF"
)

// Entry is one member to write.
type Entry struct {
	Name    string
	Data    []byte
	Symbols []string // defined global symbols, used for the index
}

type encodedEntry struct {
	header string
	prefix []byte // BSD embedded name
	data   []byte
	offset int64 // header offset in the output
}

func (e *encodedEntry) payloadSize() int64 {
	return int64(len(e.prefix) + len(e.data))
}

type indexSymbol struct {
	name   string
	member int
}

// Write encodes entries as an archive of the given format.
func Write(w io.Writer, format Format, entries []Entry) error {
	encoded, strtab, err := encodeNames(format, entries)
	if err != nil {
		return err
	}

	var symbols []indexSymbol
	for i, e := range entries {
		for _, s := range e.Symbols {
			symbols = append(symbols, indexSymbol{name: s, member: i})
		}
	}

	firstSize := int64(0)
	secondSize := int64(0)
	var symdefNames []byte
	if len(symbols) > 0 && format == FormatBSD {
		symdefNames = symdefStrings(symbols)
		firstSize = 4 + 8*int64(len(symbols)) + 4 + int64(len(symdefNames))
	} else if len(symbols) > 0 {
		firstSize = 4 + 4*int64(len(symbols))
		for _, s := range symbols {
			firstSize += int64(len(s.name)) + 1
		}
		if format == FormatCOFF {
			secondSize = 4 + 4*int64(len(entries)) + 4 + 2*int64(len(symbols))
			for _, s := range symbols {
				secondSize += int64(len(s.name)) + 1
			}
		}
	}

	pos := int64(len(magic))
	if firstSize > 0 {
		pos += headerSize + padded(firstSize)
	}
	if secondSize > 0 {
		pos += headerSize + padded(secondSize)
	}
	if len(strtab) > 0 {
		pos += headerSize + padded(int64(len(strtab)))
	}
	for i := range encoded {
		encoded[i].offset = pos
		pos += headerSize + padded(encoded[i].payloadSize())
	}
	if len(symbols) > 0 && pos > math.MaxUint32 {
		return fmt.Errorf("archive of %d bytes exceeds the 32-bit symbol index", pos)
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(magic)

	if firstSize > 0 && format == FormatBSD {
		writeMember(bw, symdefName, nil, symdef(symbols, symdefNames, encoded), 0)
	} else if firstSize > 0 {
		content := make([]byte, 0, firstSize)
		content = binary.BigEndian.AppendUint32(content, uint32(len(symbols)))
		for _, s := range symbols {
			content = binary.BigEndian.AppendUint32(content, uint32(encoded[s.member].offset))
		}
		for _, s := range symbols {
			content = append(content, s.name...)
			content = append(content, 0)
		}
		writeMember(bw, "/", nil, content, 0)
	}

	if secondSize > 0 {
		sorted := make([]indexSymbol, len(symbols))
		copy(sorted, symbols)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })
		if len(entries) > math.MaxUint16 {
			return fmt.Errorf("%d members exceed the COFF linker member limit", len(entries))
		}

		content := make([]byte, 0, secondSize)
		content = binary.LittleEndian.AppendUint32(content, uint32(len(entries)))
		for _, e := range encoded {
			content = binary.LittleEndian.AppendUint32(content, uint32(e.offset))
		}
		content = binary.LittleEndian.AppendUint32(content, uint32(len(sorted)))
		for _, s := range sorted {
			content = binary.LittleEndian.AppendUint16(content, uint16(s.member+1))
		}
		for _, s := range sorted {
			content = append(content, s.name...)
			content = append(content, 0)
		}
		writeMember(bw, "/", nil, content, 0)
	}

	if len(strtab) > 0 {
		writeMember(bw, "//", nil, strtab, 0)
	}

	for _, e := range encoded {
		writeMember(bw, e.header, e.prefix, e.data, memberMode)
	}

	return bw.Flush()
}

// symdefStrings returns the NUL-terminated names of a BSD table of contents,
// padded to a multiple of four bytes.
func symdefStrings(symbols []indexSymbol) []byte {
	var names []byte
	for _, s := range symbols {
		names = append(names, s.name...)
		names = append(names, 0)
	}
	for len(names)%4 != 0 {
		names = append(names, 0)
	}
	return names
}

// symdef encodes a little-endian ranlib table: the byte size of the ranlib
// array, {name offset, member header offset} pairs, then the string table.
func symdef(symbols []indexSymbol, names []byte, encoded []encodedEntry) []byte {
	content := make([]byte, 0, 8+8*len(symbols)+len(names))
	content = binary.LittleEndian.AppendUint32(content, uint32(8*len(symbols)))
	strx := uint32(0)
	for _, s := range symbols {
		content = binary.LittleEndian.AppendUint32(content, strx)
		content = binary.LittleEndian.AppendUint32(content, uint32(encoded[s.member].offset))
		strx += uint32(len(s.name)) + 1
	}
	content = binary.LittleEndian.AppendUint32(content, uint32(len(names)))
	return append(content, names...)
}

func writeMember(w *bufio.Writer, name string, prefix, data []byte, mode uint32) {
	size := int64(len(prefix) + len(data))
	w.Write(formatHeader(name, size, mode))
	w.Write(prefix)
	w.Write(data)
	if size%2 == 1 {
		w.WriteByte(padByte)
	}
}

func encodeNames(format Format, entries []Entry) ([]encodedEntry, []byte, error) {
	encoded := make([]encodedEntry, len(entries))
	var strtab []byte

	for i, e := range entries {
		if e.Name == "" {
			return nil, nil, fmt.Errorf("member %d has an empty name", i)
		}
		if strings.ContainsAny(e.Name, "\x00\n") {
			return nil, nil, fmt.Errorf("member name %q contains a NUL or newline", e.Name)
		}
		encoded[i].data = e.Data

		switch format {
		case FormatBSD:
			if len(e.Name) <= maxBSDShortName && !strings.ContainsAny(e.Name, " ") && !strings.HasPrefix(e.Name, "#1/") {
				encoded[i].header = e.Name
				continue
			}
			n := len(e.Name)
			if rem := n % 8; rem != 0 {
				n += 8 - rem
			}
			prefix := make([]byte, n)
			copy(prefix, e.Name)
			encoded[i].header = "#1/" + strconv.Itoa(n)
			encoded[i].prefix = prefix
		default:
			if len(e.Name) <= maxShortName && !strings.Contains(e.Name, "/") {
				encoded[i].header = e.Name + "/"
				continue
			}
			encoded[i].header = "/" + strconv.Itoa(len(strtab))
			strtab = append(strtab, e.Name...)
			if format == FormatCOFF {
				strtab = append(strtab, 0)
			} else {
				strtab = append(strtab, '/', '\n')
			}
		}
	}

	return encoded, strtab, nil
}

func padded(n int64) int64 {
	return n + n%2
}
