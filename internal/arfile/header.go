package arfile

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	magic     = "!<arch>\n"
	thinMagic = "!<thin>\n"

	headerSize = 60
	headerEnd  = "`\n"

	// GNU short names are terminated with '/', leaving 15 usable bytes.
	maxShortName = 15
	// BSD short names have no terminator.
	maxBSDShortName = 16
)

// Format is an ar flavour.
type Format int

const (
	FormatGNU Format = iota
	FormatBSD
	FormatCOFF
)

func (f Format) String() string {
	switch f {
	case FormatGNU:
		return "gnu"
	case FormatBSD:
		return "bsd"
	case FormatCOFF:
		return "coff"
	default:
		return "unknown"
	}
}

// rawHeader is one 60-byte member header with its fields trimmed.
type rawHeader struct {
	name string
	size int64
}

func parseHeader(buf []byte) (rawHeader, error) {
	if len(buf) != headerSize {
		return rawHeader{}, fmt.Errorf("short member header: %d bytes", len(buf))
	}
	if string(buf[58:60]) != headerEnd {
		return rawHeader{}, fmt.Errorf("bad member header terminator %q", buf[58:60])
	}
	sizeField := strings.TrimSpace(string(buf[48:58]))
	size, err := strconv.ParseInt(sizeField, 10, 64)
	if err != nil || size < 0 {
		return rawHeader{}, fmt.Errorf("bad member size %q", sizeField)
	}
	return rawHeader{
		name: strings.TrimRight(string(buf[0:16]), " "),
		size: size,
	}, nil
}

// formatHeader renders a deterministic member header.
func formatHeader(name string, size int64, mode uint32) []byte {
	h := fmt.Sprintf("%-16s%-12d%-6d%-6d%-8o%-10d%s", name, 0, 0, 0, mode, size, headerEnd)
	return []byte(h)
}

func isSymbolIndex(name string) bool {
	switch name {
	case "/", "/SYM64/", "/<ECSYMBOLS>/", "/<HYBRIDMAP>/",
		"__.SYMDEF", "__.SYMDEF SORTED", "__.SYMDEF_64", "__.SYMDEF_64 SORTED":
		return true
	}
	return false
}
