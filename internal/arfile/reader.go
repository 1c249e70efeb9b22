package arfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Member is one archive member, located by its payload range in the archive file.
type Member struct {
	Name   string
	Offset int64
	Size   int64
}

// Archive is the member table of an archive file on disk.
type Archive struct {
	Path    string
	Format  Format
	Members []Member

	size    int64
	modTime time.Time
}

// Open reads the member table of the archive at path.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	format, members, err := Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Archive{
		Path:    path,
		Format:  format,
		Members: members,
		size:    info.Size(),
		modTime: info.ModTime(),
	}, nil
}

// Names returns member names in archive order.
func (a *Archive) Names() []string {
	names := make([]string, len(a.Members))
	for i, m := range a.Members {
		names[i] = m.Name
	}
	return names
}

// ReadMembers returns the payloads of ms, read from the archive file.
// It fails if the file changed since Open.
func (a *Archive) ReadMembers(ms []Member) ([][]byte, error) {
	f, err := os.Open(a.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() != a.size || !info.ModTime().Equal(a.modTime) {
		return nil, fmt.Errorf("%s: archive changed since it was opened", a.Path)
	}

	out := make([][]byte, len(ms))
	for i, m := range ms {
		buf := make([]byte, m.Size)
		if _, err := f.ReadAt(buf, m.Offset); err != nil {
			return nil, fmt.Errorf("%s(%s): %w", a.Path, m.Name, err)
		}
		out[i] = buf
	}
	return out, nil
}

// Parse walks the member headers of an archive of the given size.
// Symbol indexes and long name tables are consumed, not reported.
func Parse(r io.ReaderAt, size int64) (Format, []Member, error) {
	head := make([]byte, len(magic))
	if _, err := r.ReadAt(head, 0); err != nil {
		return FormatGNU, nil, fmt.Errorf("read magic: %w", err)
	}
	switch string(head) {
	case magic:
	case thinMagic:
		return FormatGNU, nil, fmt.Errorf("thin archives are not supported")
	default:
		return FormatGNU, nil, fmt.Errorf("not an archive: bad magic %q", head)
	}

	var (
		members     []Member
		longNames   []byte
		format      = FormatGNU
		sawBSD      bool
		linkerCount int
		hdr         = make([]byte, headerSize)
	)

	off := int64(len(magic))
	for off < size {
		if off%2 == 1 {
			off++
			if off >= size {
				break
			}
		}
		if size-off < headerSize {
			return format, nil, fmt.Errorf("truncated member header at offset %d", off)
		}
		if _, err := r.ReadAt(hdr, off); err != nil {
			return format, nil, fmt.Errorf("read header at offset %d: %w", off, err)
		}
		h, err := parseHeader(hdr)
		if err != nil {
			return format, nil, fmt.Errorf("offset %d: %w", off, err)
		}

		dataOff := off + headerSize
		dataSize := h.size
		if dataOff+dataSize > size {
			return format, nil, fmt.Errorf("member at offset %d overruns archive (%d > %d)", off, dataOff+dataSize, size)
		}
		off = dataOff + dataSize

		name := h.name
		switch {
		case name == "/" || name == "/SYM64/":
			linkerCount++
			if linkerCount == 2 {
				format = FormatCOFF
			}
			continue
		case isSymbolIndex(name):
			if strings.HasPrefix(name, "__.SYMDEF") {
				sawBSD = true
			}
			continue
		case name == "//":
			longNames = make([]byte, dataSize)
			if _, err := r.ReadAt(longNames, dataOff); err != nil {
				return format, nil, fmt.Errorf("read long name table: %w", err)
			}
			continue
		case strings.HasPrefix(name, "#1/"):
			sawBSD = true
			n, err := strconv.ParseInt(name[3:], 10, 64)
			if err != nil || n < 0 || n > dataSize {
				return format, nil, fmt.Errorf("bad BSD name length %q", name)
			}
			buf := make([]byte, n)
			if _, err := r.ReadAt(buf, dataOff); err != nil {
				return format, nil, fmt.Errorf("read BSD name: %w", err)
			}
			name = string(bytes.TrimRight(buf, "\x00"))
			dataOff += n
			dataSize -= n
		case len(name) > 1 && name[0] == '/' && isDigits(name[1:]):
			idx, _ := strconv.Atoi(name[1:])
			resolved, err := longName(longNames, idx)
			if err != nil {
				return format, nil, err
			}
			name = resolved
		case strings.HasSuffix(name, "/"):
			name = strings.TrimSuffix(name, "/")
		}

		if isSymbolIndex(name) {
			if strings.HasPrefix(name, "__.SYMDEF") {
				sawBSD = true
			}
			continue
		}

		members = append(members, Member{Name: name, Offset: dataOff, Size: dataSize})
	}

	if sawBSD {
		format = FormatBSD
	}
	return format, members, nil
}

func longName(table []byte, idx int) (string, error) {
	if table == nil {
		return "", fmt.Errorf("long name reference /%d without name table", idx)
	}
	if idx < 0 || idx >= len(table) {
		return "", fmt.Errorf("long name offset %d out of range (table %d bytes)", idx, len(table))
	}
	rest := table[idx:]
	if end := bytes.IndexAny(rest, "\n\x00"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSuffix(string(rest), "/"), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
