package archive

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	arerrors "github.com/wippyai/arlink/errors"
	"github.com/wippyai/arlink/internal/arfile"
	"github.com/wippyai/arlink/internal/symtab"
	"github.com/wippyai/arlink/target"
)

// Builder plans and writes one output archive. Implementations are not safe
// for concurrent use; independent builders may run in parallel.
type Builder interface {
	// AddFile stages the file at path as a member named after its base
	// name. Members with equal names are all kept, in staging order.
	AddFile(path string) error

	// RemoveFile excludes a member of the seed archive. Absent names are
	// ignored.
	RemoveFile(name string) error

	// SrcFiles lists the member names currently planned: seed members not
	// removed, then added files, then merged members.
	SrcFiles() []string

	// AddArchive stages every member of the archive at path for which skip
	// returns false. skip is called exactly once per member; nil keeps all.
	AddArchive(path string, skip func(name string) bool) error

	// Build writes the archive and consumes the builder. The builder is
	// consumed even when Build fails; retrying needs a new builder.
	Build() error

	// InjectDLLImportLib synthesizes an import library for libName into
	// scratchDir and stages its members as if added with AddFile. Calling
	// it again for the same libName replaces the previous members. A stub
	// name already staged for a different library is an error.
	InjectDLLImportLib(ctx context.Context, libName string, imports []DllImport, scratchDir string) error
}

type stagedFile struct {
	name  string
	path  string
	owner string // injected library, empty for AddFile
}

type mergedArchive struct {
	archive *arfile.Archive
	members []arfile.Member
}

type builder struct {
	target  target.Target
	output  string
	variant variant
	log     *zap.Logger

	seed     *arfile.Archive
	removed  map[string]struct{}
	adds     []stagedFile
	merged   []mergedArchive

	consumed bool
}

// New creates a builder for output. When input is not empty the archive at
// input seeds the member set; its member table is read immediately.
func New(t target.Target, output, input string) (Builder, error) {
	if output == "" {
		return nil, arerrors.InvalidInput(arerrors.PhaseStage, "empty output path")
	}
	v, err := variantFor(t)
	if err != nil {
		return nil, err
	}

	b := &builder{
		target:   t,
		output:   output,
		variant:  v,
		log:      Logger().With(zap.String("output", output), zap.String("format", v.name())),
		removed:  make(map[string]struct{}),
	}

	if input != "" {
		seed, err := openArchive(input)
		if err != nil {
			return nil, err
		}
		b.seed = seed
		b.log.Debug("seeded from archive", zap.String("input", input), zap.Int("members", len(seed.Members)))
	}
	return b, nil
}

// openArchive classifies failures: filesystem errors are read/io, anything
// else means the file is not a usable archive.
func openArchive(path string) (*arfile.Archive, error) {
	a, err := arfile.Open(path)
	if err == nil {
		return a, nil
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return nil, arerrors.ReadFailed(path, err)
	}
	return nil, arerrors.Malformed(path, err)
}

func (b *builder) checkLive() error {
	if b.consumed {
		return arerrors.Consumed(b.output)
	}
	return nil
}

func (b *builder) AddFile(path string) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return arerrors.ReadFailed(path, err)
	}
	if info.IsDir() {
		return arerrors.New(arerrors.PhaseStage, arerrors.KindInvalidInput).
			File(path).
			Detail("cannot add a directory as an archive member").
			Build()
	}
	b.stage(path)
	return nil
}

func (b *builder) stage(path string) {
	name := filepath.Base(path)
	b.log.Debug("staged file", zap.String("member", name), zap.String("path", path))
	b.adds = append(b.adds, stagedFile{name: name, path: path})
}

// restage replaces the members injected for owner with paths, keeping the
// position of the first previous member.
func (b *builder) restage(owner string, paths []string) {
	at := -1
	kept := b.adds[:0]
	for _, f := range b.adds {
		if f.owner == owner {
			if at < 0 {
				at = len(kept)
			}
			continue
		}
		kept = append(kept, f)
	}
	if at < 0 {
		at = len(kept)
	}

	fresh := make([]stagedFile, len(paths))
	for i, p := range paths {
		fresh[i] = stagedFile{name: filepath.Base(p), path: p, owner: owner}
	}
	b.adds = slices.Insert(kept, at, fresh...)
}

// stubOwner returns the other injected library that already staged name.
func (b *builder) stubOwner(name, libName string) (string, bool) {
	for _, f := range b.adds {
		if f.name == name && f.owner != "" && f.owner != libName {
			return f.owner, true
		}
	}
	return "", false
}

func (b *builder) RemoveFile(name string) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	b.removed[name] = struct{}{}
	return nil
}

func (b *builder) SrcFiles() []string {
	var names []string
	for _, m := range b.seedMembers() {
		names = append(names, m.Name)
	}
	for _, f := range b.adds {
		names = append(names, f.name)
	}
	for _, ma := range b.merged {
		for _, m := range ma.members {
			names = append(names, m.Name)
		}
	}
	return names
}

func (b *builder) seedMembers() []arfile.Member {
	if b.seed == nil {
		return nil
	}
	kept := make([]arfile.Member, 0, len(b.seed.Members))
	for _, m := range b.seed.Members {
		if _, gone := b.removed[m.Name]; !gone {
			kept = append(kept, m)
		}
	}
	return kept
}

func (b *builder) AddArchive(path string, skip func(name string) bool) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	src, err := openArchive(path)
	if err != nil {
		return err
	}

	kept := make([]arfile.Member, 0, len(src.Members))
	skipped := 0
	for _, m := range src.Members {
		if skip != nil && skip(m.Name) {
			skipped++
			continue
		}
		kept = append(kept, m)
	}
	b.merged = append(b.merged, mergedArchive{archive: src, members: kept})
	b.log.Debug("merged archive",
		zap.String("source", path),
		zap.Int("kept", len(kept)),
		zap.Int("skipped", skipped))
	return nil
}

func (b *builder) InjectDLLImportLib(ctx context.Context, libName string, imports []DllImport, scratchDir string) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	if scratchDir == "" {
		return arerrors.InvalidInput(arerrors.PhaseImport, "empty scratch directory")
	}
	stubs, err := b.variant.importStubs(ctx, libName, imports)
	if err != nil {
		var e *arerrors.Error
		if errors.As(err, &e) && e.Library == "" {
			e.Library = libName
		}
		return err
	}
	for _, stub := range stubs {
		if owner, taken := b.stubOwner(stub.Name, libName); taken {
			return arerrors.New(arerrors.PhaseImport, arerrors.KindUnrepresentable).
				Library(libName).
				Member(stub.Name).
				Detail("member name is already staged for library %q", owner).
				Build()
		}
	}

	dir := filepath.Join(scratchDir, sanitizeDir(libName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return arerrors.New(arerrors.PhaseImport, arerrors.KindIO).
			Library(libName).
			File(dir).
			Cause(err).
			Build()
	}
	paths := make([]string, len(stubs))
	for i, s := range stubs {
		paths[i] = filepath.Join(dir, s.Name)
		if err := os.WriteFile(paths[i], s.Data, 0o644); err != nil {
			return arerrors.New(arerrors.PhaseImport, arerrors.KindIO).
				Library(libName).
				File(paths[i]).
				Cause(err).
				Build()
		}
	}

	b.restage(libName, paths)

	b.log.Debug("injected import library",
		zap.String("library", libName),
		zap.Int("imports", len(imports)),
		zap.Int("members", len(paths)))
	return nil
}

func sanitizeDir(name string) string {
	out := []byte(name)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			out[i] = '_'
		}
	}
	if len(out) == 0 || string(out) == "." || string(out) == ".." {
		return "_"
	}
	return string(out)
}

func (b *builder) Build() error {
	if err := b.checkLive(); err != nil {
		return err
	}
	b.consumed = true

	entries, err := b.collect()
	if err != nil {
		return err
	}
	b.indexSymbols(entries)
	if err := b.write(entries); err != nil {
		return err
	}

	b.log.Debug("archive written", zap.Int("members", len(entries)))
	return nil
}

// collect reads every planned member payload in SrcFiles order.
func (b *builder) collect() ([]arfile.Entry, error) {
	var entries []arfile.Entry

	if b.seed != nil {
		kept := b.seedMembers()
		data, err := b.seed.ReadMembers(kept)
		if err != nil {
			return nil, arerrors.ReadFailed(b.seed.Path, err)
		}
		for i, m := range kept {
			entries = append(entries, arfile.Entry{Name: m.Name, Data: data[i]})
		}
	}

	for _, f := range b.adds {
		data, err := os.ReadFile(f.path)
		if err != nil {
			return nil, arerrors.ReadFailed(f.path, err)
		}
		entries = append(entries, arfile.Entry{Name: f.name, Data: data})
	}

	for _, ma := range b.merged {
		data, err := ma.archive.ReadMembers(ma.members)
		if err != nil {
			return nil, arerrors.ReadFailed(ma.archive.Path, err)
		}
		for i, m := range ma.members {
			entries = append(entries, arfile.Entry{Name: m.Name, Data: data[i]})
		}
	}
	return entries, nil
}

// indexSymbols fills entry symbols. Members that look like objects but do
// not parse are written without index entries.
func (b *builder) indexSymbols(entries []arfile.Entry) {
	for i := range entries {
		syms, err := symtab.Symbols(entries[i].Data)
		if err != nil {
			b.log.Warn("member left out of symbol index",
				zap.String("member", entries[i].Name),
				zap.Error(err))
			continue
		}
		entries[i].Symbols = syms
	}
}

// write encodes entries into a temporary file next to the output and renames
// it into place.
func (b *builder) write(entries []arfile.Entry) (err error) {
	dir := filepath.Dir(b.output)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.output)+".tmp*")
	if err != nil {
		return arerrors.WriteFailed(b.output, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := arfile.Write(tmp, b.variant.format(), entries); err != nil {
		return arerrors.WriteFailed(b.output, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return arerrors.WriteFailed(b.output, err)
	}
	if err := tmp.Close(); err != nil {
		return arerrors.WriteFailed(b.output, err)
	}
	if err := os.Rename(tmp.Name(), b.output); err != nil {
		return arerrors.WriteFailed(b.output, err)
	}
	return nil
}
