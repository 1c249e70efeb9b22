package plan

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/arlink/archive"
	"github.com/wippyai/arlink/errors"
	"github.com/wippyai/arlink/native"
	"github.com/wippyai/arlink/target"
)

// Manifest describes one run.
type Manifest struct {
	// Target is a known target triple. It may be left empty when the
	// caller supplies the target.
	Target string `yaml:"target"`

	// SearchPaths are scanned in order for "library:" merge sources.
	SearchPaths []string `yaml:"search_paths,omitempty"`

	// ScratchDir holds synthesized import library members. A temporary
	// directory is used when empty.
	ScratchDir string `yaml:"scratch_dir,omitempty"`

	Archives []Archive `yaml:"archives"`
}

// Archive describes one output archive.
type Archive struct {
	Output     string      `yaml:"output"`
	Seed       string      `yaml:"seed,omitempty"`
	Files      []string    `yaml:"files,omitempty"`
	Remove     []string    `yaml:"remove,omitempty"`
	Merge      []Merge     `yaml:"merge,omitempty"`
	DllImports []DllImport `yaml:"dll_imports,omitempty"`
}

// Merge names a source archive either by path or by library name.
type Merge struct {
	Path     string   `yaml:"path,omitempty"`
	Library  string   `yaml:"library,omitempty"`
	Verbatim bool     `yaml:"verbatim,omitempty"`
	Skip     []string `yaml:"skip,omitempty"`
}

// NativeLibrary returns the resolver request for a library merge.
func (m Merge) NativeLibrary() native.Library {
	return native.Library{Name: m.Library, Verbatim: m.Verbatim}
}

// DllImport lists the symbols imported from one dynamic library.
type DllImport struct {
	Library string   `yaml:"library"`
	Imports []Import `yaml:"imports"`
}

// Import is one imported symbol.
type Import struct {
	Name              string   `yaml:"name"`
	Ordinal           *uint16  `yaml:"ordinal,omitempty"`
	CallingConvention string   `yaml:"calling_convention,omitempty"`
	ArgSize           int      `yaml:"arg_size,omitempty"`
	Data              bool     `yaml:"data,omitempty"`
	Params            []string `yaml:"params,omitempty"`
	Results           []string `yaml:"results,omitempty"`
}

// Load reads and validates the manifest at path. Relative paths inside the
// manifest are resolved against the manifest's directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.resolvePaths(filepath.Dir(path))
	return m, nil
}

// Parse decodes and validates a manifest. Unknown fields are rejected.
func Parse(r io.Reader) (*Manifest, error) {
	var m Manifest
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Cause(err).
			Detail("failed to parse manifest").
			Build()
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i := range m.SearchPaths {
		m.SearchPaths[i] = abs(m.SearchPaths[i])
	}
	m.ScratchDir = abs(m.ScratchDir)
	for i := range m.Archives {
		a := &m.Archives[i]
		a.Output = abs(a.Output)
		a.Seed = abs(a.Seed)
		for j := range a.Files {
			a.Files[j] = abs(a.Files[j])
		}
		for j := range a.Merge {
			a.Merge[j].Path = abs(a.Merge[j].Path)
		}
	}
}

func invalid(format string, args ...any) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Detail(format, args...).
		Build()
}

// Validate checks required fields and cross-field constraints.
func (m *Manifest) Validate() error {
	if m.Target != "" {
		if _, err := target.Lookup(m.Target); err != nil {
			return err
		}
	}
	if len(m.Archives) == 0 {
		return invalid("archives list is required and must be non-empty")
	}

	outputs := make(map[string]int, len(m.Archives))
	for i, a := range m.Archives {
		if a.Output == "" {
			return invalid("archives[%d]: output is required", i)
		}
		if prev, dup := outputs[filepath.Clean(a.Output)]; dup {
			return invalid("archives[%d]: output %s already produced by archives[%d]", i, a.Output, prev)
		}
		outputs[filepath.Clean(a.Output)] = i

		for j, mg := range a.Merge {
			if (mg.Path == "") == (mg.Library == "") {
				return invalid("archives[%d].merge[%d]: exactly one of path or library is required", i, j)
			}
			if mg.Verbatim && mg.Library == "" {
				return invalid("archives[%d].merge[%d]: verbatim applies only to library", i, j)
			}
		}
		for j, d := range a.DllImports {
			if d.Library == "" {
				return invalid("archives[%d].dll_imports[%d]: library is required", i, j)
			}
			if _, err := d.descriptors(); err != nil {
				return invalid("archives[%d].dll_imports[%d]: %v", i, j, err)
			}
		}
	}

	for i, a := range m.Archives {
		inputs := append([]string{a.Seed}, a.Files...)
		for _, mg := range a.Merge {
			inputs = append(inputs, mg.Path)
		}
		for _, in := range inputs {
			if err := m.checkInput(i, in); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkInput rejects reading another archive's output. Archives are built
// concurrently, so such an input would race the producer's write.
func (m *Manifest) checkInput(i int, path string) error {
	if path == "" {
		return nil
	}
	p := filepath.Clean(path)
	for j, a := range m.Archives {
		if j != i && filepath.Clean(a.Output) == p {
			return invalid("archives[%d]: input %s is the output of archives[%d]", i, path, j)
		}
	}
	return nil
}

// descriptors converts manifest imports into builder descriptors.
func (d DllImport) descriptors() ([]archive.DllImport, error) {
	out := make([]archive.DllImport, len(d.Imports))
	for i, imp := range d.Imports {
		cc, err := archive.ParseCallingConvention(imp.CallingConvention)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", imp.Name, err)
		}
		params, err := parseValueTypes(imp.Params)
		if err != nil {
			return nil, fmt.Errorf("%s params: %w", imp.Name, err)
		}
		results, err := parseValueTypes(imp.Results)
		if err != nil {
			return nil, fmt.Errorf("%s results: %w", imp.Name, err)
		}
		out[i] = archive.DllImport{
			Name:              imp.Name,
			Ordinal:           imp.Ordinal,
			CallingConvention: cc,
			ArgSize:           imp.ArgSize,
			IsData:            imp.Data,
			Params:            params,
			Results:           results,
		}
	}
	return out, nil
}

func parseValueTypes(names []string) ([]archive.ValueType, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]archive.ValueType, len(names))
	for i, n := range names {
		switch strings.ToLower(n) {
		case "i32":
			out[i] = api.ValueTypeI32
		case "i64":
			out[i] = api.ValueTypeI64
		case "f32":
			out[i] = api.ValueTypeF32
		case "f64":
			out[i] = api.ValueTypeF64
		case "externref":
			out[i] = api.ValueTypeExternref
		default:
			return nil, fmt.Errorf("unknown value type %q", n)
		}
	}
	return out, nil
}

// Libraries returns the distinct library merge sources in first-seen order.
func (m *Manifest) Libraries() []native.Library {
	seen := make(map[native.Library]bool)
	var libs []native.Library
	for _, a := range m.Archives {
		for _, mg := range a.Merge {
			if mg.Library == "" {
				continue
			}
			lib := mg.NativeLibrary()
			if !seen[lib] {
				seen[lib] = true
				libs = append(libs, lib)
			}
		}
	}
	return libs
}
