package importlib

import (
	"context"
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/arlink/errors"
	"github.com/wippyai/arlink/internal/binary"
)

const (
	sectionType     byte = 0x01
	sectionImport   byte = 0x02
	sectionFunction byte = 0x03
	sectionExport   byte = 0x07
	sectionCode     byte = 0x0a

	kindFunc byte = 0x00
	typeFunc byte = 0x60

	opLocalGet byte = 0x20
	opCall     byte = 0x10
	opEnd      byte = 0x0b
)

// Wasm synthesizes the import stub for module: a core module importing every
// function from module and exporting a forwarding wrapper under the same name.
// The module is compiled with wazero before it is returned.
func Wasm(ctx context.Context, module string, imports []Import) ([]Member, error) {
	if module == "" {
		return nil, errors.New(errors.PhaseImport, errors.KindInvalidInput).
			Detail("empty import module name").
			Build()
	}
	imports, err := normalize(imports)
	if err != nil {
		return nil, err
	}
	for _, imp := range imports {
		if err := checkWasmImport(imp); err != nil {
			return nil, err
		}
	}

	b := newStubBuilder(module)
	for _, imp := range imports {
		b.addFunc(imp.Name, imp.Params, imp.Results)
	}
	bin := b.build()

	if err := validateStub(ctx, module, bin, imports); err != nil {
		return nil, err
	}
	return []Member{{Name: sanitize(module) + "_imports.wasm", Data: bin}}, nil
}

func checkWasmImport(imp Import) error {
	switch {
	case imp.Ordinal != nil:
		return errors.Unrepresentable(imp.Name, "wasm imports are resolved by name, not by ordinal")
	case imp.CallingConvention != ConventionC:
		return errors.Unrepresentable(imp.Name,
			fmt.Sprintf("wasm has no %s calling convention", imp.CallingConvention))
	case imp.IsData:
		return errors.Unrepresentable(imp.Name, "data imports are not supported by wasm import stubs")
	}
	for _, vt := range slices.Concat(imp.Params, imp.Results) {
		if !validValueType(vt) {
			return errors.Unrepresentable(imp.Name, fmt.Sprintf("unsupported value type %#x", vt))
		}
	}
	return nil
}

func validValueType(vt api.ValueType) bool {
	switch vt {
	case api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64, api.ValueTypeExternref:
		return true
	}
	return false
}

type stubFunc struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
}

// stubBuilder emits a module whose function i imports module.name and whose
// function n+i forwards its arguments to it.
type stubBuilder struct {
	module string
	funcs  []stubFunc
}

func newStubBuilder(module string) *stubBuilder {
	return &stubBuilder{module: module}
}

func (b *stubBuilder) addFunc(name string, params, results []api.ValueType) {
	b.funcs = append(b.funcs, stubFunc{name: name, params: params, results: results})
}

func (b *stubBuilder) build() []byte {
	w := binary.NewWriter()
	w.WriteBytes([]byte{0x00, 0x61, 0x73, 0x6d})
	w.WriteBytes([]byte{0x01, 0x00, 0x00, 0x00})
	if len(b.funcs) == 0 {
		return w.Bytes()
	}

	w.WriteSection(sectionType, b.typeSection())
	w.WriteSection(sectionImport, b.importSection())
	w.WriteSection(sectionFunction, b.funcSection())
	w.WriteSection(sectionExport, b.exportSection())
	w.WriteSection(sectionCode, b.codeSection())
	return w.Bytes()
}

func (b *stubBuilder) typeSection() []byte {
	s := binary.NewWriter()
	s.WriteU32(uint32(len(b.funcs)))
	for _, f := range b.funcs {
		s.Byte(typeFunc)
		s.WriteU32(uint32(len(f.params)))
		for _, t := range f.params {
			s.Byte(t)
		}
		s.WriteU32(uint32(len(f.results)))
		for _, t := range f.results {
			s.Byte(t)
		}
	}
	return s.Bytes()
}

func (b *stubBuilder) importSection() []byte {
	s := binary.NewWriter()
	s.WriteU32(uint32(len(b.funcs)))
	for i, f := range b.funcs {
		s.WriteName(b.module)
		s.WriteName(f.name)
		s.Byte(kindFunc)
		s.WriteU32(uint32(i))
	}
	return s.Bytes()
}

func (b *stubBuilder) funcSection() []byte {
	s := binary.NewWriter()
	s.WriteU32(uint32(len(b.funcs)))
	for i := range b.funcs {
		s.WriteU32(uint32(i))
	}
	return s.Bytes()
}

func (b *stubBuilder) exportSection() []byte {
	s := binary.NewWriter()
	s.WriteU32(uint32(len(b.funcs)))
	n := len(b.funcs)
	for i, f := range b.funcs {
		s.WriteName(f.name)
		s.Byte(kindFunc)
		s.WriteU32(uint32(n + i))
	}
	return s.Bytes()
}

func (b *stubBuilder) codeSection() []byte {
	s := binary.NewWriter()
	s.WriteU32(uint32(len(b.funcs)))
	for i, f := range b.funcs {
		body := binary.NewWriter()
		body.WriteU32(0) // no locals
		for p := range f.params {
			body.Byte(opLocalGet)
			body.WriteU32(uint32(p))
		}
		body.Byte(opCall)
		body.WriteU32(uint32(i))
		body.Byte(opEnd)

		s.WriteU32(uint32(body.Len()))
		s.WriteBytes(body.Bytes())
	}
	return s.Bytes()
}

// validateStub compiles bin and checks that every import is exported with
// the requested signature.
func validateStub(ctx context.Context, module string, bin []byte, imports []Import) error {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, bin)
	if err != nil {
		return errors.New(errors.PhaseImport, errors.KindUnrepresentable).
			Library(module).
			Cause(err).
			Detail("import stub does not compile").
			Build()
	}
	defer compiled.Close(ctx)

	exported := compiled.ExportedFunctions()
	for _, imp := range imports {
		def, ok := exported[imp.Name]
		if !ok {
			return errors.Unrepresentable(imp.Name, "missing from compiled import stub")
		}
		if !slices.Equal(def.ParamTypes(), imp.Params) || !slices.Equal(def.ResultTypes(), imp.Results) {
			return errors.Unrepresentable(imp.Name, "signature changed while compiling import stub")
		}
	}
	return nil
}
