// Package importlib synthesizes import libraries: small archive members that
// let a linker resolve symbols provided by a dynamic library at load time.
//
// Two encodings are supported:
//
//   - COFF: one short import object per symbol plus the import descriptor,
//     null import descriptor and null thunk objects that link.exe and lld-link
//     expect next to them.
//   - wasm: one core module importing every symbol from the library's import
//     module and re-exporting it, validated with wazero before use.
//
// Descriptors that an encoding cannot express are rejected with an
// import/unrepresentable error; no symbol is ever dropped silently.
package importlib
