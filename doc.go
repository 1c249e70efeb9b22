// Package arlink locates native static libraries and builds the static
// archives a linker consumes.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct responsibilities:
//
//	arlink/
//	├── target/            Target descriptions: library naming, archive format, machine
//	├── native/            Static library search over an ordered search path
//	├── archive/           Archive builder with per-format variants and import injection
//	├── plan/              YAML manifest driver resolving and building concurrently
//	├── errors/            Structured error types for debugging
//	├── internal/arfile    ar container reader and writer
//	├── internal/symtab    Global symbol extraction for the archive index
//	├── internal/importlib COFF and wasm import stub synthesis
//	└── cmd/arlink         Command line interface
//
// # Quick Start
//
// Resolve a library and merge it into a new archive:
//
//	t, _ := target.Lookup("x86_64-unknown-linux-gnu")
//	path, err := native.FindLibrary(native.Library{Name: "z"}, []string{"/usr/lib"}, t)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	b, err := archive.New(t, "build/libapp.a", "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	b.AddFile("build/main.o")
//	b.AddArchive(path, archive.SkipGlob("*.rmeta"))
//	if err := b.Build(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Error Handling
//
// Errors carry a phase and a kind and match with errors.Is:
//
//	if errors.Is(err, arerrors.New(arerrors.PhaseResolve, arerrors.KindNotFound).Build()) {
//	    // a -L flag is missing
//	}
package arlink
