// Package archive builds static archives for a linker.
//
// A Builder plans the contents of one output archive: members of an optional
// seed archive, object files added from disk, members merged from other
// archives and synthesized import libraries. Nothing is written until Build,
// which writes the whole archive atomically and consumes the builder.
//
//	b, err := archive.New(t, "out/libapp.a", "")
//	if err != nil {
//		return err
//	}
//	if err := b.AddFile("obj/main.o"); err != nil {
//		return err
//	}
//	if err := b.AddArchive("vendor/libz.a", archive.SkipGlob("*.rmeta")); err != nil {
//		return err
//	}
//	return b.Build()
//
// The concrete encoding is chosen once from the target's archive format:
// GNU and COFF archives carry a symbol index, BSD archives do not, and
// import libraries are available only for COFF (short import objects) and
// wasm (forwarding stub modules).
package archive
