// Package arfile reads and writes the ar container used for static libraries.
//
// Reading understands the three flavours a linker meets in practice:
//
//   - GNU/System V: "/" symbol index, "//" long name table, "name/" short names
//   - BSD/Darwin: "#1/<len>" names stored in front of the member data, "__.SYMDEF" index
//   - COFF/Windows: GNU layout with a second "/" linker member and NUL-terminated long names
//
// Symbol indexes are skipped on read; members are reported by name, data
// offset and size so callers can copy payloads without re-encoding them.
//
// Writing is deterministic: timestamps, uid and gid are zero and the mode is
// 0644. Archives receive a symbol index built from the symbols supplied with
// each entry: "/" members for GNU and COFF, a "__.SYMDEF" ranlib table for BSD.
package arfile
