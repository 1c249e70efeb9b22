// Package native locates static libraries requested by name.
//
// A library is searched for in an ordered list of directories. In each
// directory the target-decorated file name (for example foo.lib or libfoo.a)
// is tried first, then the Unix-style name lib<name>.a when it differs. On
// macOS hosts, where system libraries may only exist in the dyld shared
// cache, the Unix-style path is additionally checked by loading it and
// releasing the handle immediately.
//
// The first match in directory-then-candidate order wins; later directories
// are never consulted. A library that cannot be found is a fatal
// resolve/not_found error.
package native
