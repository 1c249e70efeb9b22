// Package errors provides structured error types for arlink.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the context a driver needs to render a diagnostic:
// the library name, the file path, the archive member or import symbol, and the
// underlying OS error as cause.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRead, errors.KindIO).
//		File("/opt/lib/libfoo.a").
//		Member("foo.o").
//		Detail("short read").
//		Cause(ioErr).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.LibraryNotFound("foo")
//	err := errors.Unrepresentable("GetTickCount", "vectorcall is not available on aarch64")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
