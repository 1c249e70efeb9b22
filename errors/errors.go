package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseResolve Phase = "resolve" // native library search
	PhaseRead    Phase = "read"    // reading source archives and object files
	PhaseWrite   Phase = "write"   // writing the output archive
	PhaseImport  Phase = "import"  // import library synthesis
	PhaseStage   Phase = "stage"   // builder staging operations
	PhaseConfig  Phase = "config"  // manifests and target selection
)

// Kind categorizes the error
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindIO              Kind = "io"
	KindInvalidData     Kind = "invalid_data"
	KindUnsupported     Kind = "unsupported"
	KindUnrepresentable Kind = "unrepresentable"
	KindInvalidInput    Kind = "invalid_input"
	KindConsumed        Kind = "consumed"
)

// Error is the structured error type used throughout arlink
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Library string
	File    string
	Member  string
	Symbol  string
	Detail  string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Library != "" {
		b.WriteString(" library ")
		b.WriteString(e.Library)
	}

	if e.File != "" {
		b.WriteString(" at ")
		b.WriteString(e.File)
		if e.Member != "" {
			b.WriteByte('(')
			b.WriteString(e.Member)
			b.WriteByte(')')
		}
	} else if e.Member != "" {
		b.WriteString(" member ")
		b.WriteString(e.Member)
	}

	if e.Symbol != "" {
		b.WriteString(" symbol ")
		b.WriteString(e.Symbol)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Library sets the library name
func (b *Builder) Library(name string) *Builder {
	b.err.Library = name
	return b
}

// File sets the file path
func (b *Builder) File(path string) *Builder {
	b.err.File = path
	return b
}

// Member sets the archive member name
func (b *Builder) Member(name string) *Builder {
	b.err.Member = name
	return b
}

// Symbol sets the symbol name
func (b *Builder) Symbol(name string) *Builder {
	b.err.Symbol = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// LibraryNotFound creates the fatal error for an unresolved native library
func LibraryNotFound(name string) *Error {
	return &Error{
		Phase:   PhaseResolve,
		Kind:    KindNotFound,
		Library: name,
		Detail:  fmt.Sprintf("could not find native static library `%s`, perhaps an -L flag is missing?", name),
	}
}

// ReadFailed creates an archive or object read error
func ReadFailed(path string, cause error) *Error {
	return &Error{
		Phase: PhaseRead,
		Kind:  KindIO,
		File:  path,
		Cause: cause,
	}
}

// WriteFailed creates an output archive write error
func WriteFailed(path string, cause error) *Error {
	return &Error{
		Phase: PhaseWrite,
		Kind:  KindIO,
		File:  path,
		Cause: cause,
	}
}

// Malformed creates an invalid data error for a file that is not a readable archive
func Malformed(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseRead,
		Kind:   KindInvalidData,
		File:   path,
		Detail: "not a readable archive",
		Cause:  cause,
	}
}

// Unrepresentable creates an error for an import descriptor the target archive format cannot encode
func Unrepresentable(symbol, detail string) *Error {
	return &Error{
		Phase:  PhaseImport,
		Kind:   KindUnrepresentable,
		Symbol: symbol,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Consumed creates the error returned by a builder used after Build
func Consumed(output string) *Error {
	return &Error{
		Phase:  PhaseStage,
		Kind:   KindConsumed,
		File:   output,
		Detail: "archive builder already built",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// UnresolvedLibrary is a single library a manifest could not resolve
type UnresolvedLibrary struct {
	Archive string // output archive that requested it, empty for top-level lookups
	Name    string
}

// UnresolvedLibrariesError aggregates every unresolved library of one resolution pass
type UnresolvedLibrariesError struct {
	Libraries []UnresolvedLibrary
}

func (e *UnresolvedLibrariesError) Error() string {
	if len(e.Libraries) == 0 {
		return "[resolve] not_found: no libraries specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "could not find %d native static librar", len(e.Libraries))
	if len(e.Libraries) == 1 {
		b.WriteString("y:\n")
	} else {
		b.WriteString("ies:\n")
	}

	// Group by archive for cleaner output
	byArchive := make(map[string][]string)
	var order []string
	for _, lib := range e.Libraries {
		if _, exists := byArchive[lib.Archive]; !exists {
			order = append(order, lib.Archive)
		}
		byArchive[lib.Archive] = append(byArchive[lib.Archive], lib.Name)
	}

	for _, archive := range order {
		if archive != "" {
			b.WriteString("\n  ")
			b.WriteString(archive)
			b.WriteString(":\n")
		}
		for _, name := range byArchive[archive] {
			b.WriteString("    - ")
			b.WriteString(name)
			b.WriteByte('\n')
		}
	}
	b.WriteString("\nperhaps an -L flag is missing?")

	return b.String()
}

// Is reports whether target matches this error type
func (e *UnresolvedLibrariesError) Is(target error) bool {
	if _, ok := target.(*UnresolvedLibrariesError); ok {
		return true
	}
	if t, ok := target.(*Error); ok {
		return t.Phase == PhaseResolve && t.Kind == KindNotFound
	}
	return false
}
