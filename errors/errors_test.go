package errors

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseRead,
				Kind:   KindIO,
				File:   "/opt/lib/libfoo.a",
				Member: "foo.o",
				Detail: "short read",
			},
			contains: []string{"[read]", "io", "/opt/lib/libfoo.a(foo.o)", "short read"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseStage,
				Kind:  KindInvalidInput,
			},
			contains: []string{"[stage]", "invalid_input"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseWrite,
				Kind:   KindIO,
				Detail: "rename",
				Cause:  errors.New("disk full"),
			},
			contains: []string{"[write]", "io", "rename", "caused by", "disk full"},
		},
		{
			name: "member without file",
			err: &Error{
				Phase:  PhaseStage,
				Kind:   KindInvalidInput,
				Member: "x.o",
			},
			contains: []string{"member x.o"},
		},
		{
			name:     "symbol",
			err:      Unrepresentable("GetTickCount", "ordinal not allowed"),
			contains: []string{"[import]", "unrepresentable", "symbol GetTickCount", "ordinal not allowed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	err := ReadFailed("/tmp/missing.a", fs.ErrNotExist)

	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("errors.Is did not reach the cause")
	}
	if !errors.Is(errors.Unwrap(err), fs.ErrNotExist) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseRead,
		Kind:  KindIO,
		File:  "foo.a",
	}

	if !err.Is(&Error{Phase: PhaseRead, Kind: KindIO}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseWrite, Kind: KindIO}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseRead, Kind: KindInvalidData}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseRead, Kind: KindIO}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseImport, KindUnrepresentable).
		Library("kernel32.dll").
		File("/tmp/scratch").
		Member("kernel32_0.obj").
		Symbol("Sleep").
		Value(7).
		Cause(cause).
		Detail("ordinal %d on %s", 7, "wasm32").
		Build()

	if err.Phase != PhaseImport {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseImport)
	}
	if err.Kind != KindUnrepresentable {
		t.Errorf("Kind = %v, want %v", err.Kind, KindUnrepresentable)
	}
	if err.Library != "kernel32.dll" {
		t.Errorf("Library = %q", err.Library)
	}
	if err.File != "/tmp/scratch" || err.Member != "kernel32_0.obj" {
		t.Errorf("File/Member = %q/%q", err.File, err.Member)
	}
	if err.Symbol != "Sleep" {
		t.Errorf("Symbol = %q", err.Symbol)
	}
	if err.Value != 7 {
		t.Errorf("Value = %v, want 7", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "ordinal 7 on wasm32" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("LibraryNotFound", func(t *testing.T) {
		err := LibraryNotFound("bar")
		if err.Phase != PhaseResolve || err.Kind != KindNotFound {
			t.Errorf("Phase/Kind = %v/%v", err.Phase, err.Kind)
		}
		msg := err.Error()
		if !strings.Contains(msg, "`bar`") {
			t.Errorf("message %q should name the library", msg)
		}
		if !strings.Contains(msg, "-L") {
			t.Errorf("message %q should suggest a search path", msg)
		}
	})

	t.Run("WriteFailed", func(t *testing.T) {
		err := WriteFailed("out.a", fs.ErrPermission)
		if err.Phase != PhaseWrite || err.Kind != KindIO {
			t.Errorf("Phase/Kind = %v/%v", err.Phase, err.Kind)
		}
		if !errors.Is(err, fs.ErrPermission) {
			t.Error("cause not preserved")
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		cause := errors.New("bad magic")
		err := Malformed("x.a", cause)
		if err.Kind != KindInvalidData || err.Phase != PhaseRead {
			t.Errorf("Phase/Kind = %v/%v", err.Phase, err.Kind)
		}
		if !errors.Is(err, cause) || !strings.Contains(err.Error(), "x.a") {
			t.Errorf("Malformed = %v", err)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseImport, "import libraries on gnu archives")
		if err.Kind != KindUnsupported {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupported)
		}
	})

	t.Run("Consumed", func(t *testing.T) {
		err := Consumed("out.a")
		if !errors.Is(err, &Error{Phase: PhaseStage, Kind: KindConsumed}) {
			t.Errorf("Consumed should match stage/consumed, got %v", err)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		err := InvalidInput(PhaseConfig, "unknown target")
		if err.Kind != KindInvalidInput || err.Phase != PhaseConfig {
			t.Errorf("Phase/Kind = %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		cause := errors.New("boom")
		err := Wrap(PhaseWrite, KindIO, cause, "payload")
		if !errors.Is(err, cause) {
			t.Error("Wrap should keep cause")
		}
	})
}

func TestUnresolvedLibrariesError(t *testing.T) {
	t.Run("single library", func(t *testing.T) {
		err := &UnresolvedLibrariesError{Libraries: []UnresolvedLibrary{{Name: "bar"}}}
		msg := err.Error()
		if !strings.Contains(msg, "1 native static library") {
			t.Errorf("unexpected message %q", msg)
		}
		if !strings.Contains(msg, "- bar") {
			t.Errorf("message %q should list bar", msg)
		}
	})

	t.Run("grouped by archive", func(t *testing.T) {
		err := &UnresolvedLibrariesError{Libraries: []UnresolvedLibrary{
			{Archive: "out/liba.a", Name: "x"},
			{Archive: "out/libb.a", Name: "y"},
			{Archive: "out/liba.a", Name: "z"},
		}}
		msg := err.Error()
		if !strings.Contains(msg, "3 native static libraries") {
			t.Errorf("unexpected message %q", msg)
		}
		if !strings.Contains(msg, "out/liba.a:") || !strings.Contains(msg, "out/libb.a:") {
			t.Errorf("message %q should group by archive", msg)
		}
	})

	t.Run("empty", func(t *testing.T) {
		err := &UnresolvedLibrariesError{}
		if !strings.Contains(err.Error(), "no libraries specified") {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("errors.Is", func(t *testing.T) {
		err := &UnresolvedLibrariesError{Libraries: []UnresolvedLibrary{{Name: "bar"}}}
		if !errors.Is(err, &UnresolvedLibrariesError{}) {
			t.Error("errors.Is should match UnresolvedLibrariesError")
		}
		if !errors.Is(err, LibraryNotFound("other")) {
			t.Error("errors.Is should match resolve/not_found")
		}
	})
}
