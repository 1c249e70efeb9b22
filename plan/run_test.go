package plan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	arerrors "github.com/wippyai/arlink/errors"
	"github.com/wippyai/arlink/internal/arfile"
	"github.com/wippyai/arlink/native"
)

func writeArchive(t *testing.T, path string, names ...string) {
	t.Helper()
	entries := make([]arfile.Entry, len(names))
	for i, n := range names {
		entries[i] = arfile.Entry{Name: n, Data: []byte("data of " + n)}
	}
	var buf bytes.Buffer
	if err := arfile.Write(&buf, arfile.FormatGNU, entries); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func memberNames(t *testing.T, path string) []string {
	t.Helper()
	a, err := arfile.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	return a.Names()
}

type recordingReporter struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingReporter) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingReporter) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "lib")
	if err := os.Mkdir(libDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeArchive(t, filepath.Join(dir, "seed.a"), "a.o", "b.o")
	writeArchive(t, filepath.Join(libDir, "libc.a"), "d.o", "e.rmeta")
	if err := os.WriteFile(filepath.Join(dir, "c.o"), []byte("c"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := &Manifest{
		Target:      "x86_64-unknown-linux-gnu",
		SearchPaths: []string{filepath.Join(dir, "missing"), libDir},
		Archives: []Archive{{
			Output: filepath.Join(dir, "out", "nested", "libapp.a"),
			Seed:   filepath.Join(dir, "seed.a"),
			Files:  []string{filepath.Join(dir, "c.o")},
			Remove: []string{"b.o"},
			Merge:  []Merge{{Library: "c", Skip: []string{"*.rmeta"}}},
		}},
	}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}

	rep := &recordingReporter{}
	res, err := Run(context.Background(), m, Options{Reporter: rep})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"a.o", "c.o", "d.o"}
	if got := memberNames(t, m.Archives[0].Output); !slices.Equal(got, want) {
		t.Errorf("members = %v, want %v", got, want)
	}
	if !slices.Equal(res.Archives[0].Members, want) {
		t.Errorf("result members = %v", res.Archives[0].Members)
	}
	if got := res.Libraries[native.Library{Name: "c"}]; got != filepath.Join(libDir, "libc.a") {
		t.Errorf("resolved c = %q", got)
	}
	if rep.count(EventResolved) != 1 || rep.count(EventStarted) != 1 || rep.count(EventFinished) != 1 {
		t.Errorf("events = %+v", rep.events)
	}
}

func TestRunUnresolvedLibrary(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "libapp.a")
	m := &Manifest{
		Target:      "x86_64-unknown-linux-gnu",
		SearchPaths: []string{dir},
		Archives: []Archive{{
			Output: out,
			Merge:  []Merge{{Library: "bar"}},
		}},
	}

	rep := &recordingReporter{}
	_, err := Run(context.Background(), m, Options{Reporter: rep})
	var unresolved *arerrors.UnresolvedLibrariesError
	if !errors.As(err, &unresolved) {
		t.Fatalf("got %v, want UnresolvedLibrariesError", err)
	}
	if len(unresolved.Libraries) != 1 || unresolved.Libraries[0].Archive != out || unresolved.Libraries[0].Name != "bar" {
		t.Errorf("unresolved = %+v", unresolved.Libraries)
	}
	if !strings.Contains(err.Error(), "bar") || !strings.Contains(err.Error(), "-L") {
		t.Errorf("message = %q", err.Error())
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("archive written despite unresolved library")
	}
	if rep.count(EventStarted) != 0 {
		t.Error("builds started despite unresolved library")
	}
}

func TestRunManyArchivesInParallel(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{Target: "x86_64-unknown-linux-gnu"}
	for i := range 8 {
		obj := filepath.Join(dir, fmt.Sprintf("m%d.o", i))
		if err := os.WriteFile(obj, []byte{byte(i)}, 0o644); err != nil {
			t.Fatal(err)
		}
		m.Archives = append(m.Archives, Archive{
			Output: filepath.Join(dir, fmt.Sprintf("lib%d.a", i)),
			Files:  []string{obj},
		})
	}

	rep := &recordingReporter{}
	res, err := Run(context.Background(), m, Options{Parallelism: 3, Reporter: rep})
	if err != nil {
		t.Fatal(err)
	}
	for i, a := range res.Archives {
		if a.Output != m.Archives[i].Output {
			t.Errorf("result %d is for %s", i, a.Output)
		}
		if got := memberNames(t, a.Output); !slices.Equal(got, []string{fmt.Sprintf("m%d.o", i)}) {
			t.Errorf("%s members = %v", a.Output, got)
		}
	}
	if rep.count(EventFinished) != 8 {
		t.Errorf("finished events = %d", rep.count(EventFinished))
	}
}

func TestRunBuildFailure(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{
		Target: "x86_64-unknown-linux-gnu",
		Archives: []Archive{{
			Output: filepath.Join(dir, "libapp.a"),
			Merge:  []Merge{{Path: filepath.Join(dir, "absent.a")}},
		}},
	}
	rep := &recordingReporter{}
	_, err := Run(context.Background(), m, Options{Reporter: rep})
	if !errors.Is(err, &arerrors.Error{Phase: arerrors.PhaseRead, Kind: arerrors.KindIO}) {
		t.Fatalf("got %v, want read/io", err)
	}
	if rep.count(EventFailed) != 1 {
		t.Errorf("events = %+v", rep.events)
	}
}

func TestRunDllImports(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "app.lib")
	m := &Manifest{
		Target:     "x86_64-pc-windows-msvc",
		ScratchDir: filepath.Join(dir, "scratch"),
		Archives: []Archive{{
			Output: out,
			DllImports: []DllImport{{
				Library: "kernel32",
				Imports: []Import{{Name: "GetTickCount"}},
			}},
		}},
	}
	if _, err := Run(context.Background(), m, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	a, err := arfile.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if a.Format != arfile.FormatCOFF || len(a.Members) != 4 {
		t.Errorf("format %s with %d members", a.Format, len(a.Members))
	}
}

func TestRunRejectsLibraryProducedByAnotherArchive(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "libbase.a")
	writeArchive(t, base, "stale.o")

	m := &Manifest{
		Target:      "x86_64-unknown-linux-gnu",
		SearchPaths: []string{dir},
		Archives: []Archive{
			{Output: base},
			{Output: filepath.Join(dir, "libapp.a"), Merge: []Merge{{Library: "base"}}},
		},
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	rep := &recordingReporter{}
	_, err := Run(context.Background(), m, Options{Reporter: rep})
	if !errors.Is(err, &arerrors.Error{Phase: arerrors.PhaseConfig, Kind: arerrors.KindInvalidInput}) {
		t.Fatalf("got %v, want config/invalid_input", err)
	}
	if !strings.Contains(err.Error(), "archives[0]") {
		t.Errorf("error should name the producing archive: %v", err)
	}
	if rep.count(EventStarted) != 0 {
		t.Error("builds started despite the cross reference")
	}
}

func TestRunRequiresTarget(t *testing.T) {
	m := &Manifest{Archives: []Archive{{Output: filepath.Join(t.TempDir(), "x.a")}}}
	if _, err := Run(context.Background(), m, Options{}); !errors.Is(err, &arerrors.Error{Phase: arerrors.PhaseConfig, Kind: arerrors.KindInvalidInput}) {
		t.Fatalf("no target: got %v", err)
	}
}
