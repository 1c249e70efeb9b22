package plan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/arlink/archive"
	"github.com/wippyai/arlink/errors"
	"github.com/wippyai/arlink/native"
	"github.com/wippyai/arlink/target"
)

// Options configures Run.
type Options struct {
	// Target overrides the manifest target when its Name is set.
	Target target.Target

	// SearchPaths are scanned after the manifest's own search paths.
	SearchPaths []string

	// Parallelism bounds concurrent archive builds. Zero means unbounded.
	Parallelism int

	// Resolver defaults to native.NewResolver().
	Resolver *native.Resolver

	// Reporter receives progress events. It must be safe for concurrent use.
	Reporter Reporter
}

// EventKind distinguishes progress events.
type EventKind int

const (
	EventResolved EventKind = iota
	EventStarted
	EventFinished
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventResolved:
		return "resolved"
	case EventStarted:
		return "started"
	case EventFinished:
		return "finished"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event reports progress of one archive, or of library resolution.
type Event struct {
	Kind    EventKind
	Archive string // output path; empty for EventResolved
	Members int    // member count, or the number of libraries for EventResolved
	Err     error
}

// Reporter receives progress events.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

// ArchiveResult describes one written archive.
type ArchiveResult struct {
	Output   string
	Members  []string
	Duration time.Duration
}

// Result describes a completed run.
type Result struct {
	Target    target.Target
	Libraries map[native.Library]string
	Archives  []ArchiveResult
}

// Run resolves the manifest's libraries and builds every archive.
func Run(ctx context.Context, m *Manifest, opts Options) (*Result, error) {
	t, err := selectTarget(m, opts)
	if err != nil {
		return nil, err
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = native.NewResolver()
	}
	report := func(e Event) {
		if opts.Reporter != nil {
			opts.Reporter.Report(e)
		}
	}
	log := Logger().With(zap.String("target", t.Name))

	searchPaths := append(append([]string(nil), m.SearchPaths...), opts.SearchPaths...)
	libs := m.Libraries()
	paths, err := resolver.FindAll(ctx, libs, searchPaths, t)
	if err != nil {
		return nil, attributeUnresolved(m, err)
	}
	resolved := make(map[native.Library]string, len(libs))
	for i, lib := range libs {
		resolved[lib] = paths[i]
		log.Debug("resolved library", zap.String("library", lib.Name), zap.String("path", paths[i]))
	}
	for i, a := range m.Archives {
		for _, mg := range a.Merge {
			if mg.Library == "" {
				continue
			}
			if err := m.checkInput(i, resolved[mg.NativeLibrary()]); err != nil {
				return nil, err
			}
		}
	}
	report(Event{Kind: EventResolved, Members: len(libs)})

	scratch := m.ScratchDir
	if scratch == "" {
		scratch, err = os.MkdirTemp("", "arlink-")
		if err != nil {
			return nil, errors.Wrap(errors.PhaseImport, errors.KindIO, err, "create scratch directory")
		}
		defer os.RemoveAll(scratch)
	}

	results := make([]ArchiveResult, len(m.Archives))
	g, gctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	}
	for i := range m.Archives {
		a := &m.Archives[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report(Event{Kind: EventStarted, Archive: a.Output})
			start := time.Now()

			members, err := buildArchive(gctx, t, a, resolved, filepath.Join(scratch, fmt.Sprintf("%03d", i)))
			if err != nil {
				log.Debug("archive failed", zap.String("output", a.Output), zap.Error(err))
				report(Event{Kind: EventFailed, Archive: a.Output, Err: err})
				return fmt.Errorf("%s: %w", a.Output, err)
			}

			results[i] = ArchiveResult{Output: a.Output, Members: members, Duration: time.Since(start)}
			log.Debug("archive built",
				zap.String("output", a.Output),
				zap.Int("members", len(members)),
				zap.Duration("duration", results[i].Duration))
			report(Event{Kind: EventFinished, Archive: a.Output, Members: len(members)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{Target: t, Libraries: resolved, Archives: results}, nil
}

func selectTarget(m *Manifest, opts Options) (target.Target, error) {
	if opts.Target.Name != "" {
		return opts.Target, nil
	}
	if m.Target == "" {
		return target.Target{}, invalid("no target: set target in the manifest or pass one")
	}
	return target.Lookup(m.Target)
}

// attributeUnresolved names the archives that requested each missing library.
func attributeUnresolved(m *Manifest, err error) error {
	ue, ok := err.(*errors.UnresolvedLibrariesError)
	if !ok {
		return err
	}
	missing := make(map[string]bool, len(ue.Libraries))
	for _, l := range ue.Libraries {
		missing[l.Name] = true
	}
	var out errors.UnresolvedLibrariesError
	for _, a := range m.Archives {
		for _, mg := range a.Merge {
			if mg.Library != "" && missing[mg.Library] {
				out.Libraries = append(out.Libraries, errors.UnresolvedLibrary{Archive: a.Output, Name: mg.Library})
			}
		}
	}
	return &out
}

func buildArchive(ctx context.Context, t target.Target, a *Archive, resolved map[native.Library]string, scratch string) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(a.Output), 0o755); err != nil {
		return nil, errors.WriteFailed(a.Output, err)
	}

	b, err := archive.New(t, a.Output, a.Seed)
	if err != nil {
		return nil, err
	}
	for _, name := range a.Remove {
		if err := b.RemoveFile(name); err != nil {
			return nil, err
		}
	}
	for _, f := range a.Files {
		if err := b.AddFile(f); err != nil {
			return nil, err
		}
	}
	for _, mg := range a.Merge {
		path := mg.Path
		if mg.Library != "" {
			path = resolved[mg.NativeLibrary()]
		}
		var skip func(string) bool
		if len(mg.Skip) > 0 {
			skip = archive.SkipGlob(mg.Skip...)
		}
		if err := b.AddArchive(path, skip); err != nil {
			return nil, err
		}
	}
	for _, d := range a.DllImports {
		imports, err := d.descriptors()
		if err != nil {
			return nil, invalid("%s: %v", d.Library, err)
		}
		if err := b.InjectDLLImportLib(ctx, d.Library, imports, scratch); err != nil {
			return nil, err
		}
	}

	members := b.SrcFiles()
	if err := b.Build(); err != nil {
		return nil, err
	}
	return members, nil
}
