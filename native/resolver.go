package native

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/arlink/errors"
	"github.com/wippyai/arlink/target"
)

// Library is a requested library name. Verbatim names are used as file
// names without applying the target's prefix and suffix.
type Library struct {
	Name     string
	Verbatim bool
}

func (l Library) String() string {
	if l.Verbatim {
		return l.Name + " (verbatim)"
	}
	return l.Name
}

// Candidates returns the decorated file name and the Unix-style fallback.
func (l Library) Candidates(n target.Naming) (decorated, unix string) {
	decorated = l.Name
	if !l.Verbatim {
		decorated = n.Decorate(l.Name)
	}
	return decorated, "lib" + l.Name + ".a"
}

// Resolver searches directories for static libraries. The zero value is not
// usable; construct with NewResolver.
type Resolver struct {
	exists      func(path string) bool
	loadable    func(path string) bool
	parallelism int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithExists replaces the filesystem existence check.
func WithExists(fn func(path string) bool) Option {
	return func(r *Resolver) {
		r.exists = fn
	}
}

// WithLoadCheck replaces the dynamic loader check. A nil check disables it.
func WithLoadCheck(fn func(path string) bool) Option {
	return func(r *Resolver) {
		r.loadable = fn
	}
}

// WithParallelism bounds the number of concurrent lookups in FindAll.
// Values below one mean unbounded.
func WithParallelism(n int) Option {
	return func(r *Resolver) {
		r.parallelism = n
	}
}

// NewResolver creates a resolver using the host filesystem and, on macOS,
// the dynamic loader check.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		exists:   pathExists,
		loadable: dylibLoadable,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var (
	defaultResolver     *Resolver
	defaultResolverOnce sync.Once
)

// FindLibrary resolves lib with the default host resolver.
func FindLibrary(lib Library, searchPaths []string, t target.Target) (string, error) {
	defaultResolverOnce.Do(func() {
		defaultResolver = NewResolver()
	})
	return defaultResolver.Find(lib, searchPaths, t)
}

// Find returns the path of the first candidate found, scanning searchPaths
// in order.
func (r *Resolver) Find(lib Library, searchPaths []string, t target.Target) (string, error) {
	if lib.Name == "" {
		return "", errors.InvalidInput(errors.PhaseResolve, "empty library name")
	}

	decorated, unix := lib.Candidates(t.Staticlib)
	log := Logger().With(zap.String("library", lib.Name), zap.Bool("verbatim", lib.Verbatim))

	for _, dir := range searchPaths {
		path := filepath.Join(dir, decorated)
		if r.exists(path) {
			log.Debug("found library", zap.String("path", path))
			return path, nil
		}
		if decorated == unix {
			continue
		}

		path = filepath.Join(dir, unix)
		if r.exists(path) {
			log.Debug("found library by unix name", zap.String("path", path))
			return path, nil
		}
		if r.loadable != nil && r.loadable(path) {
			log.Debug("found library by loader check", zap.String("path", path))
			return path, nil
		}
	}

	log.Debug("library not found", zap.Strings("search_paths", searchPaths))
	return "", errors.LibraryNotFound(lib.Name)
}

// FindAll resolves every library concurrently. Results are in the order of
// libs. When any library is missing, the returned error is an
// *errors.UnresolvedLibrariesError listing all of them.
func (r *Resolver) FindAll(ctx context.Context, libs []Library, searchPaths []string, t target.Target) ([]string, error) {
	paths := make([]string, len(libs))
	failures := make([]error, len(libs))

	g, ctx := errgroup.WithContext(ctx)
	if r.parallelism > 0 {
		g.SetLimit(r.parallelism)
	}
	for i, lib := range libs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			paths[i], failures[i] = r.Find(lib, searchPaths, t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var unresolved errors.UnresolvedLibrariesError
	for i, err := range failures {
		if err == nil {
			continue
		}
		if e, ok := err.(*errors.Error); !ok || e.Kind != errors.KindNotFound {
			return nil, err
		}
		unresolved.Libraries = append(unresolved.Libraries, errors.UnresolvedLibrary{Name: libs[i].Name})
	}
	if len(unresolved.Libraries) > 0 {
		return nil, &unresolved
	}
	return paths, nil
}
