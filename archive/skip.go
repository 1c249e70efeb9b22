package archive

import (
	"path"
)

// SkipGlob returns a skip predicate matching member names against shell
// patterns. Malformed patterns never match.
func SkipGlob(patterns ...string) func(name string) bool {
	return func(name string) bool {
		for _, p := range patterns {
			if ok, _ := path.Match(p, name); ok {
				return true
			}
		}
		return false
	}
}

// SkipNames returns a skip predicate matching exact member names.
func SkipNames(names ...string) func(name string) bool {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(name string) bool {
		_, ok := set[name]
		return ok
	}
}
