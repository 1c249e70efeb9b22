// Package plan drives the resolver and the archive builder from a YAML
// manifest.
//
// A manifest names a target, the library search path and the archives to
// produce. Every "library:" merge source is resolved first; a missing library
// fails the whole run before any archive is written. Archives are then built
// concurrently, one builder each.
package plan
