//go:build !darwin

package native

// Hosts other than macOS keep every library on the filesystem.
var dylibLoadable func(string) bool
