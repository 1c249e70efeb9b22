//go:build darwin

package native

import (
	"github.com/ebitengine/purego"
	"go.uber.org/zap"
)

// dylibLoadable reports whether the dynamic loader can open path. Since macOS
// 11 system libraries live only in the dyld shared cache, so a missing file
// can still be loadable. The handle is closed before returning.
func dylibLoadable(path string) bool {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil || handle == 0 {
		return false
	}
	if err := purego.Dlclose(handle); err != nil {
		Logger().Warn("dlclose failed after load check", zap.String("path", path), zap.Error(err))
	}
	return true
}
