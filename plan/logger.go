package plan

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	logger    atomic.Pointer[zap.Logger]
	nopLogger = zap.NewNop()
)

// Logger returns the plan package's logger instance.
// It uses a no-op logger until SetLogger is called.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return nopLogger
}

// SetLogger configures the logger used by manifest runs. A nil logger
// restores the no-op default. It may be called while work is in flight.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}
