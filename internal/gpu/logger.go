package gpu

import (
	"log/slog"
	"sync/atomic"
)

// logger is swapped as a whole so renders in flight keep a consistent
// logger while SetLogger runs.
var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.DiscardHandler))
}

func slogger() *slog.Logger { return logger.Load() }

// SetLogger routes device selection, pipeline and upload diagnostics to
// l. A nil l discards them, which is also the initial state.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	logger.Store(l)
}
