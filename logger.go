package slicer

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/slicer/internal/gpu"
)

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(slog.DiscardHandler))
}

// SetLogger sends the records of the renderer, the GPU context and the
// wgpu HAL to l. Until it is called every record is dropped; a nil l
// drops them again.
//
// Log levels used:
//   - [slog.LevelDebug]: buffer sizes, pipeline builds, per-slice progress
//   - [slog.LevelInfo]: adapter selected, run summary
//   - [slog.LevelWarn]: slice count reduced, streamlines skipped
//
// Example:
//
//	slicer.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	loggerPtr.Store(l)
	gpu.SetLogger(l)
	hal.SetLogger(l)
}

// Logger returns the logger installed by SetLogger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
