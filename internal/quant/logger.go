package quant

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/quant/internal/gpu"
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

func slogger() *slog.Logger { return loggerPtr.Load() }

func setLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// SetLogger installs the structured logger used for palette/find/reduce
// diagnostics within this package, and propagates it to internal/gpu so a
// single logger covers both device-level and operation-level events. A nil
// logger restores the no-op default at both layers.
func SetLogger(l *slog.Logger) {
	setLogger(l)
	gpu.SetLogger(l)
}
