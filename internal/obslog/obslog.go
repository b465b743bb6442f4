// Package obslog builds the structured logger every master and session
// component logs through: slog over a colorized tint console handler.
// Messages stay terse and unadorned ("client connected", not a sentence).
package obslog

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Options configures the logger's verbosity and output stream.
type Options struct {
	Level   slog.Level
	Writer  io.Writer
	NoColor bool
}

// New builds a *slog.Logger over a tint.Handler. Writer defaults to
// os.Stderr.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	h := tint.NewHandler(w, &tint.Options{
		Level:      opts.Level,
		TimeFormat: time.Kitchen,
		NoColor:    opts.NoColor,
	})
	return slog.New(h)
}
