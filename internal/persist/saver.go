package persist

import "log/slog"

// DefaultSaveInterval is how many world-mutating operations pass between
// autosaves.
const DefaultSaveInterval = 10

// Saver counts mutations modulo Interval and decides when a Mark should
// actually hit disk. It does not know how to serialize
// anything itself; the caller's save function does the writing, so the
// same Saver works for both the world file and the user file in lockstep.
type Saver struct {
	Interval int
	log      *slog.Logger
	ops      int
}

// NewSaver returns a Saver with the given interval (DefaultSaveInterval if
// interval <= 0).
func NewSaver(interval int, log *slog.Logger) *Saver {
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	return &Saver{Interval: interval, log: log}
}

// Mark bumps the operation counter and invokes save when the counter
// reaches Interval or force is set. Errors from save are logged, never
// fatal; saves are best-effort.
func (s *Saver) Mark(force bool, save func() error) {
	s.ops = (s.ops + 1) % s.Interval
	if s.ops != 0 && !force {
		return
	}
	if err := save(); err != nil {
		if s.log != nil {
			s.log.Error("save failed", "error", err)
		}
		return
	}
	if s.log != nil {
		s.log.Info("state saved", "forced", force)
	}
}
