package app

import (
	"log/slog"
	"time"

	"github.com/large-farva/cybot-control/internal/logx"
)

const logRingSize = 500

type logEntry struct {
	TS      string `json:"ts"`
	Level   string `json:"level"`
	Message string `json:"message"`

	level slog.Level
}

// logRing keeps the most recent operator-facing log lines.
type logRing struct {
	entries []logEntry
	next    int
	full    bool
}

func newLogRing(size int) *logRing {
	return &logRing{entries: make([]logEntry, size)}
}

func (r *logRing) add(at time.Time, level slog.Level, msg string) {
	r.entries[r.next] = logEntry{
		TS:      at.UTC().Format(time.RFC3339Nano),
		Level:   logx.LevelName(level),
		Message: msg,
		level:   level,
	}
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// snapshot returns entries oldest first, keeping those at or above floor and
// then the last limit of them. limit <= 0 means no limit.
func (r *logRing) snapshot(floor slog.Level, limit int) []logEntry {
	var ordered []logEntry
	if r.full {
		ordered = append(ordered, r.entries[r.next:]...)
	}
	ordered = append(ordered, r.entries[:r.next]...)

	out := make([]logEntry, 0, len(ordered))
	for _, e := range ordered {
		if e.level >= floor {
			out = append(out, e)
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[len(out)-limit:]
	}
	return out
}

func nowUTC() time.Time { return time.Now().UTC() }
