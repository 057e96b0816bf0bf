package common

import (
	"context"
	"log/slog"
	"time"
)

// Bench measures consecutive phases of a computation and logs the duration
// of each one when the next phase starts or Done is called.
type Bench struct {
	log   *slog.Logger
	level slog.Level
	tag   string
	start time.Time
}

// NewBench creates a bench logging at the given level. A nil logger uses
// slog.Default().
func NewBench(log *slog.Logger, level slog.Level) *Bench {
	if log == nil {
		log = slog.Default()
	}
	return &Bench{log: log, level: level}
}

// Measure finishes the running phase (if any) and starts a new one.
func (b *Bench) Measure(tag string) {
	b.finish()
	b.tag = tag
	b.start = time.Now()
}

// Done finishes the running phase.
func (b *Bench) Done() {
	b.finish()
	b.tag = ""
}

func (b *Bench) finish() {
	if b.tag == "" {
		return
	}
	b.log.Log(context.Background(), b.level, "phase finished", "phase", b.tag, "duration", time.Since(b.start))
}
