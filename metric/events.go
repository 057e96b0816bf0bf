package metric

import (
	"slices"
	"time"

	"github.com/flashbots/ppcalc/trace"
)

type eventKind uint8

// Events at the same instant are processed in declaration order: a source
// window opening at t sees destination messages arriving at t, and a window
// closing at t does not.
const (
	eventAddSource eventKind = iota
	eventAddDestination
	eventRemoveSource
)

func (k eventKind) String() string {
	switch k {
	case eventAddSource:
		return "AddSourceMessage"
	case eventAddDestination:
		return "AddDestinationMessage"
	case eventRemoveSource:
		return "RemoveSourceMessage"
	default:
		return "Unknown"
	}
}

type event struct {
	ts      time.Time
	kind    eventKind
	message trace.MessageID
}

// eventQueue returns the time-ordered events of all messages. The window of
// a source message closes one nanosecond after sent+Max so that arrivals at
// exactly sent+Max are still included.
func eventQueue(tr *trace.Trace, w Window) []event {
	entries := tr.Entries()
	queue := make([]event, 0, 3*len(entries))
	closeAfter := w.Max + time.Nanosecond

	for i := range entries {
		e := &entries[i]
		queue = append(queue,
			event{ts: e.SourceTimestamp.Add(w.Min), kind: eventAddSource, message: e.MessageID},
			event{ts: e.SourceTimestamp.Add(closeAfter), kind: eventRemoveSource, message: e.MessageID},
			event{ts: e.DestinationTimestamp, kind: eventAddDestination, message: e.MessageID},
		)
	}

	slices.SortFunc(queue, func(a, b event) int {
		if c := a.ts.Compare(b.ts); c != 0 {
			return c
		}
		if a.kind != b.kind {
			return int(a.kind) - int(b.kind)
		}
		switch {
		case a.message < b.message:
			return -1
		case a.message > b.message:
			return 1
		}
		return 0
	})
	return queue
}
