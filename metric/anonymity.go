package metric

import (
	"context"
	"fmt"

	"github.com/flashbots/ppcalc/trace"
)

// ctxCheckInterval is the number of events processed between checks for
// cancellation.
const ctxCheckInterval = 1 << 12

// Delta describes the candidates of one destination in a message anonymity
// set relative to the previous message of the same source.
type Delta struct {
	// Added is the number of candidate messages not present previously.
	Added int `json:"added"`
	// Overlap is the number of candidate messages shared with the previous set.
	Overlap int `json:"overlap"`
}

// MessageDelta is the message anonymity set of one source message, split by
// destination and expressed relative to the preceding message.
type MessageDelta struct {
	Message      trace.MessageID                 `json:"message"`
	Destinations map[trace.DestinationID]Delta `json:"destinations"`
}

// MessageAnonymitySets computes, for every source message, which destination
// messages could correspond to it. Results are grouped by source and ordered
// by the time each message's window closes, which is send order.
func MessageAnonymitySets(ctx context.Context, tr *trace.Trace, w Window) (map[trace.SourceID][]MessageDelta, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	destinationOf := func(id trace.MessageID) trace.DestinationID {
		d, _ := tr.Destination(id)
		return d
	}

	open := make(map[trace.MessageID]*MessageSet)
	previous := make(map[trace.SourceID]map[trace.DestinationID]*MessageSet)
	result := make(map[trace.SourceID][]MessageDelta, tr.NumSources())

	for i, ev := range eventQueue(tr, w) {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		switch ev.kind {
		case eventAddSource:
			open[ev.message] = NewMessageSet()

		case eventAddDestination:
			// arrival order equals message ID order, so every open set
			// stays sorted
			for _, set := range open {
				set.Insert(ev.message)
			}

		case eventRemoveSource:
			set, ok := open[ev.message]
			if !ok {
				return nil, fmt.Errorf("window of message %d closed before it opened", ev.message)
			}
			delete(open, ev.message)

			source, _ := tr.Source(ev.message)
			split := SplitBy(set, destinationOf)
			prev := previous[source]

			deltas := make(map[trace.DestinationID]Delta, len(split))
			for dest, messages := range split {
				prevMessages, ok := prev[dest]
				if !ok {
					deltas[dest] = Delta{Added: messages.Len()}
					continue
				}
				added, overlap := prevMessages.Distance(messages)
				deltas[dest] = Delta{Added: added, Overlap: overlap}
			}

			result[source] = append(result[source], MessageDelta{
				Message:      ev.message,
				Destinations: deltas,
			})
			previous[source] = split
		}
	}

	return result, nil
}
