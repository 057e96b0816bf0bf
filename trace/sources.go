package trace

import (
	"slices"
	"time"
)

// SourceStream is the sending behaviour of one source: the times at which
// it handed messages to the network, in ascending order.
type SourceStream struct {
	SourceID   SourceID    `json:"source_id"`
	Timestamps []time.Time `json:"timestamps"`
}

// SourcesFromTrace extracts the send times of every source, ordered by
// source ID. Destinations and arrival times are discarded, which allows a
// simulation to be repeated with the same senders but a different network.
func SourcesFromTrace(t *Trace) []SourceStream {
	streams := make([]SourceStream, t.NumSources())
	for i := range streams {
		streams[i].SourceID = SourceID(i)
	}
	for i := range t.entries {
		e := &t.entries[i]
		streams[e.SourceID].Timestamps = append(streams[e.SourceID].Timestamps, e.SourceTimestamp)
	}
	for i := range streams {
		slices.SortFunc(streams[i].Timestamps, func(a, b time.Time) int { return a.Compare(b) })
	}
	return streams
}
