package trace

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"slices"
	"sort"
	"time"

	"golang.org/x/crypto/sha3"
)

// Entry is a single message of a trace: who sent it when, and who received
// it when.
type Entry struct {
	MessageID            MessageID
	SourceID             SourceID
	SourceTimestamp      time.Time
	DestinationID        DestinationID
	DestinationTimestamp time.Time
}

// Delay returns the time the message spent in the network.
func (e *Entry) Delay() time.Duration {
	return e.DestinationTimestamp.Sub(e.SourceTimestamp)
}

// Builder collects trace entries before validation.
type Builder struct {
	entries []Entry
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends an entry.
func (b *Builder) Add(entry Entry) {
	b.entries = append(b.entries, entry)
}

// Len returns the number of collected entries.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Fix brings the collected entries into the shape Build requires by sorting
// them by arrival time and renumbering message IDs in that order. Source IDs
// are left untouched.
func (b *Builder) Fix() *Builder {
	sort.SliceStable(b.entries, func(i, j int) bool {
		return b.entries[i].DestinationTimestamp.Before(b.entries[j].DestinationTimestamp)
	})
	for i := range b.entries {
		b.entries[i].MessageID = MessageID(i)
	}
	return b
}

// Build validates the entries and returns the resulting trace. The builder
// must not be used afterwards.
func (b *Builder) Build() (*Trace, error) {
	if len(b.entries) == 0 {
		return nil, ErrEmptyTrace
	}

	entries := b.entries
	b.entries = nil
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].MessageID < entries[j].MessageID
	})

	for i := range entries {
		id := entries[i].MessageID
		switch {
		case id < MessageID(i):
			return nil, fmt.Errorf("%w: observed at message %d", ErrMessageIDsNotUnique, id)
		case id > MessageID(i):
			return nil, fmt.Errorf("%w: observed at message %d", ErrMessageIDsHaveGaps, id)
		}
		if i > 0 && entries[i].DestinationTimestamp.Before(entries[i-1].DestinationTimestamp) {
			return nil, fmt.Errorf("%w: observed at message %d", ErrNotSortedByArrival, id)
		}
	}

	seen := make(map[SourceID]struct{})
	destSeen := make(map[DestinationID]struct{})
	for i := range entries {
		seen[entries[i].SourceID] = struct{}{}
		destSeen[entries[i].DestinationID] = struct{}{}
	}
	sources := make([]SourceID, 0, len(seen))
	for s := range seen {
		sources = append(sources, s)
	}
	slices.Sort(sources)
	for i, s := range sources {
		if s != SourceID(i) {
			return nil, fmt.Errorf("%w: observed at source %d", ErrSourceIDsHaveGaps, s)
		}
	}

	destinations := make([]DestinationID, 0, len(destSeen))
	for d := range destSeen {
		destinations = append(destinations, d)
	}
	slices.Sort(destinations)

	return &Trace{
		entries:      entries,
		numSources:   len(sources),
		destinations: destinations,
	}, nil
}

// Trace is a validated network trace. It is the ground truth the anonymity
// metric is evaluated against and is safe for concurrent reads.
type Trace struct {
	entries      []Entry
	numSources   int
	destinations []DestinationID
}

// Entries returns the entries ordered by message ID. The slice must not be
// modified.
func (t *Trace) Entries() []Entry {
	return t.entries
}

// Len returns the number of messages.
func (t *Trace) Len() int {
	return len(t.entries)
}

// Entry returns the entry of a message.
func (t *Trace) Entry(id MessageID) (*Entry, bool) {
	if uint64(id) >= uint64(len(t.entries)) {
		return nil, false
	}
	return &t.entries[id], true
}

// Source returns the sender of a message.
func (t *Trace) Source(id MessageID) (SourceID, bool) {
	e, ok := t.Entry(id)
	if !ok {
		return 0, false
	}
	return e.SourceID, true
}

// Destination returns the receiver of a message.
func (t *Trace) Destination(id MessageID) (DestinationID, bool) {
	e, ok := t.Entry(id)
	if !ok {
		return 0, false
	}
	return e.DestinationID, true
}

// MessageSent returns the time a message was sent.
func (t *Trace) MessageSent(id MessageID) (time.Time, bool) {
	e, ok := t.Entry(id)
	if !ok {
		return time.Time{}, false
	}
	return e.SourceTimestamp, true
}

// MaxMessageID returns the highest message ID.
func (t *Trace) MaxMessageID() MessageID {
	return MessageID(len(t.entries) - 1)
}

// MaxSourceID returns the highest source ID.
func (t *Trace) MaxSourceID() SourceID {
	return SourceID(t.numSources - 1)
}

// NumSources returns the number of distinct sources.
func (t *Trace) NumSources() int {
	return t.numSources
}

// Destinations returns the distinct destinations in ascending order.
func (t *Trace) Destinations() []DestinationID {
	return t.destinations
}

// MessagesBySource groups message IDs by their sender, in send order.
func (t *Trace) MessagesBySource() map[SourceID][]MessageID {
	res := make(map[SourceID][]MessageID, t.numSources)
	for i := range t.entries {
		res[t.entries[i].SourceID] = append(res[t.entries[i].SourceID], t.entries[i].MessageID)
	}
	for _, msgs := range res {
		sort.SliceStable(msgs, func(i, j int) bool {
			return t.entries[msgs[i]].SourceTimestamp.Before(t.entries[msgs[j]].SourceTimestamp)
		})
	}
	return res
}

// Digest returns the hex encoded SHA3-256 hash of the canonical CSV encoding
// of the trace.
func (t *Trace) Digest() string {
	var buf bytes.Buffer
	// Writing to a bytes.Buffer cannot fail.
	_ = t.WriteCSV(&buf)
	sum := sha3.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}
