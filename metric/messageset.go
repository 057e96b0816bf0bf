package metric

import (
	"slices"

	"github.com/flashbots/ppcalc/trace"
)

// MessageSet is an ordered set of message IDs. Insertion is cheap while IDs
// arrive in ascending order, which is the common case when feeding
// destination messages in arrival order.
type MessageSet struct {
	messages []trace.MessageID
	sorted   bool
}

// NewMessageSet creates an empty set.
func NewMessageSet() *MessageSet {
	return &MessageSet{sorted: true}
}

// Insert adds a message. Inserting a message twice is not supported.
func (s *MessageSet) Insert(id trace.MessageID) {
	if n := len(s.messages); n > 0 && s.messages[n-1] > id {
		s.sorted = false
	}
	s.messages = append(s.messages, id)
}

// Len returns the number of messages.
func (s *MessageSet) Len() int {
	return len(s.messages)
}

// Messages returns the messages in ascending order.
func (s *MessageSet) Messages() []trace.MessageID {
	s.sort()
	return s.messages
}

func (s *MessageSet) sort() {
	if !s.sorted {
		slices.Sort(s.messages)
		s.sorted = true
	}
}

// SplitBy partitions a set by the key returned for each message. Every part
// is sorted.
func SplitBy[K comparable](s *MessageSet, key func(trace.MessageID) K) map[K]*MessageSet {
	res := make(map[K]*MessageSet)
	for _, id := range s.messages {
		k := key(id)
		part, ok := res[k]
		if !ok {
			part = NewMessageSet()
			res[k] = part
		}
		part.Insert(id)
	}
	for _, part := range res {
		part.sort()
	}
	return res
}

// Distance compares s with a following set. It returns the number of
// messages in other that are not in s (added) and the number of messages
// present in both (overlap).
func (s *MessageSet) Distance(other *MessageSet) (added, overlap int) {
	s.sort()
	other.sort()

	i := 0
	for _, id := range other.messages {
		for i < len(s.messages) && s.messages[i] < id {
			i++
		}
		if i < len(s.messages) && s.messages[i] == id {
			overlap++
			i++
			continue
		}
		added++
	}
	return added, overlap
}
