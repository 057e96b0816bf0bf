package trace

import "strconv"

// MessageID identifies a message. In a built Trace it equals the index of
// the message's entry.
type MessageID uint64

// SourceID identifies a sending entity.
type SourceID uint64

// DestinationID identifies a receiving entity.
type DestinationID uint64

func (id MessageID) String() string     { return strconv.FormatUint(uint64(id), 10) }
func (id SourceID) String() string      { return strconv.FormatUint(uint64(id), 10) }
func (id DestinationID) String() string { return strconv.FormatUint(uint64(id), 10) }
