package trace

import "errors"

var (
	ErrEmptyTrace          = errors.New("there are no messages in the trace")
	ErrNotSortedByArrival  = errors.New("destination arrival times do not monotonically increase with message IDs")
	ErrMessageIDsHaveGaps  = errors.New("message IDs have gaps, but need to be sequential")
	ErrMessageIDsNotUnique = errors.New("message ID used multiple times")
	ErrSourceIDsHaveGaps   = errors.New("source IDs have gaps, but need to be sequential")
	ErrUnknownMessage      = errors.New("unknown message")
)
