package metric

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrInvalidWindow = errors.New("invalid delay window")

// Window bounds the network delay assumed by the observer. Both ends are
// inclusive.
type Window struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// MaxWindowMs is the largest bound, in milliseconds, a Duration can hold.
const MaxWindowMs = math.MaxInt64 / int64(time.Millisecond)

// NewWindow creates a window from millisecond bounds.
func NewWindow(minMs, maxMs int64) (Window, error) {
	if minMs > MaxWindowMs || maxMs > MaxWindowMs {
		return Window{}, fmt.Errorf("%w: bounds above %d ms", ErrInvalidWindow, MaxWindowMs)
	}
	w := Window{
		Min: time.Duration(minMs) * time.Millisecond,
		Max: time.Duration(maxMs) * time.Millisecond,
	}
	return w, w.Validate()
}

// Validate checks 0 <= Min <= Max.
func (w Window) Validate() error {
	if w.Min < 0 {
		return fmt.Errorf("%w: negative minimum %s", ErrInvalidWindow, w.Min)
	}
	if w.Max < w.Min {
		return fmt.Errorf("%w: maximum %s below minimum %s", ErrInvalidWindow, w.Max, w.Min)
	}
	return nil
}

// Contains reports whether a delay lies within the window.
func (w Window) Contains(delay time.Duration) bool {
	return delay >= w.Min && delay <= w.Max
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.Min, w.Max)
}
