package testutil

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/flashbots/ppcalc/trace"
	"github.com/stretchr/testify/require"
)

// Epoch is the reference time of all generated traces.
var Epoch = time.Unix(0, 0).UTC()

// At returns the instant ms milliseconds after Epoch.
func At(ms int64) time.Time {
	return Epoch.Add(time.Duration(ms) * time.Millisecond)
}

// Msg creates a trace entry with millisecond timestamps relative to Epoch.
func Msg(id, source uint64, sentMs int64, destination uint64, receivedMs int64) trace.Entry {
	return trace.Entry{
		MessageID:            trace.MessageID(id),
		SourceID:             trace.SourceID(source),
		SourceTimestamp:      At(sentMs),
		DestinationID:        trace.DestinationID(destination),
		DestinationTimestamp: At(receivedMs),
	}
}

// BuildTrace builds a validated trace from entries, renumbering them by
// arrival time.
func BuildTrace(t testing.TB, entries ...trace.Entry) *trace.Trace {
	t.Helper()

	b := trace.NewBuilder()
	for _, e := range entries {
		b.Add(e)
	}
	tr, err := b.Fix().Build()
	require.NoError(t, err)
	return tr
}

// TraceConfig describes a randomized trace.
type TraceConfig struct {
	Sources           int
	Destinations      int
	MessagesPerSource int
	MinDelay          time.Duration
	MaxDelay          time.Duration
	MaxInterval       time.Duration
	Seed              uint64
}

// TraceOption customizes a TraceConfig.
type TraceOption func(*TraceConfig)

// WithSources sets the number of sources.
func WithSources(n int) TraceOption {
	return func(c *TraceConfig) { c.Sources = n }
}

// WithDestinations sets the number of destinations.
func WithDestinations(n int) TraceOption {
	return func(c *TraceConfig) { c.Destinations = n }
}

// WithMessagesPerSource sets how many messages each source sends.
func WithMessagesPerSource(n int) TraceOption {
	return func(c *TraceConfig) { c.MessagesPerSource = n }
}

// WithDelay sets the bounds of the network delay.
func WithDelay(minDelay, maxDelay time.Duration) TraceOption {
	return func(c *TraceConfig) {
		c.MinDelay = minDelay
		c.MaxDelay = maxDelay
	}
}

// WithMaxInterval sets the largest gap between two messages of a source.
func WithMaxInterval(d time.Duration) TraceOption {
	return func(c *TraceConfig) { c.MaxInterval = d }
}

// WithSeed sets the random seed.
func WithSeed(seed uint64) TraceOption {
	return func(c *TraceConfig) { c.Seed = seed }
}

// NewTraceConfig returns the default randomized trace configuration with
// options applied.
func NewTraceConfig(options ...TraceOption) *TraceConfig {
	c := &TraceConfig{
		Sources:           10,
		Destinations:      4,
		MessagesPerSource: 20,
		MinDelay:          10 * time.Millisecond,
		MaxDelay:          100 * time.Millisecond,
		MaxInterval:       200 * time.Millisecond,
		Seed:              1,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// GenerateTestTrace creates a randomized trace. Source i talks to
// destination i mod Destinations only.
func GenerateTestTrace(t testing.TB, options ...TraceOption) *trace.Trace {
	t.Helper()
	c := NewTraceConfig(options...)

	rng := rand.New(rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15))
	delaySpan := int64(c.MaxDelay - c.MinDelay)

	b := trace.NewBuilder()
	for s := 0; s < c.Sources; s++ {
		ts := Epoch.Add(time.Duration(rng.Int64N(int64(c.MaxInterval) + 1)))
		for m := 0; m < c.MessagesPerSource; m++ {
			ts = ts.Add(time.Millisecond + time.Duration(rng.Int64N(int64(c.MaxInterval)+1)))
			delay := c.MinDelay + time.Duration(rng.Int64N(delaySpan+1))
			b.Add(trace.Entry{
				SourceID:             trace.SourceID(s),
				SourceTimestamp:      ts,
				DestinationID:        trace.DestinationID(s % c.Destinations),
				DestinationTimestamp: ts.Add(delay),
			})
		}
	}

	tr, err := b.Fix().Build()
	require.NoError(t, err)
	return tr
}
