package generator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/flashbots/ppcalc/common"
	"github.com/flashbots/ppcalc/trace"
)

// Epoch is the instant simulated time starts at.
var Epoch = time.Unix(0, 0).UTC()

// MaxMessagesPerSource caps the sampled message count of a single source.
var MaxMessagesPerSource uint64 = 1 << 24

// Config describes a simulation.
type Config struct {
	// Sources is the number of sending entities.
	Sources uint64 `yaml:"sources" json:"sources"`

	// Destinations is the number of receiving entities.
	Destinations uint64 `yaml:"destinations" json:"destinations"`

	// Selection assigns destinations to sources.
	Selection DestinationSelection `yaml:"destination_selection" json:"destination_selection"`

	// SourceIMD is the inter-message delay of a source, in milliseconds.
	SourceIMD Distribution `yaml:"source_imd" json:"source_imd"`

	// SourceWait is the time a source waits before its first message, in
	// milliseconds.
	SourceWait Distribution `yaml:"source_wait" json:"source_wait"`

	// NumMessages is the number of messages per source.
	NumMessages Distribution `yaml:"num_messages" json:"num_messages"`

	// NetworkDelay is the time a message spends in the network, in
	// milliseconds.
	NetworkDelay Distribution `yaml:"network_delay" json:"network_delay"`

	// Seed makes runs reproducible. Zero picks a random seed.
	Seed uint64 `yaml:"seed" json:"seed"`

	// ReuseSources replaces source generation with recorded send times,
	// taken from an earlier trace or a sources file.
	ReuseSources []trace.SourceStream `yaml:"-" json:"-"`
}

// Validate checks that the configuration can be simulated.
func (c *Config) Validate() error {
	if c.Destinations == 0 {
		return fmt.Errorf("destinations must be positive")
	}
	if len(c.ReuseSources) == 0 && c.Sources == 0 {
		return fmt.Errorf("sources must be positive")
	}
	for _, stream := range c.ReuseSources {
		if len(stream.Timestamps) == 0 {
			return fmt.Errorf("reused source %d sends no messages", stream.SourceID)
		}
	}
	if _, err := ParseDestinationSelection(string(c.Selection)); err != nil {
		return err
	}
	for name, d := range map[string]Distribution{
		"source_imd":    c.SourceIMD,
		"source_wait":   c.SourceWait,
		"num_messages":  c.NumMessages,
		"network_delay": c.NetworkDelay,
	} {
		if _, err := ParseDistribution(d.String()); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func milliseconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Millisecond))
}

// GenerateSources simulates the sending behaviour of every source. Every
// source sends at least one and at most MaxMessagesPerSource messages so that
// source IDs stay contiguous.
func GenerateSources(c *Config, rng *rand.Rand) []trace.SourceStream {
	imd := NewSampler(c.SourceIMD, rng)
	wait := NewSampler(c.SourceWait, rng)
	count := NewSampler(c.NumMessages, rng)

	streams := make([]trace.SourceStream, 0, c.Sources)
	for i := uint64(0); i < c.Sources; i++ {
		n := min(max(1, count.Uint()), MaxMessagesPerSource)
		ts := Epoch.Add(milliseconds(max(0, wait.Float())))

		timestamps := make([]time.Time, 0, min(n, 1024))
		for j := uint64(0); j < n; j++ {
			ts = ts.Add(milliseconds(max(0, imd.Float())))
			timestamps = append(timestamps, ts)
		}
		streams = append(streams, trace.SourceStream{SourceID: trace.SourceID(i), Timestamps: timestamps})
	}
	return streams
}

// PendingMessage is a message that was sent but has not crossed the network
// yet.
type PendingMessage struct {
	SourceID        trace.SourceID
	SourceTimestamp time.Time
	DestinationID   trace.DestinationID
}

// MergeStreams flattens per-source streams into a single list ordered by
// send time.
func MergeStreams(streams []trace.SourceStream, destinations map[trace.SourceID]trace.DestinationID) ([]PendingMessage, error) {
	var pending []PendingMessage
	for _, s := range streams {
		dest, ok := destinations[s.SourceID]
		if !ok {
			return nil, fmt.Errorf("no destination for source %d", s.SourceID)
		}
		for _, ts := range s.Timestamps {
			pending = append(pending, PendingMessage{SourceID: s.SourceID, SourceTimestamp: ts, DestinationID: dest})
		}
	}
	slices.SortStableFunc(pending, func(a, b PendingMessage) int {
		return a.SourceTimestamp.Compare(b.SourceTimestamp)
	})
	return pending, nil
}

// ApplyNetworkDelay delays every pending message by an independently
// sampled network delay and returns the resulting trace.
func ApplyNetworkDelay(pending []PendingMessage, delay Distribution, rng *rand.Rand) (*trace.Trace, error) {
	sampler := NewSampler(delay, rng)

	b := trace.NewBuilder()
	for _, p := range pending {
		b.Add(trace.Entry{
			SourceID:             p.SourceID,
			SourceTimestamp:      p.SourceTimestamp,
			DestinationID:        p.DestinationID,
			DestinationTimestamp: p.SourceTimestamp.Add(milliseconds(max(0, sampler.Float()))),
		})
	}
	return b.Fix().Build()
}

// Generate runs a full simulation.
func Generate(ctx context.Context, c *Config, log *slog.Logger) (*trace.Trace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	seed := c.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	log.Debug("generating trace", "seed", seed, "sources", c.Sources, "destinations", c.Destinations)
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))

	bench := common.NewBench(log, slog.LevelDebug)
	defer bench.Done()

	var streams []trace.SourceStream
	if len(c.ReuseSources) > 0 {
		streams = c.ReuseSources
	} else {
		bench.Measure("generate sources")
		streams = GenerateSources(c, rng)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bench.Measure("select destinations")
	ids := make([]trace.SourceID, len(streams))
	for i, s := range streams {
		ids[i] = s.SourceID
	}
	destinations, err := SelectDestinations(c.Selection, c.Destinations, ids, rng)
	if err != nil {
		return nil, err
	}

	bench.Measure("merge streams")
	pending, err := MergeStreams(streams, destinations)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bench.Measure("network delay")
	tr, err := ApplyNetworkDelay(pending, c.NetworkDelay, rng)
	if err != nil {
		return nil, fmt.Errorf("building trace: %w", err)
	}
	return tr, nil
}
