package generator

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/flashbots/ppcalc/trace"
	"gonum.org/v1/gonum/stat/distuv"
)

// DestinationSelection is the strategy assigning destinations to sources.
type DestinationSelection string

const (
	// SelectUniform picks a destination uniformly at random per source.
	SelectUniform DestinationSelection = "uniform"
	// SelectRoundRobin assigns source i to destination i mod n.
	SelectRoundRobin DestinationSelection = "roundrobin"
	// SelectNormal concentrates sources on the middle destinations.
	SelectNormal DestinationSelection = "normal"
)

// ParseDestinationSelection validates a strategy name.
func ParseDestinationSelection(s string) (DestinationSelection, error) {
	switch sel := DestinationSelection(s); sel {
	case SelectUniform, SelectRoundRobin, SelectNormal:
		return sel, nil
	default:
		return "", fmt.Errorf("invalid destination selection type %q", s)
	}
}

// SelectDestinations assigns every source a destination in [0, n).
func SelectDestinations(sel DestinationSelection, n uint64, sources []trace.SourceID, rng *rand.Rand) (map[trace.SourceID]trace.DestinationID, error) {
	if n == 0 {
		return nil, fmt.Errorf("number of destinations must be positive")
	}

	res := make(map[trace.SourceID]trace.DestinationID, len(sources))
	switch sel {
	case SelectUniform:
		for _, s := range sources {
			res[s] = trace.DestinationID(rng.Uint64N(n))
		}
	case SelectRoundRobin:
		for i, s := range sources {
			res[s] = trace.DestinationID(uint64(i) % n)
		}
	case SelectNormal:
		// about 99.7% of the mass falls inside [0, n)
		normal := distuv.Normal{Mu: float64(n-1) / 2, Sigma: float64(n) / 6, Src: rng}
		for _, s := range sources {
			v := math.Round(normal.Rand())
			v = math.Min(math.Max(v, 0), float64(n-1))
			res[s] = trace.DestinationID(v)
		}
	default:
		return nil, fmt.Errorf("invalid destination selection type %q", sel)
	}
	return res, nil
}
