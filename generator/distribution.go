package generator

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

var ErrInvalidDistribution = errors.New(`invalid distribution, specify it using one of the following forms:
    constant:VALUE
    uniform:MIN:MAX
    normal:MEAN:DEV`)

// DistributionKind names a family of distributions.
type DistributionKind string

const (
	Constant DistributionKind = "constant"
	Uniform  DistributionKind = "uniform"
	Normal   DistributionKind = "normal"
)

// Distribution is a parsed distribution specification. For Constant only A
// is used; Uniform samples from [A, B]; Normal has mean A and standard
// deviation B.
type Distribution struct {
	Kind DistributionKind
	A, B float64
}

// ParseDistribution parses "constant:V", "uniform:MIN:MAX" or
// "normal:MEAN:DEV".
func ParseDistribution(s string) (Distribution, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	nums := make([]float64, 0, 2)
	for _, p := range parts[1:] {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Distribution{}, fmt.Errorf("%w (got %q)", ErrInvalidDistribution, s)
		}
		nums = append(nums, v)
	}

	var d Distribution
	switch DistributionKind(parts[0]) {
	case Constant:
		if len(nums) != 1 {
			return d, fmt.Errorf("%w (got %q)", ErrInvalidDistribution, s)
		}
		d = Distribution{Kind: Constant, A: nums[0]}
	case Uniform:
		if len(nums) != 2 || nums[1] < nums[0] {
			return d, fmt.Errorf("%w (got %q)", ErrInvalidDistribution, s)
		}
		d = Distribution{Kind: Uniform, A: nums[0], B: nums[1]}
	case Normal:
		if len(nums) != 2 || nums[1] < 0 {
			return d, fmt.Errorf("%w (got %q)", ErrInvalidDistribution, s)
		}
		d = Distribution{Kind: Normal, A: nums[0], B: nums[1]}
	default:
		return d, fmt.Errorf("%w (got %q)", ErrInvalidDistribution, s)
	}
	return d, nil
}

// MustParseDistribution is like ParseDistribution but panics on error.
func MustParseDistribution(s string) Distribution {
	d, err := ParseDistribution(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Distribution) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	if d.Kind == Constant {
		return string(d.Kind) + ":" + f(d.A)
	}
	return string(d.Kind) + ":" + f(d.A) + ":" + f(d.B)
}

// MarshalText implements encoding.TextMarshaler so distributions can be
// used in YAML and JSON configuration.
func (d Distribution) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Distribution) UnmarshalText(text []byte) error {
	parsed, err := ParseDistribution(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Sampler draws values from a Distribution.
type Sampler struct {
	dist   Distribution
	rng    *rand.Rand
	normal distuv.Normal
	unif   distuv.Uniform
}

// NewSampler binds a distribution to a random source.
func NewSampler(d Distribution, rng *rand.Rand) *Sampler {
	return &Sampler{
		dist:   d,
		rng:    rng,
		normal: distuv.Normal{Mu: d.A, Sigma: d.B, Src: rng},
		unif:   distuv.Uniform{Min: d.A, Max: d.B, Src: rng},
	}
}

// Float samples a real value.
func (s *Sampler) Float() float64 {
	switch s.dist.Kind {
	case Uniform:
		if s.dist.A == s.dist.B {
			return s.dist.A
		}
		return s.unif.Rand()
	case Normal:
		return s.normal.Rand()
	default:
		return s.dist.A
	}
}

// maxUint bounds integer samples so that they convert to uint64 exactly.
const maxUint = 1 << 62

func toUint(v float64) uint64 {
	if !(v > 0) {
		return 0
	}
	if v >= maxUint {
		return maxUint
	}
	return uint64(v)
}

// Uint samples a non-negative integer. Uniform bounds are inclusive, normal
// samples are rounded up, negative values become zero. A uniform range
// without an integer in it yields floor(MAX).
func (s *Sampler) Uint() uint64 {
	switch s.dist.Kind {
	case Uniform:
		lo := toUint(math.Ceil(s.dist.A))
		hi := toUint(math.Floor(s.dist.B))
		if hi <= lo {
			return hi
		}
		return lo + s.rng.Uint64N(hi-lo+1)
	default:
		return toUint(math.Ceil(s.Float()))
	}
}
