package generator

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/flashbots/ppcalc/trace"
	"github.com/stretchr/testify/require"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func testConfig() *Config {
	return &Config{
		Sources:      5,
		Destinations: 3,
		Selection:    SelectRoundRobin,
		SourceIMD:    MustParseDistribution("normal:100:10"),
		SourceWait:   MustParseDistribution("uniform:0:1000"),
		NumMessages:  MustParseDistribution("constant:4"),
		NetworkDelay: MustParseDistribution("uniform:10:50"),
		Seed:         7,
	}
}

func TestParseDistribution(t *testing.T) {
	tests := []struct {
		in      string
		want    Distribution
		wantErr bool
	}{
		{in: "constant:5", want: Distribution{Kind: Constant, A: 5}},
		{in: "uniform:1:100", want: Distribution{Kind: Uniform, A: 1, B: 100}},
		{in: "normal:100.5:0.5", want: Distribution{Kind: Normal, A: 100.5, B: 0.5}},
		{in: "constant", wantErr: true},
		{in: "constant:1:2", wantErr: true},
		{in: "uniform:5:1", wantErr: true},
		{in: "normal:1:-1", wantErr: true},
		{in: "normal:a:b", wantErr: true},
		{in: "poisson:3", wantErr: true},
		{in: "constant:NaN", wantErr: true},
		{in: "constant:Inf", wantErr: true},
		{in: "normal:1:Inf", wantErr: true},
		{in: "normal:NaN:1", wantErr: true},
		{in: "uniform:-Inf:1", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDistribution(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDistribution)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)

			again, err := ParseDistribution(got.String())
			require.NoError(t, err)
			require.Equal(t, got, again)
		})
	}
}

func TestSampler(t *testing.T) {
	rng := testRNG()

	c := NewSampler(MustParseDistribution("constant:2.5"), rng)
	require.Equal(t, 2.5, c.Float())
	require.Equal(t, uint64(3), c.Uint())

	u := NewSampler(MustParseDistribution("uniform:2:4"), rng)
	seen := map[uint64]bool{}
	for i := 0; i < 1000; i++ {
		v := u.Uint()
		require.GreaterOrEqual(t, v, uint64(2))
		require.LessOrEqual(t, v, uint64(4))
		seen[v] = true

		f := u.Float()
		require.GreaterOrEqual(t, f, 2.0)
		require.LessOrEqual(t, f, 4.0)
	}
	require.Len(t, seen, 3)

	n := NewSampler(MustParseDistribution("normal:0:5"), rng)
	negative := false
	for i := 0; i < 1000; i++ {
		if n.Float() < 0 {
			negative = true
		}
		// integer samples are clamped at zero
		_ = n.Uint()
	}
	require.True(t, negative)

	// no integer in [1.2, 1.8]
	empty := NewSampler(MustParseDistribution("uniform:1.2:1.8"), rng)
	require.Equal(t, uint64(1), empty.Uint())

	huge := NewSampler(MustParseDistribution("uniform:0:1e300"), rng)
	require.LessOrEqual(t, huge.Uint(), uint64(maxUint))
	require.Equal(t, uint64(maxUint), NewSampler(MustParseDistribution("constant:1e300"), rng).Uint())
}

func TestGenerateSourcesCapsMessages(t *testing.T) {
	limit := MaxMessagesPerSource
	MaxMessagesPerSource = 10
	t.Cleanup(func() { MaxMessagesPerSource = limit })

	cfg := testConfig()
	cfg.Sources = 1
	cfg.SourceIMD = MustParseDistribution("constant:0")
	cfg.NumMessages = MustParseDistribution("constant:1e300")

	streams := GenerateSources(cfg, testRNG())
	require.Len(t, streams, 1)
	require.Len(t, streams[0].Timestamps, 10)
}

func TestSelectDestinations(t *testing.T) {
	sources := []trace.SourceID{0, 1, 2, 3, 4}

	rr, err := SelectDestinations(SelectRoundRobin, 2, sources, testRNG())
	require.NoError(t, err)
	require.Equal(t, map[trace.SourceID]trace.DestinationID{0: 0, 1: 1, 2: 0, 3: 1, 4: 0}, rr)

	for _, sel := range []DestinationSelection{SelectUniform, SelectNormal} {
		res, err := SelectDestinations(sel, 3, sources, testRNG())
		require.NoError(t, err)
		require.Len(t, res, len(sources))
		for _, d := range res {
			require.Less(t, uint64(d), uint64(3))
		}
	}

	_, err = SelectDestinations("smallworld", 3, sources, testRNG())
	require.Error(t, err)

	_, err = SelectDestinations(SelectUniform, 0, sources, testRNG())
	require.Error(t, err)
}

func TestGenerate(t *testing.T) {
	cfg := testConfig()
	tr, err := Generate(context.Background(), cfg, nil)
	require.NoError(t, err)

	require.Equal(t, 20, tr.Len())
	require.Equal(t, 5, tr.NumSources())
	require.Equal(t, []trace.DestinationID{0, 1, 2}, tr.Destinations())

	for _, e := range tr.Entries() {
		require.Equal(t, trace.DestinationID(uint64(e.SourceID)%3), e.DestinationID)
		require.GreaterOrEqual(t, e.Delay(), 10*time.Millisecond)
		require.LessOrEqual(t, e.Delay(), 50*time.Millisecond)
	}
	for source, msgs := range tr.MessagesBySource() {
		require.Len(t, msgs, 4, "source %d", source)
	}
}

func TestGenerateReproducible(t *testing.T) {
	a, err := Generate(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	b, err := Generate(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	require.Equal(t, a.Digest(), b.Digest())

	other := testConfig()
	other.Seed = 8
	c, err := Generate(context.Background(), other, nil)
	require.NoError(t, err)
	require.NotEqual(t, a.Digest(), c.Digest())
}

func TestGenerateReuseSources(t *testing.T) {
	original, err := Generate(context.Background(), testConfig(), nil)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Sources = 0
	cfg.Seed = 99
	cfg.ReuseSources = trace.SourcesFromTrace(original)
	cfg.NetworkDelay = MustParseDistribution("constant:5")

	tr, err := Generate(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Equal(t, trace.SourcesFromTrace(original), trace.SourcesFromTrace(tr))
	for _, e := range tr.Entries() {
		require.Equal(t, 5*time.Millisecond, e.Delay())
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	cfg.Destinations = 0
	require.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.Selection = "everyone"
	require.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.NetworkDelay = Distribution{}
	require.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.Sources = 0
	cfg.ReuseSources = []trace.SourceStream{{SourceID: 0, Timestamps: []time.Time{Epoch}}, {SourceID: 1}}
	require.ErrorContains(t, cfg.Validate(), "reused source 1")

	require.NoError(t, testConfig().Validate())
}

func TestMergeStreamsMissingDestination(t *testing.T) {
	_, err := MergeStreams([]trace.SourceStream{{SourceID: 1, Timestamps: []time.Time{Epoch}}}, nil)
	require.Error(t, err)
}
