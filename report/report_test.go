package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/flashbots/ppcalc/metric"
	"github.com/flashbots/ppcalc/testutil"
	"github.com/flashbots/ppcalc/trace"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, tr *trace.Trace, minMs, maxMs int64) *metric.Result {
	t.Helper()
	w, err := metric.NewWindow(minMs, maxMs)
	require.NoError(t, err)
	res, err := metric.RelationshipAnonymity(context.Background(), tr, w, nil)
	require.NoError(t, err)
	return res
}

// source 0 is deanonymized by its second message, source 1 stays hidden
func pruningTrace(t *testing.T) *trace.Trace {
	return testutil.BuildTrace(t,
		testutil.Msg(0, 0, 0, 0, 4),
		testutil.Msg(1, 1, 1, 1, 6),
		testutil.Msg(2, 0, 2, 0, 8),
	)
}

func TestDeanonymization(t *testing.T) {
	tr := pruningTrace(t)
	res := analyze(t, tr, 0, 10)

	entries := Deanonymization(res, tr)
	two := 2
	require.Equal(t, []DeanonymizationEntry{
		{Source: 0, Destination: 0, RemainingAnonymitySet: 1, Messages: 2, DeanonymizedAt: &two, Correct: true},
		{Source: 1, Destination: 1, RemainingAnonymitySet: 2, Messages: 1, Correct: true},
	}, entries)

	summary := Summarize(res, tr, entries)
	require.Equal(t, Summary{
		Sources:          2,
		Messages:         3,
		Destinations:     2,
		Deanonymized:     1,
		MeanFinalSetSize: 1.5,
		MinWindowMs:      0,
		MaxWindowMs:      10,
	}, summary)
}

func TestDeanonymizationDetectsWrongWindow(t *testing.T) {
	// the real delays exceed the assumed window, so the true destination of
	// source 0 is never a candidate
	tr := testutil.BuildTrace(t,
		testutil.Msg(0, 1, 0, 1, 5),
		testutil.Msg(1, 0, 0, 0, 100),
	)
	res := analyze(t, tr, 0, 10)

	entries := Deanonymization(res, tr)
	require.Len(t, entries, 2)
	require.False(t, entries[0].Correct)
	require.True(t, entries[1].Correct)
	require.Equal(t, 1, Summarize(res, tr, entries).IncorrectlyPruned)
}

func TestSizes(t *testing.T) {
	res := analyze(t, pruningTrace(t), 0, 10)

	require.Equal(t, map[trace.SourceID][]SizeEntry{
		0: {{Message: 0, Size: 2}, {Message: 2, Size: 1}},
		1: {{Message: 1, Size: 2}},
	}, Sizes(res))
}

func TestSizeTimeline(t *testing.T) {
	tr := pruningTrace(t)
	res := analyze(t, tr, 0, 10)

	// starts at 2 + 2; only message 2 (sent at 2ms) shrinks a set
	require.Equal(t, []TimelinePoint{
		{Message: 0, Sent: testutil.At(0), TotalSize: 4},
		{Message: 1, Sent: testutil.At(1), TotalSize: 4},
		{Message: 2, Sent: testutil.At(2), TotalSize: 3},
	}, SizeTimeline(res, tr))
}

func TestWriteReadJSON(t *testing.T) {
	res := analyze(t, testutil.GenerateTestTrace(t), 10, 100)
	dir := t.TempDir()

	for _, name := range []string{"sets.json", "sets.json.zst"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteJSON(path, res))

		var decoded metric.Result
		require.NoError(t, ReadJSON(path, &decoded))
		require.Equal(t, res.Window, decoded.Window)
		require.Equal(t, len(res.Sources), len(decoded.Sources))
		require.Equal(t, res.Sources[3], decoded.Sources[3])
	}

	require.Equal(t, 10*time.Millisecond, res.Window.Min)
}
