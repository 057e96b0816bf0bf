package testcase

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

func TestLoadFixture(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "simple_test_1"))
	require.NoError(t, err)

	require.Equal(t, 3, c.Trace.Len())
	require.Equal(t, Parameters{MinDelay: 0, MaxDelay: 10}, c.Parameters)
	require.Equal(t, map[trace.MessageID][]trace.DestinationID{
		0: {0, 1},
		1: {0, 1},
		2: {0},
	}, c.Expected)

	require.NoError(t, c.Verify(context.Background()))
}

func TestVerifyReportsFirstMismatch(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "broken_sras"))
	require.NoError(t, err)

	err = c.Verify(context.Background())
	require.ErrorIs(t, err, ErrMismatch)
	require.ErrorContains(t, err, "message 2")
}

func TestWriteLoadVerify(t *testing.T) {
	tr := testutil.GenerateTestTrace(t, testutil.WithSources(8), testutil.WithSeed(3))
	w := metric.Window{Min: 10 * time.Millisecond, Max: 100 * time.Millisecond}

	res, err := metric.RelationshipAnonymity(context.Background(), tr, w, nil)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "case")
	require.NoError(t, Write(dir, tr, w, res))

	c, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, tr.Digest(), c.Trace.Digest())
	require.Equal(t, Parameters{MinDelay: 10, MaxDelay: 100}, c.Parameters)
	require.NoError(t, c.Verify(context.Background()))

	// no message arrives instantly, so every set becomes empty
	c.Parameters = Parameters{}
	require.ErrorIs(t, c.Verify(context.Background()), ErrMismatch)
}

func TestLoadMissingFiles(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestVerifyAll(t *testing.T) {
	results, err := VerifyAll(context.Background(), "testdata")
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.Equal(t, filepath.Join("testdata", "broken_sras"), results[0].Dir)
	require.ErrorIs(t, results[0].Err, ErrMismatch)
	require.Equal(t, filepath.Join("testdata", "simple_test_1"), results[1].Dir)
	require.NoError(t, results[1].Err)
}
