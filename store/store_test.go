package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/flashbots/ppcalc/metric"
	"github.com/flashbots/ppcalc/testutil"
	"github.com/flashbots/ppcalc/trace"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testRun(t *testing.T) *Run {
	tr := testutil.GenerateTestTrace(t, testutil.WithSources(4), testutil.WithMessagesPerSource(5))
	w := metric.Window{Min: 10 * time.Millisecond, Max: 100 * time.Millisecond}
	res, err := metric.RelationshipAnonymity(context.Background(), tr, w, nil)
	require.NoError(t, err)
	return NewRun(tr, res, 2)
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	first := testRun(t)
	second := testRun(t)
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	require.NoError(t, s.SaveRun(ctx, first))
	require.NoError(t, s.SaveRun(ctx, second))

	got, err := s.GetRun(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, first, got)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, second.ID, runs[0].ID)
	require.Equal(t, first.ID, runs[1].ID)
	require.Nil(t, runs[0].Sets)

	// saving again replaces the run
	first.Deanonymized = 4
	require.NoError(t, s.SaveRun(ctx, first))
	got, err = s.GetRun(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, 4, got.Deanonymized)

	require.NoError(t, s.DeleteRun(ctx, first.ID))
	_, err = s.GetRun(ctx, first.ID)
	require.ErrorIs(t, err, ErrRunNotFound)
	require.ErrorIs(t, s.DeleteRun(ctx, first.ID), ErrRunNotFound)
	require.ErrorIs(t, s.DeleteRun(ctx, uuid.New()), ErrRunNotFound)

	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	s := NewMemoryStore()
	run := &Run{
		ID:          uuid.New(),
		TraceDigest: "digest",
		Sets: map[trace.SourceID][]metric.SetEntry{
			0: {{Message: 0, Destinations: []trace.DestinationID{0, 1}}},
			1: {{Message: 1, Destinations: []trace.DestinationID{1}}},
			2: {{Message: 2, Destinations: []trace.DestinationID{0}}},
		},
	}
	require.NoError(t, s.SaveRun(context.Background(), run))

	want := run.clone()

	run.TraceDigest = "changed"
	run.Sets[0][0].Destinations[0] = 99
	run.Sets[1] = nil
	got, err := s.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, want, got)

	got.Sets[0][0].Destinations[0] = 99
	delete(got.Sets, 2)
	again, err := s.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, want, again)
}

func TestNewRun(t *testing.T) {
	run := testRun(t)
	require.NotEqual(t, uuid.Nil, run.ID)
	require.Len(t, run.TraceDigest, 64)
	require.Equal(t, int64(10), run.MinWindow)
	require.Equal(t, int64(100), run.MaxWindow)
	require.Equal(t, 20, run.Messages)
	require.Equal(t, 4, run.Sources)
	require.Len(t, run.Sets, 4)
}

func TestPostgresConnectionString(t *testing.T) {
	cfg := &PostgresConfig{Host: "db", User: "ppcalc", Password: "secret", Database: "runs"}
	require.Equal(t, "host=db port=5432 user=ppcalc password=secret dbname=runs sslmode=disable", cfg.ConnectionString())

	cfg.Port = 6543
	cfg.SSLMode = "require"
	require.Equal(t, "host=db port=6543 user=ppcalc password=secret dbname=runs sslmode=require", cfg.ConnectionString())

	cfg.DSN = "postgres://localhost/runs"
	require.Equal(t, "postgres://localhost/runs", cfg.ConnectionString())
}

// Set PPCALC_TEST_POSTGRES_DSN to run against a real database.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("PPCALC_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PPCALC_TEST_POSTGRES_DSN not set")
	}

	s, err := NewPostgresStore(context.Background(), &PostgresConfig{DSN: dsn, ConnectAttempts: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	for _, r := range runs {
		require.NoError(t, s.DeleteRun(context.Background(), r.ID))
	}

	testStore(t, s)

	// one set row per source message
	large := &Run{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		Sets:      make(map[trace.SourceID][]metric.SetEntry),
	}
	for source := range 100 {
		entries := make([]metric.SetEntry, 1000)
		for i := range entries {
			entries[i] = metric.SetEntry{
				Message:      trace.MessageID(source*1000 + i),
				Destinations: []trace.DestinationID{trace.DestinationID(source % 7), 7},
			}
		}
		large.Sets[trace.SourceID(source)] = entries
	}
	large.Messages = 100_000
	large.Sources = 100

	require.NoError(t, s.SaveRun(context.Background(), large))
	got, err := s.GetRun(context.Background(), large.ID)
	require.NoError(t, err)
	require.Equal(t, large, got)
}
