package metric

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"github.com/flashbots/ppcalc/common"
	"github.com/flashbots/ppcalc/trace"
	"golang.org/x/sync/errgroup"
)

// SetEntry is the relationship anonymity set of a source after one of its
// messages.
type SetEntry struct {
	Message      trace.MessageID       `json:"message"`
	Destinations []trace.DestinationID `json:"destinations"`
}

// Result holds the relationship anonymity sets of every source, one entry
// per source message in send order.
type Result struct {
	Window  Window                        `json:"window"`
	Sources map[trace.SourceID][]SetEntry `json:"sources"`
}

// SourceIDs returns the analyzed sources in ascending order.
func (r *Result) SourceIDs() []trace.SourceID {
	ids := make([]trace.SourceID, 0, len(r.Sources))
	for id := range r.Sources {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ByMessage flattens the result into a map from source message to its
// relationship anonymity set.
func (r *Result) ByMessage() map[trace.MessageID][]trace.DestinationID {
	res := make(map[trace.MessageID][]trace.DestinationID)
	for _, entries := range r.Sources {
		for _, e := range entries {
			res[e.Message] = e.Destinations
		}
	}
	return res
}

// Final returns the last relationship anonymity set of a source.
func (r *Result) Final(source trace.SourceID) ([]trace.DestinationID, bool) {
	entries := r.Sources[source]
	if len(entries) == 0 {
		return nil, false
	}
	return entries[len(entries)-1].Destinations, true
}

// Options tunes RelationshipAnonymity. The zero value is usable.
type Options struct {
	// Workers bounds the number of sources pruned concurrently. Zero means
	// GOMAXPROCS.
	Workers int

	// Log receives phase timings at debug level. Nil means slog.Default().
	Log *slog.Logger
}

// RelationshipAnonymity runs Progressive Pruning over a trace and returns
// the relationship anonymity set of every source after each of its
// messages.
func RelationshipAnonymity(ctx context.Context, tr *trace.Trace, w Window, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	bench := common.NewBench(opts.Log, slog.LevelDebug)
	defer bench.Done()

	bench.Measure("message anonymity sets")
	deltas, err := MessageAnonymitySets(ctx, tr, w)
	if err != nil {
		return nil, err
	}

	bench.Measure("relationship anonymity sets")
	result := &Result{
		Window:  w,
		Sources: make(map[trace.SourceID][]SetEntry, len(deltas)),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for source, messages := range deltas {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sets := PruneSource(messages)

			mu.Lock()
			result.Sources[source] = sets
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// PruneSource computes the relationship anonymity sets of one source from
// its message anonymity set deltas, in the order given.
func PruneSource(messages []MessageDelta) []SetEntry {
	sets := make([]SetEntry, 0, len(messages))
	if len(messages) == 0 {
		return sets
	}

	// Before the first message every destination of its anonymity set is a
	// candidate with no messages left over, so the first set is taken as-is.
	candidates := make(map[trace.DestinationID]int, len(messages[0].Destinations))
	for dest := range messages[0].Destinations {
		candidates[dest] = 0
	}

	for _, m := range messages {
		next := make(map[trace.DestinationID]int, len(candidates))
		for dest, delta := range m.Destinations {
			left, ok := candidates[dest]
			if !ok {
				// pruned earlier, never comes back
				continue
			}

			count := delta.Added + min(left, delta.Overlap)
			if count == 0 {
				// the source sent more messages than dest could have
				// received from it
				continue
			}

			// one candidate message is used up by this source message
			next[dest] = count - 1
		}

		dests := make([]trace.DestinationID, 0, len(next))
		for dest := range next {
			dests = append(dests, dest)
		}
		slices.Sort(dests)

		sets = append(sets, SetEntry{Message: m.Message, Destinations: dests})
		candidates = next
	}

	return sets
}
