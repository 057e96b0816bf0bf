package report

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/flashbots/ppcalc/common"
	"github.com/flashbots/ppcalc/metric"
	"github.com/flashbots/ppcalc/trace"
	"github.com/samber/lo"
)

// DeanonymizationEntry summarizes the anonymity of one source at the end of
// a trace.
type DeanonymizationEntry struct {
	Source                trace.SourceID      `json:"source"`
	Destination           trace.DestinationID `json:"destination"`
	RemainingAnonymitySet int                 `json:"remaining_anonymity_set"`
	Messages              int                 `json:"messages"`
	// DeanonymizedAt is the 1-based number of the first message after which
	// only one destination remained, nil if the source stayed anonymous.
	DeanonymizedAt *int `json:"deanonymized_at"`
	// Correct reports whether the true destination is in the final set.
	Correct bool `json:"correct"`
}

// Deanonymization reports, for every source, the size of its final
// relationship anonymity set and the message at which it was deanonymized.
func Deanonymization(res *metric.Result, tr *trace.Trace) []DeanonymizationEntry {
	entries := make([]DeanonymizationEntry, 0, len(res.Sources))
	for _, source := range res.SourceIDs() {
		sets := res.Sources[source]
		if len(sets) == 0 {
			continue
		}
		last := sets[len(sets)-1]
		dest, ok := tr.Destination(last.Message)
		if !ok {
			continue
		}

		entry := DeanonymizationEntry{
			Source:                source,
			Destination:           dest,
			RemainingAnonymitySet: len(last.Destinations),
			Messages:              len(sets),
			Correct:               slices.Contains(last.Destinations, dest),
		}
		if entry.RemainingAnonymitySet == 1 {
			// sets only shrink, so the first singleton is the turning point
			idx := slices.IndexFunc(sets, func(s metric.SetEntry) bool { return len(s.Destinations) == 1 })
			at := idx + 1
			entry.DeanonymizedAt = &at
		}
		entries = append(entries, entry)
	}
	return entries
}

// SizeEntry is the size of a relationship anonymity set.
type SizeEntry struct {
	Message trace.MessageID `json:"message"`
	Size    int             `json:"size"`
}

// Sizes reduces a result to set sizes, which is considerably smaller for
// large traces.
func Sizes(res *metric.Result) map[trace.SourceID][]SizeEntry {
	return lo.MapValues(res.Sources, func(sets []metric.SetEntry, _ trace.SourceID) []SizeEntry {
		return lo.Map(sets, func(s metric.SetEntry, _ int) SizeEntry {
			return SizeEntry{Message: s.Message, Size: len(s.Destinations)}
		})
	})
}

// TimelinePoint is the total anonymity over all sources right after a
// source message was sent.
type TimelinePoint struct {
	Message   trace.MessageID `json:"message"`
	Sent      time.Time       `json:"sent"`
	TotalSize int             `json:"total_size"`
}

// SizeTimeline tracks the sum of all sources' current relationship anonymity
// set sizes, advancing message by message in send order. Before its first
// message a source counts with the size of its first set.
func SizeTimeline(res *metric.Result, tr *trace.Trace) []TimelinePoint {
	current := make(map[trace.SourceID]int, len(res.Sources))
	sizes := make(map[trace.MessageID]int)
	total := 0
	for source, sets := range res.Sources {
		if len(sets) == 0 {
			continue
		}
		current[source] = len(sets[0].Destinations)
		total += current[source]
		for _, s := range sets {
			sizes[s.Message] = len(s.Destinations)
		}
	}

	messages := lo.Keys(sizes)
	slices.SortFunc(messages, func(a, b trace.MessageID) int {
		ta, _ := tr.MessageSent(a)
		tb, _ := tr.MessageSent(b)
		if c := ta.Compare(tb); c != 0 {
			return c
		}
		return int(a) - int(b)
	})

	points := make([]TimelinePoint, 0, len(messages))
	for _, m := range messages {
		source, _ := tr.Source(m)
		total += sizes[m] - current[source]
		current[source] = sizes[m]

		sent, _ := tr.MessageSent(m)
		points = append(points, TimelinePoint{Message: m, Sent: sent, TotalSize: total})
	}
	return points
}

// Summary aggregates a result.
type Summary struct {
	Sources           int     `json:"sources"`
	Messages          int     `json:"messages"`
	Destinations      int     `json:"destinations"`
	Deanonymized      int     `json:"deanonymized"`
	MeanFinalSetSize  float64 `json:"mean_final_set_size"`
	MinWindowMs       int64   `json:"min_window_ms"`
	MaxWindowMs       int64   `json:"max_window_ms"`
	IncorrectlyPruned int     `json:"incorrectly_pruned"`
}

// Summarize computes a Summary from a deanonymization report.
func Summarize(res *metric.Result, tr *trace.Trace, entries []DeanonymizationEntry) Summary {
	s := Summary{
		Sources:      len(entries),
		Messages:     tr.Len(),
		Destinations: len(tr.Destinations()),
		MinWindowMs:  res.Window.Min.Milliseconds(),
		MaxWindowMs:  res.Window.Max.Milliseconds(),
	}
	if len(entries) == 0 {
		return s
	}

	s.Deanonymized = lo.CountBy(entries, func(e DeanonymizationEntry) bool { return e.DeanonymizedAt != nil })
	s.IncorrectlyPruned = lo.CountBy(entries, func(e DeanonymizationEntry) bool { return !e.Correct })
	s.MeanFinalSetSize = float64(lo.SumBy(entries, func(e DeanonymizationEntry) int { return e.RemainingAnonymitySet })) / float64(len(entries))
	return s
}

// WriteJSON writes v as indented JSON to path, zstd-compressed if the path
// ends in ".zst".
func WriteJSON(path string, v any) error {
	f, err := common.CreateFile(path)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(path string, v any) error {
	f, err := common.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
