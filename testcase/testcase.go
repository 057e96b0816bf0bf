// Package testcase stores analyzed traces together with their expected
// relationship anonymity sets so that later versions of the metric can be
// checked against them.
//
// A test case is a directory holding three files:
//
//	network_trace.csv  the trace
//	sras.json          {"<message id>": [destination ids...]}
//	parameters.json    {"min_delay": ms, "max_delay": ms}
package testcase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/flashbots/ppcalc/metric"
	"github.com/flashbots/ppcalc/report"
	"github.com/flashbots/ppcalc/trace"
)

const (
	TraceFile      = "network_trace.csv"
	SetsFile       = "sras.json"
	ParametersFile = "parameters.json"
)

var ErrMismatch = errors.New("relationship anonymity sets differ")

// Parameters is the delay window a test case was computed with.
type Parameters struct {
	MinDelay int64 `json:"min_delay"`
	MaxDelay int64 `json:"max_delay"`
}

// Window converts the parameters into a metric window.
func (p Parameters) Window() (metric.Window, error) {
	return metric.NewWindow(p.MinDelay, p.MaxDelay)
}

// Case is a loaded test case.
type Case struct {
	Dir        string
	Trace      *trace.Trace
	Parameters Parameters
	Expected   map[trace.MessageID][]trace.DestinationID
}

// Write stores tr, the window and the computed sets under dir, creating the
// directory if needed.
func Write(dir string, tr *trace.Trace, w metric.Window, res *metric.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := tr.WriteFile(filepath.Join(dir, TraceFile)); err != nil {
		return err
	}
	if err := report.WriteJSON(filepath.Join(dir, SetsFile), res.ByMessage()); err != nil {
		return err
	}
	params := Parameters{
		MinDelay: w.Min.Milliseconds(),
		MaxDelay: w.Max.Milliseconds(),
	}
	return report.WriteJSON(filepath.Join(dir, ParametersFile), params)
}

// Load reads and validates a test case directory.
func Load(dir string) (*Case, error) {
	b, err := trace.LoadFile(filepath.Join(dir, TraceFile))
	if err != nil {
		return nil, err
	}
	tr, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}

	c := &Case{Dir: dir, Trace: tr}
	if err := report.ReadJSON(filepath.Join(dir, ParametersFile), &c.Parameters); err != nil {
		return nil, err
	}
	if _, err := c.Parameters.Window(); err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	if err := report.ReadJSON(filepath.Join(dir, SetsFile), &c.Expected); err != nil {
		return nil, err
	}
	return c, nil
}

// Verify recomputes the sets and compares them with the stored ones. The
// first differing message, in message ID order, is reported.
func (c *Case) Verify(ctx context.Context) error {
	w, err := c.Parameters.Window()
	if err != nil {
		return err
	}
	res, err := metric.RelationshipAnonymity(ctx, c.Trace, w, nil)
	if err != nil {
		return err
	}
	got := res.ByMessage()

	for id := trace.MessageID(0); id <= c.Trace.MaxMessageID(); id++ {
		want, wantOK := c.Expected[id]
		have, haveOK := got[id]
		if wantOK != haveOK {
			return fmt.Errorf("%w: message %d: expected present=%t, got present=%t", ErrMismatch, id, wantOK, haveOK)
		}
		if !equalSets(want, have) {
			return fmt.Errorf("%w: message %d: expected %v, got %v", ErrMismatch, id, want, have)
		}
	}
	if len(c.Expected) != len(got) {
		return fmt.Errorf("%w: expected %d sets, got %d", ErrMismatch, len(c.Expected), len(got))
	}
	return nil
}

func equalSets(a, b []trace.DestinationID) bool {
	a = slices.Sorted(slices.Values(a))
	b = slices.Sorted(slices.Values(b))
	return slices.Equal(a, b)
}

// Result is the outcome of verifying one test case directory.
type Result struct {
	Dir      string
	Duration time.Duration
	Err      error
}

// VerifyAll verifies every test case directory below root. Directories
// without a trace file are skipped.
func VerifyAll(ctx context.Context, root string) ([]Result, error) {
	dirs, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		dir := filepath.Join(root, d.Name())
		if _, err := os.Stat(filepath.Join(dir, TraceFile)); err != nil {
			continue
		}

		start := time.Now()
		c, err := Load(dir)
		if err == nil {
			err = c.Verify(ctx)
		}
		results = append(results, Result{Dir: dir, Duration: time.Since(start), Err: err})

		if ctx.Err() != nil {
			return results, ctx.Err()
		}
	}
	return results, nil
}
