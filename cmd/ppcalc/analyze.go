package main

import (
	"encoding/json"
	"fmt"

	"github.com/flashbots/ppcalc/metric"
	"github.com/flashbots/ppcalc/report"
	"github.com/flashbots/ppcalc/store"
	"github.com/flashbots/ppcalc/testcase"
	"github.com/flashbots/ppcalc/trace"
	"github.com/spf13/cobra"
)

type analyzeFlags struct {
	minWindow    int64
	maxWindow    int64
	output       string
	sizesOnly    bool
	userAnonsets string
	testcase     string
	timeline     string
	storeDSN     string
	fix          bool
	format       string
}

func newAnalyzeCmd(a *app) *cobra.Command {
	f := &analyzeFlags{}

	cmd := &cobra.Command{
		Use:   "analyze [flags] TRACE_FILE",
		Short: "Compute relationship anonymity sets of a trace",
		Long: `Runs Progressive Pruning over a network trace. The delay window bounds the
network delay an observer assumes, both ends in milliseconds and inclusive.
A summary is printed to stdout; the flags select further outputs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, a, f, args[0])
		},
	}

	fl := cmd.Flags()
	fl.Int64Var(&f.minWindow, "min-window", 0, "Minimum network delay in ms (default from config)")
	fl.Int64Var(&f.maxWindow, "max-window", 0, "Maximum network delay in ms (default from config)")
	fl.StringVarP(&f.output, "output", "o", "", "Write the relationship anonymity sets as JSON to `OUT_FILE`")
	fl.BoolVar(&f.sizesOnly, "sizes-only", false, "Only write set sizes to the output file")
	fl.StringVar(&f.userAnonsets, "output-user-anonsets", "", "Write the per-source deanonymization report to `FILE`")
	fl.StringVar(&f.testcase, "generate-testcase", "", "Store trace, window and sets as a test case in `DIR`")
	fl.StringVar(&f.timeline, "timeline", "", "Write the total set size after every message to `FILE`")
	fl.StringVar(&f.storeDSN, "store-dsn", "", "Persist the run in the PostgreSQL database at `DSN`")
	fl.BoolVar(&f.fix, "fix", false, "Sort the trace by arrival and renumber messages before analysis")
	fl.StringVar(&f.format, "format", "json", "Summary output format: json or table")

	cmd.MarkFlagsMutuallyExclusive("sizes-only", "generate-testcase")
	cmd.MarkFlagsMutuallyExclusive("sizes-only", "output-user-anonsets")

	return cmd
}

func runAnalyze(cmd *cobra.Command, a *app, f *analyzeFlags, input string) error {
	ctx := cmd.Context()

	minMs, maxMs := a.cfg.Analysis.MinWindowMs, a.cfg.Analysis.MaxWindowMs
	if cmd.Flags().Changed("min-window") {
		minMs = f.minWindow
	}
	if cmd.Flags().Changed("max-window") {
		maxMs = f.maxWindow
	}
	if f.format != "json" && f.format != "table" {
		return fmt.Errorf("invalid format %q", f.format)
	}
	window, err := metric.NewWindow(minMs, maxMs)
	if err != nil {
		return err
	}

	b, err := trace.LoadFile(input)
	if err != nil {
		return err
	}
	if f.fix {
		b.Fix()
	}
	tr, err := b.Build()
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	a.log.Debug("trace loaded", "file", input, "messages", tr.Len(), "sources", tr.NumSources())

	res, err := metric.RelationshipAnonymity(ctx, tr, window, &metric.Options{
		Workers: a.cfg.Analysis.Workers,
		Log:     a.log,
	})
	if err != nil {
		return err
	}

	entries := report.Deanonymization(res, tr)
	summary := report.Summarize(res, tr, entries)

	if f.output != "" {
		var v any = res
		if f.sizesOnly {
			v = report.Sizes(res)
		}
		if err := report.WriteJSON(f.output, v); err != nil {
			return err
		}
	}
	if f.userAnonsets != "" {
		if err := report.WriteJSON(f.userAnonsets, entries); err != nil {
			return err
		}
	}
	if f.timeline != "" {
		if err := report.WriteJSON(f.timeline, report.SizeTimeline(res, tr)); err != nil {
			return err
		}
	}
	if f.testcase != "" {
		if err := testcase.Write(f.testcase, tr, window, res); err != nil {
			return fmt.Errorf("writing test case: %w", err)
		}
		a.log.Info("test case written", "dir", f.testcase)
	}
	if f.storeDSN != "" {
		pg := a.cfg.PostgresStoreConfig()
		pg.DSN = f.storeDSN
		st, err := store.NewPostgresStore(ctx, pg, a.log)
		if err != nil {
			return err
		}
		defer st.Close()

		run := store.NewRun(tr, res, summary.Deanonymized)
		if err := st.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		a.log.Info("run stored", "id", run.ID)
	}

	if summary.IncorrectlyPruned > 0 {
		a.log.Warn("true destination pruned, the window does not cover the real delays",
			"sources", summary.IncorrectlyPruned)
	}

	if f.format == "table" {
		report.WriteTable(cmd.OutOrStdout(), summary, entries)
		return nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
