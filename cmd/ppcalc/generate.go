package main

import (
	"fmt"
	"strings"

	"github.com/flashbots/ppcalc/cmd/common"
	"github.com/flashbots/ppcalc/generator"
	"github.com/flashbots/ppcalc/report"
	"github.com/flashbots/ppcalc/trace"
	"github.com/spf13/cobra"
)

type generateFlags struct {
	gen          generator.Config
	reuseSources string
	writeSources string
}

func newGenerateCmd(a *app) *cobra.Command {
	f := &generateFlags{gen: common.DefaultConfig().Generator}

	cmd := &cobra.Command{
		Use:   "generate [flags] OUTPUT_FILE",
		Short: "Simulate a network and write its trace",
		Long: `Simulates sources sending messages to destinations through an anonymous
communication network and writes the observed trace as CSV. Distributions
are given as constant:VALUE, uniform:MIN:MAX or normal:MEAN:DEV, all times in
milliseconds. Output files ending in .zst are compressed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, a, f, args[0])
		},
	}

	fl := cmd.Flags()
	fl.Uint64VarP(&f.gen.Sources, "sources", "s", f.gen.Sources, "Number of sources")
	fl.Uint64VarP(&f.gen.Destinations, "destinations", "d", f.gen.Destinations, "Number of destinations")
	fl.Var(&selectionValue{&f.gen.Selection}, "destination-selection", "How sources pick their destination")
	fl.Var(&distributionValue{&f.gen.SourceIMD}, "source-imd", "Inter-message delay of a source")
	fl.Var(&distributionValue{&f.gen.SourceWait}, "source-wait", "Delay before the first message of a source")
	fl.Var(&distributionValue{&f.gen.NumMessages}, "num-messages", "Messages sent per source")
	fl.Var(&distributionValue{&f.gen.NetworkDelay}, "network-delay", "Time a message spends in the network")
	fl.Uint64Var(&f.gen.Seed, "seed", 0, "Random seed, 0 picks one")
	fl.StringVar(&f.reuseSources, "reuse-sources", "", "Take the send times from an existing trace or a --write-sources JSON `FILE`")
	fl.StringVar(&f.writeSources, "write-sources", "", "Also write the simulated send times as JSON to `FILE`")

	return cmd
}

// mergeGeneratorFlags applies explicitly set flags on top of the
// configured generator.
func mergeGeneratorFlags(cmd *cobra.Command, base generator.Config, f *generateFlags) generator.Config {
	cfg := base
	changed := cmd.Flags().Changed
	if changed("sources") {
		cfg.Sources = f.gen.Sources
	}
	if changed("destinations") {
		cfg.Destinations = f.gen.Destinations
	}
	if changed("destination-selection") {
		cfg.Selection = f.gen.Selection
	}
	if changed("source-imd") {
		cfg.SourceIMD = f.gen.SourceIMD
	}
	if changed("source-wait") {
		cfg.SourceWait = f.gen.SourceWait
	}
	if changed("num-messages") {
		cfg.NumMessages = f.gen.NumMessages
	}
	if changed("network-delay") {
		cfg.NetworkDelay = f.gen.NetworkDelay
	}
	if changed("seed") {
		cfg.Seed = f.gen.Seed
	}
	return cfg
}

func runGenerate(cmd *cobra.Command, a *app, f *generateFlags, output string) error {
	cfg := mergeGeneratorFlags(cmd, a.cfg.Generator, f)

	if f.reuseSources != "" {
		streams, err := loadSources(f.reuseSources)
		if err != nil {
			return err
		}
		cfg.ReuseSources = streams
	}

	tr, err := generator.Generate(cmd.Context(), &cfg, a.log)
	if err != nil {
		return err
	}

	if err := tr.WriteFile(output); err != nil {
		return err
	}
	if f.writeSources != "" {
		if err := report.WriteJSON(f.writeSources, trace.SourcesFromTrace(tr)); err != nil {
			return err
		}
	}

	a.log.Info("trace generated",
		"output", output,
		"messages", tr.Len(),
		"sources", tr.NumSources(),
		"destinations", len(tr.Destinations()),
		"digest", tr.Digest(),
	)
	return nil
}

// loadSources reads send times from a sources JSON file (.json or .json.zst)
// or from the source side of a trace.
func loadSources(path string) ([]trace.SourceStream, error) {
	if strings.HasSuffix(strings.TrimSuffix(path, ".zst"), ".json") {
		var streams []trace.SourceStream
		if err := report.ReadJSON(path, &streams); err != nil {
			return nil, err
		}
		return streams, nil
	}

	b, err := trace.LoadFile(path)
	if err != nil {
		return nil, err
	}
	tr, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return trace.SourcesFromTrace(tr), nil
}
