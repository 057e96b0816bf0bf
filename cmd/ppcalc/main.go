// Command ppcalc quantifies the anonymity of anonymous communication
// networks with Progressive Pruning.
//
// # Commands
//
// generate: Simulate sources sending through an ACN and write the trace.
//
//	ppcalc generate -s 100 -d 10 --destination-selection uniform \
//	    --source-imd normal:1000:100 --source-wait uniform:0:1000 \
//	    --num-messages constant:10 --network-delay uniform:50:500 trace.csv.zst
//
// analyze: Compute relationship anonymity sets of a trace.
//
//	ppcalc analyze --min-window 50 --max-window 500 -o sets.json.zst trace.csv.zst
//
// verify: Recompute a stored test case.
//
//	ppcalc verify testcase/testdata/simple_test_1
//
// serve: Run the HTTP analysis service.
//
//	ppcalc serve --config ppcalc.yaml --addr :8080 --metrics-addr :9090
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flashbots/ppcalc/cmd/common"
	ppcommon "github.com/flashbots/ppcalc/common"
	"github.com/spf13/cobra"
)

// app carries state shared by all subcommands once the persistent flags
// are processed.
type app struct {
	configPath string
	logLevel   string
	logJSON    bool

	cfg *common.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           ppcommon.PackageName,
		Short:         "Progressive Pruning anonymity calculator",
		Version:       ppcommon.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	cmd.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "Log in JSON format")

	cmd.AddCommand(
		newGenerateCmd(a),
		newAnalyzeCmd(a),
		newVerifyCmd(a),
		newServeCmd(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := common.LoadConfiguration(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-json") {
		cfg.LogJSON = a.logJSON
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := common.SetupLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		common.Fatal(err)
	}
}
