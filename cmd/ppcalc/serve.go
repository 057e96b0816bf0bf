package main

import (
	"github.com/flashbots/ppcalc/api/analysis"
	"github.com/flashbots/ppcalc/api/httpserver"
	"github.com/flashbots/ppcalc/cmd/common"
	ppcommon "github.com/flashbots/ppcalc/common"
	"github.com/flashbots/ppcalc/metrics"
	"github.com/flashbots/ppcalc/store"
	"github.com/spf13/cobra"
)

type serveFlags struct {
	addr        string
	metricsAddr string
	postgresDSN string
	pprof       bool
	cors        []string
}

func newServeCmd(a *app) *cobra.Command {
	f := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis service",
		Long: `Serves trace analysis and simulation over HTTP:

  POST   /api/v1/analyze?min_window=MS&max_window=MS[&sizes_only=true]
  POST   /api/v1/generate
  GET    /api/v1/runs
  GET    /api/v1/runs/{id}
  DELETE /api/v1/runs/{id}

Runs are kept in memory unless PostgreSQL is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			applyServeFlags(cmd, a.cfg, f)
			if err := a.cfg.ValidateServer(); err != nil {
				return err
			}
			return runServe(cmd, a)
		},
	}

	defaults := common.DefaultConfig().Server
	fl := cmd.Flags()
	fl.StringVar(&f.addr, "addr", defaults.HTTPAddr, "HTTP listen address")
	fl.StringVar(&f.metricsAddr, "metrics-addr", defaults.MetricsAddr, "Metrics listen address, empty disables it")
	fl.StringVar(&f.postgresDSN, "postgres-dsn", "", "Persist runs in the PostgreSQL database at `DSN`")
	fl.BoolVar(&f.pprof, "pprof", false, "Enable the pprof debugging API")
	fl.StringSliceVar(&f.cors, "cors-origin", nil, "Allowed CORS `ORIGIN` (repeatable)")

	return cmd
}

func applyServeFlags(cmd *cobra.Command, cfg *common.Config, f *serveFlags) {
	changed := cmd.Flags().Changed
	if changed("addr") || cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = f.addr
	}
	if changed("metrics-addr") {
		cfg.Server.MetricsAddr = f.metricsAddr
	}
	if f.postgresDSN != "" {
		cfg.Postgres.DSN = f.postgresDSN
	}
	if f.pprof {
		cfg.Server.EnablePprof = true
	}
	if len(f.cors) > 0 {
		cfg.Server.CORSOrigins = f.cors
	}
}

func runServe(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	cfg := a.cfg

	var st store.Store = store.NewMemoryStore()
	if cfg.HasPostgres() {
		pg, err := store.NewPostgresStore(ctx, cfg.PostgresStoreConfig(), a.log)
		if err != nil {
			return err
		}
		st = pg
		a.log.Info("persisting runs in PostgreSQL")
	}
	defer st.Close()

	m, err := metrics.New(ppcommon.PackageName, cfg.Server.MetricsAddr)
	if err != nil {
		return err
	}

	handler := analysis.NewHandler(st, m, a.log)
	handler.Workers = cfg.Analysis.Workers
	handler.MaxBodyBytes = cfg.Analysis.MaxBodyBytes
	handler.MaxGeneratedMessages = cfg.Analysis.MaxGeneratedMessages

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cfg.Server.HTTPAddr,
		MetricsAddr:              cfg.Server.MetricsAddr,
		Metrics:                  m,
		EnablePprof:              cfg.Server.EnablePprof,
		CORSOrigins:              cfg.Server.CORSOrigins,
		Log:                      a.log,
		DrainDuration:            cfg.Server.DrainDuration,
		GracefulShutdownDuration: cfg.Server.GracefulShutdownDuration,
		ReadTimeout:              cfg.Server.ReadTimeout,
		WriteTimeout:             cfg.Server.WriteTimeout,
	}, handler)
	if err != nil {
		return err
	}

	srv.RunInBackground()
	<-ctx.Done()
	a.log.Info("shutting down")
	srv.Shutdown()
	return nil
}
