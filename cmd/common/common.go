// Package common provides configuration and logging shared by the ppcalc
// commands.
//
// Configuration is read from a YAML file (see Config for the layout) and
// then overridden by command-line flags. Values not present in the file
// keep their DefaultConfig value.
package common

import (
	"fmt"
	"os"

	"github.com/flashbots/ppcalc/metric"
	"github.com/flashbots/ppcalc/store"
)

// LoadConfiguration returns DefaultConfig if configPath is empty and the
// parsed file otherwise.
func LoadConfiguration(configPath string) (*Config, error) {
	if configPath != "" {
		return LoadConfig(configPath)
	}
	return DefaultConfig(), nil
}

// AnalysisWindow returns the configured default delay window.
func (c *Config) AnalysisWindow() (metric.Window, error) {
	return metric.NewWindow(c.Analysis.MinWindowMs, c.Analysis.MaxWindowMs)
}

// HasPostgres reports whether runs should be persisted in PostgreSQL.
func (c *Config) HasPostgres() bool {
	return c.Postgres.DSN != "" || c.Postgres.Host != ""
}

// PostgresStoreConfig returns the connection settings with the password
// taken from PPCALC_POSTGRES_PASSWORD if the file leaves it empty.
func (c *Config) PostgresStoreConfig() *store.PostgresConfig {
	pg := c.Postgres
	if pg.Password == "" {
		pg.Password = os.Getenv("PPCALC_POSTGRES_PASSWORD")
	}
	return &pg
}

// Fatal prints an error the way all commands report failures.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
