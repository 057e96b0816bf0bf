package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flashbots/ppcalc/testcase"
	"github.com/spf13/cobra"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify DIR",
		Short: "Recompute stored test cases",
		Long: `Recomputes the relationship anonymity sets of a test case written by
"analyze --generate-testcase" and compares them with the stored ones. If DIR
holds no trace itself, every test case directory below it is verified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, a, args[0])
		},
	}
}

func runVerify(cmd *cobra.Command, a *app, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, testcase.TraceFile)); err == nil {
		c, err := testcase.Load(dir)
		if err != nil {
			return err
		}
		if err := c.Verify(cmd.Context()); err != nil {
			return fmt.Errorf("%s: %w", dir, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok   %s\n", dir)
		return nil
	}

	results, err := testcase.VerifyAll(cmd.Context(), dir)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no test cases found in %s", dir)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", r.Dir, r.Err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok   %s (%s)\n", r.Dir, r.Duration)
	}
	a.log.Debug("test cases verified", "total", len(results), "failed", failed)

	if failed > 0 {
		return fmt.Errorf("%d of %d test cases failed", failed, len(results))
	}
	return nil
}
