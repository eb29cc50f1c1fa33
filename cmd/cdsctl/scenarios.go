package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"clinical-decision-agent/internal/pipeline"
)

type scenario struct {
	title     string
	patientID string
	query     string
}

var demoScenarios = []scenario{
	{
		title:     "CRITICAL SAFETY CHECK - Kidney Disease + Antibiotic Interaction",
		patientID: "P001",
		query:     "Patient has high fever and chest infection. Recommend antibiotics.",
	},
	{
		title:     "ROUTINE CASE - Migraine Management",
		patientID: "P002",
		query:     "Patient complains of severe headache and sensitivity to light. Recommend treatment.",
	},
	{
		title:     "CHRONIC DISEASE MANAGEMENT - Type 2 Diabetes",
		patientID: "P003",
		query:     "Patient's HbA1c is elevated at 7.2. Need medication to control blood sugar.",
	},
}

type scenarioResult struct {
	state   *pipeline.State
	elapsed time.Duration
}

func newScenariosCmd(c *cli) *cobra.Command {
	var parallel int

	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "Run the demo scenarios and print a console report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if parallel < 1 {
				return fmt.Errorf("--parallel must be at least 1")
			}
			results := make([]scenarioResult, len(demoScenarios))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(parallel)
			for i, sc := range demoScenarios {
				g.Go(func() error {
					started := time.Now()
					st, err := c.app.Orchestrator.Run(ctx, sc.patientID, sc.query)
					if err != nil {
						return fmt.Errorf("scenario %d: %w", i+1, err)
					}
					results[i] = scenarioResult{state: st, elapsed: time.Since(started)}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, sc := range demoScenarios {
				printRun(out, fmt.Sprintf("SCENARIO %d: %s", i+1, sc.title), results[i].state, results[i].elapsed)
			}
			fmt.Fprintln(out, heavyRule)
			fmt.Fprintf(out, "ALL %d SCENARIOS COMPLETED\n", len(demoScenarios))
			fmt.Fprintln(out, heavyRule)
			return nil
		},
	}
	cmd.Flags().IntVar(&parallel, "parallel", len(demoScenarios), "maximum scenarios run at once")
	return cmd
}
