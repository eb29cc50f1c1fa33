package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRunCmd(c *cli) *cobra.Command {
	var patientID, query string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline for one patient and query",
		RunE: func(cmd *cobra.Command, args []string) error {
			if patientID == "" || query == "" {
				return fmt.Errorf("--patient and --query are required")
			}
			started := time.Now()
			st, err := c.app.Orchestrator.Run(cmd.Context(), patientID, query)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printRun(cmd.OutOrStdout(), "", st, time.Since(started))
			return nil
		},
	}
	cmd.Flags().StringVar(&patientID, "patient", "", "patient id")
	cmd.Flags().StringVar(&query, "query", "", "clinical query")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the final state as JSON")
	return cmd
}
