package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clinical-decision-agent/internal/patient"
)

func newCheckCmd(c *cli) *cobra.Command {
	var patientID string
	var inline patient.Profile

	cmd := &cobra.Command{
		Use:   "check [proposed treatment]",
		Short: "Run only the rule-based safety check",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := &inline
			if patientID != "" {
				var err error
				p, err = c.app.Store.Lookup(cmd.Context(), patientID)
				if err != nil {
					return err
				}
			}
			p.Normalize()

			res := c.app.Engine.Check(strings.Join(args, " "), p)
			out := cmd.OutOrStdout()
			if res.IsSafe {
				fmt.Fprintln(out, "SAFE: no rule-based findings")
				return nil
			}
			for _, w := range res.Warnings {
				fmt.Fprintln(out, w.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&patientID, "patient", "", "look up a stored patient")
	cmd.Flags().StringSliceVar(&inline.Conditions, "condition", nil, "patient condition (repeatable)")
	cmd.Flags().StringSliceVar(&inline.Medications, "medication", nil, "current medication (repeatable)")
	cmd.Flags().StringSliceVar(&inline.Allergies, "allergy", nil, "known allergy (repeatable)")
	return cmd
}
