package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"clinical-decision-agent/internal/patient"
	"clinical-decision-agent/internal/pipeline"
)

var (
	heavyRule = strings.Repeat("=", 80)
	lightRule = strings.Repeat("-", 80)
)

func indent(text string) string {
	return "   " + strings.ReplaceAll(strings.TrimSpace(text), "\n", "\n   ")
}

// printRun writes the console report for one finished run.
func printRun(w io.Writer, title string, st *pipeline.State, elapsed time.Duration) {
	if title != "" {
		fmt.Fprintln(w, heavyRule)
		fmt.Fprintln(w, title)
	}
	fmt.Fprintln(w, heavyRule)
	fmt.Fprintf(w, "Patient: %s | Query: %s\n", st.PatientID, st.UserQuery)
	fmt.Fprintln(w, lightRule)

	p := st.Profile
	fmt.Fprintln(w, "PATIENT PROFILE:")
	name := p.Name
	if name == "" {
		name = "N/A"
	}
	fmt.Fprintf(w, "   Name: %s\n", name)
	fmt.Fprintf(w, "   Conditions: %s\n", patient.JoinOr(p.Conditions, "None"))
	fmt.Fprintf(w, "   Current Meds: %s\n", patient.JoinOr(p.Medications, "None"))
	fmt.Fprintf(w, "   Allergies: %s\n", patient.JoinOr(p.Allergies, "None"))
	fmt.Fprintln(w, lightRule)

	fmt.Fprintf(w, "RESEARCH FINDINGS (%s):\n", st.Research.Source)
	fmt.Fprintln(w, indent(st.Research.Findings))
	fmt.Fprintln(w, lightRule)

	fmt.Fprintf(w, "SAFETY VALIDATION (%s):\n", st.Safety.Status)
	fmt.Fprintln(w, indent(st.SafetyCheck))
	fmt.Fprintln(w, heavyRule)
	fmt.Fprintf(w, "Processing Time: %.2f seconds\n\n", elapsed.Seconds())
}
