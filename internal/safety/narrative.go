package safety

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"clinical-decision-agent/internal/patient"
)

const (
	PassMarker     = "RULE-BASED CHECKS: PASSED"
	WarningsHeader = "SAFETY WARNINGS DETECTED:"
	fallbackPass   = "SAFETY CHECK PASSED: No contraindications found against patient profile."
	noRuleFindings = "No contraindications detected by rule-based system"
)

// SystemPrompt frames the model as the final safety validator.
const SystemPrompt = "You are a medical safety AI trained on Indian pharmacology guidelines and ICMR protocols. Be conservative and flag any potential safety concerns."

var (
	statusPattern     = regexp.MustCompile(`(?i)SAFETY\s+STATUS\W*(SAFE|WARNING|CRITICAL)`)
	confidencePattern = regexp.MustCompile(`(?i)CONFIDENCE\W*(\d{1,3})\s*%`)
)

// Assessment is the model's free-text safety narrative plus the status and
// confidence it reported, when they could be parsed.
type Assessment struct {
	Text       string
	Status     Status
	Confidence int
}

// ParseAssessment extracts the status token and confidence percentage from
// a narrative. Missing or malformed fields are left zero.
func ParseAssessment(text string) Assessment {
	a := Assessment{Text: strings.TrimSpace(text)}
	if m := statusPattern.FindStringSubmatch(text); m != nil {
		a.Status = Status(strings.ToUpper(m[1]))
	}
	if m := confidencePattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n <= 100 {
			a.Confidence = n
		}
	}
	return a
}

// Report is the merged output of the safety stage.
type Report struct {
	Warnings   []Warning `json:"warnings"`
	IsSafe     bool      `json:"is_safe"`
	Status     Status    `json:"status"`
	Confidence int       `json:"confidence,omitempty"`
	Narrative  string    `json:"narrative"`
	// ModelAssessed is false when the narrative came from the rules alone.
	ModelAssessed bool `json:"model_assessed"`
}

// Compose merges the rule result with the model assessment. A nil
// assessment means the model call failed. Rule warnings are always listed
// first and IsSafe always comes from the rules; the model can raise the
// status but never lower it below what the rules found.
func Compose(res Result, a *Assessment) Report {
	r := Report{
		Warnings: res.Warnings,
		IsSafe:   res.IsSafe,
		Status:   statusFloor(res.Warnings),
	}

	if a == nil {
		if res.IsSafe {
			r.Narrative = fallbackPass
		} else {
			r.Narrative = WarningsHeader + "\n" + bulletList(res.Warnings, "- ")
		}
		return r
	}

	r.ModelAssessed = true
	r.Status = Worse(r.Status, a.Status)
	r.Confidence = a.Confidence

	var b strings.Builder
	if res.IsSafe {
		b.WriteString(PassMarker)
		b.WriteString("\n\nAI SAFETY ANALYSIS:\n")
	} else {
		b.WriteString(WarningsHeader)
		b.WriteString("\n\nRULE-BASED CHECKS:\n")
		b.WriteString(bulletList(res.Warnings, "  • "))
		b.WriteString("\n\nAI DEEP ANALYSIS:\n")
	}
	b.WriteString(a.Text)
	r.Narrative = b.String()
	return r
}

func bulletList(warnings []Warning, bullet string) string {
	lines := make([]string, 0, len(warnings))
	for _, w := range warnings {
		lines = append(lines, bullet+w.String())
	}
	return strings.Join(lines, "\n")
}

// NarrativePrompt builds the user prompt for the model safety review. The
// rule findings are embedded verbatim; external holds optional interaction
// notes from a secondary source.
func NarrativePrompt(proposed string, p *patient.Profile, res Result, external []string) string {
	checks := noRuleFindings
	if !res.IsSafe {
		lines := make([]string, 0, len(res.Warnings))
		for _, w := range res.Warnings {
			lines = append(lines, w.String())
		}
		checks = strings.Join(lines, "\n")
	}

	var b strings.Builder
	fmt.Fprintf(&b, `You are an expert clinical pharmacology AI safety validator for Indian hospitals, trained on ICMR protocols and Indian drug safety standards.

PROPOSED TREATMENT PLAN:
%s

COMPLETE PATIENT PROFILE:
- Age: %s years | Gender: %s
- Medical Conditions: %s
- Current Medications: %s
- Known Allergies: %s
- Laboratory Values: %s
- Lab Summary: %s
- Recent Lab Report: %s

AUTOMATED SAFETY CHECKS ALREADY PERFORMED:
%s
`,
		proposed,
		p.AgeText(), p.Gender,
		patient.JoinOr(p.Conditions, "None"),
		patient.JoinOr(p.Medications, "None"),
		patient.JoinOr(p.Allergies, "None"),
		p.VitalsText(),
		p.LabFlags,
		p.RecentLabs,
		checks,
	)

	if len(external) > 0 {
		b.WriteString("\nEXTERNAL INTERACTION DATA:\n")
		for _, note := range external {
			b.WriteString("- " + note + "\n")
		}
	}

	b.WriteString(`
YOUR TASK AS FINAL SAFETY VALIDATOR:
1. Cross-reference proposed medications against the patient's lab values (creatinine, eGFR, liver function).
2. Validate dosage for the patient's age and organ function.
3. Check for drug-drug interactions with current medications.
4. Verify there are no allergy conflicts.
5. Assess whether renal or hepatic dose adjustment is needed.

CONFIDENCE SCORING GUIDANCE:
- 95-100%: All data available, no concerns, standard dosing appropriate
- 85-94%: Minor precautions needed but treatment is safe
- 70-84%: Moderate concerns, dosage adjustment recommended
- Below 70%: Significant safety concerns, alternative treatment suggested

OUTPUT FORMAT:
SAFETY STATUS: [SAFE/WARNING/CRITICAL]
CONFIDENCE: [percentage]
ANALYSIS: [3-4 sentences referencing lab values and clinical rationale]
RECOMMENDATIONS: [Dosage adjustments OR confirmation that the treatment is safe as proposed]`)

	return b.String()
}
