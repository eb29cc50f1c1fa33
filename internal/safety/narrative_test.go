package safety

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var ckdWarning = Warning{
	Kind:      ConditionContraindication,
	Drug:      "metformin",
	Condition: "Chronic Kidney Disease",
	Reason:    "Risk of lactic acidosis in patients with impaired renal function.",
}

func TestParseAssessment(t *testing.T) {
	a := ParseAssessment(`**SAFETY STATUS:** Warning
CONFIDENCE: 88%
ANALYSIS: eGFR of 28 limits metformin.
RECOMMENDATIONS: Switch to a DPP-4 inhibitor.`)

	assert.Equal(t, StatusWarning, a.Status)
	assert.Equal(t, 88, a.Confidence)
	assert.True(t, strings.HasPrefix(a.Text, "**SAFETY STATUS:**"))

	a = ParseAssessment("Looks fine to me.")
	assert.Equal(t, Status(""), a.Status)
	assert.Zero(t, a.Confidence)
}

func TestComposeWithWarningsKeepsRuleFindingsFirst(t *testing.T) {
	res := Result{Warnings: []Warning{ckdWarning}}
	a := ParseAssessment("SAFETY STATUS: SAFE\nCONFIDENCE: 97%\nANALYSIS: fine.")

	r := Compose(res, &a)

	assert.False(t, r.IsSafe)
	assert.True(t, r.ModelAssessed)
	assert.Equal(t, StatusWarning, r.Status, "model must not downgrade rule findings")
	assert.Equal(t, 97, r.Confidence)
	assert.True(t, strings.HasPrefix(r.Narrative, WarningsHeader))
	ruleAt := strings.Index(r.Narrative, ckdWarning.String())
	modelAt := strings.Index(r.Narrative, "SAFETY STATUS: SAFE")
	assert.GreaterOrEqual(t, ruleAt, 0)
	assert.Greater(t, modelAt, ruleAt)
}

func TestComposeSafeWithModel(t *testing.T) {
	a := ParseAssessment("SAFETY STATUS: CRITICAL\nCONFIDENCE: 72%")

	r := Compose(Result{Warnings: []Warning{}, IsSafe: true}, &a)

	assert.True(t, r.IsSafe, "model status never flips IsSafe")
	assert.Equal(t, StatusCritical, r.Status)
	assert.True(t, strings.HasPrefix(r.Narrative, PassMarker))
	assert.Contains(t, r.Narrative, "SAFETY STATUS: CRITICAL")
}

func TestComposeWithoutModel(t *testing.T) {
	r := Compose(Result{Warnings: []Warning{}, IsSafe: true}, nil)
	assert.True(t, r.IsSafe)
	assert.False(t, r.ModelAssessed)
	assert.Equal(t, StatusSafe, r.Status)
	assert.Equal(t, "SAFETY CHECK PASSED: No contraindications found against patient profile.", r.Narrative)

	allergy := Warning{Kind: AllergyConflict, Drug: "ibuprofen"}
	r = Compose(Result{Warnings: []Warning{allergy, ckdWarning}}, nil)
	assert.False(t, r.IsSafe)
	assert.Equal(t, StatusCritical, r.Status)
	assert.Equal(t, WarningsHeader+"\n- CRITICAL: Patient is allergic to IBUPROFEN.\n- "+ckdWarning.String(), r.Narrative)
}

func TestNarrativePromptEmbedsFindings(t *testing.T) {
	p := profile([]string{"Chronic Kidney Disease"}, nil, nil)

	prompt := NarrativePrompt("Metformin 500mg", p, Result{Warnings: []Warning{ckdWarning}}, []string{"rxnav: none"})
	assert.Contains(t, prompt, "PROPOSED TREATMENT PLAN:\nMetformin 500mg")
	assert.Contains(t, prompt, ckdWarning.String())
	assert.Contains(t, prompt, "EXTERNAL INTERACTION DATA:\n- rxnav: none")
	assert.Contains(t, prompt, "- Known Allergies: None")

	prompt = NarrativePrompt("Paracetamol", p, Result{Warnings: []Warning{}, IsSafe: true}, nil)
	assert.Contains(t, prompt, noRuleFindings)
	assert.NotContains(t, prompt, "EXTERNAL INTERACTION DATA")
}

func TestWorse(t *testing.T) {
	assert.Equal(t, StatusCritical, Worse(StatusWarning, StatusCritical))
	assert.Equal(t, StatusWarning, Worse(StatusWarning, ""))
	assert.Equal(t, StatusSafe, Worse(StatusSafe, StatusSafe))
}
