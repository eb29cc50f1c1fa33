package safety

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinical-decision-agent/internal/knowledge"
	"clinical-decision-agent/internal/patient"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	tables, err := knowledge.Default()
	require.NoError(t, err)
	return NewEngine(tables)
}

func profile(conditions, allergies, meds []string) *patient.Profile {
	p := &patient.Profile{Conditions: conditions, Allergies: allergies, Medications: meds}
	p.Normalize()
	return p
}

func TestCheckMetforminWithCKD(t *testing.T) {
	e := newTestEngine(t)

	res := e.Check("Start Metformin 500mg BD with meals.", profile([]string{"Chronic Kidney Disease"}, nil, nil))

	require.Len(t, res.Warnings, 1)
	assert.False(t, res.IsSafe)
	assert.Equal(t, Warning{
		Kind:      ConditionContraindication,
		Drug:      "metformin",
		Condition: "Chronic Kidney Disease",
		Reason:    "Risk of lactic acidosis in patients with impaired renal function.",
	}, res.Warnings[0])
	assert.Equal(t,
		"CONTRAINDICATION: METFORMIN + Chronic Kidney Disease. Risk of lactic acidosis in patients with impaired renal function.",
		res.Warnings[0].String())
}

func TestCheckSafeParacetamol(t *testing.T) {
	e := newTestEngine(t)

	res := e.Check("I recommend starting Paracetamol 500mg for the fever.",
		profile([]string{"Hypertension"}, []string{"Penicillin"}, []string{"Amlodipine"}))

	assert.Empty(t, res.Warnings)
	assert.NotNil(t, res.Warnings)
	assert.True(t, res.IsSafe)
}

func TestCheckWarfarinIbuprofenInteraction(t *testing.T) {
	e := newTestEngine(t)

	res := e.Check("Ibuprofen 400mg TDS for pain.", profile(nil, nil, []string{"Warfarin"}))

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, Warning{Kind: DrugInteraction, Drug: "ibuprofen", Medication: "Warfarin"}, res.Warnings[0])
	assert.False(t, res.IsSafe)

	res = e.Check("Continue warfarin 5mg.", profile(nil, nil, []string{"Ibuprofen 400mg"}))
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, Warning{Kind: DrugInteraction, Drug: "warfarin", Medication: "Ibuprofen 400mg"}, res.Warnings[0])
}

func TestCheckAllergyRegardlessOfConditions(t *testing.T) {
	e := newTestEngine(t)

	for rule := range e.tables.Contraindications() {
		t.Run(rule.Drug, func(t *testing.T) {
			res := e.Check("Give "+strings.ToUpper(rule.Drug)+" today.",
				profile(nil, []string{"Severe " + rule.Drug + " reaction"}, nil))
			require.Len(t, res.Warnings, 1)
			assert.Equal(t, AllergyConflict, res.Warnings[0].Kind)
			assert.Equal(t, rule.Drug, res.Warnings[0].Drug)
			assert.False(t, res.IsSafe)
		})
	}
}

func TestCheckEveryConflictingCondition(t *testing.T) {
	e := newTestEngine(t)

	for rule := range e.tables.Contraindications() {
		for _, cond := range rule.Conditions {
			t.Run(rule.Drug+"/"+cond, func(t *testing.T) {
				res := e.Check(rule.Drug+" 250mg", profile([]string{"History of " + strings.ToUpper(cond)}, nil, nil))
				require.NotEmpty(t, res.Warnings)
				assert.Equal(t, ConditionContraindication, res.Warnings[0].Kind)
				assert.False(t, res.IsSafe)
			})
		}
	}
}

func TestCheckCollectsAllWarningsInOrder(t *testing.T) {
	e := newTestEngine(t)
	p := profile(
		[]string{"Chronic Kidney Disease (Stage 3)", "Peptic Ulcer", "Asthma"},
		[]string{"Ibuprofen"},
		[]string{"Warfarin 5mg", "Aspirin 75mg"},
	)

	res := e.Check("Metformin 500mg and Ibuprofen 400mg", p)

	var got []string
	for _, w := range res.Warnings {
		got = append(got, string(w.Kind)+":"+w.Drug+":"+w.Condition+w.Medication)
	}
	assert.Equal(t, []string{
		"allergy_conflict:ibuprofen:",
		"condition_contraindication:metformin:Chronic Kidney Disease (Stage 3)",
		"condition_contraindication:ibuprofen:Chronic Kidney Disease (Stage 3)",
		"condition_contraindication:ibuprofen:Peptic Ulcer",
		"condition_contraindication:ibuprofen:Asthma",
		"drug_interaction:ibuprofen:Warfarin 5mg",
	}, got)
	assert.False(t, res.IsSafe)
}

func TestCheckIsDeterministic(t *testing.T) {
	e := newTestEngine(t)
	p := profile([]string{"CKD", "Arrhythmia"}, []string{"levofloxacin"}, []string{"Warfarin"})
	text := "Levofloxacin 750mg OD plus ibuprofen"

	first := e.Check(text, p)
	for range 5 {
		assert.Equal(t, first, e.Check(text, p))
	}
}

func TestCheckNilProfile(t *testing.T) {
	res := newTestEngine(t).Check("metformin", nil)
	assert.True(t, res.IsSafe)
	assert.Empty(t, res.Warnings)
}

func TestWarningsEmptyIffSafe(t *testing.T) {
	e := newTestEngine(t)
	texts := []string{"", "paracetamol", "metformin", "ibuprofen", "warfarin", "sildenafil", "levofloxacin"}
	p := profile([]string{"Kidney Disease"}, []string{"metformin"}, []string{"Isosorbide", "Warfarin"})

	for _, text := range texts {
		res := e.Check(text, p)
		assert.Equal(t, len(res.Warnings) == 0, res.IsSafe, text)
	}
}

func TestMentionedDrugs(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, []string{"metformin", "ibuprofen", "warfarin"},
		e.MentionedDrugs("Warfarin, Ibuprofen and METFORMIN"))
	assert.Empty(t, e.MentionedDrugs("paracetamol"))
}
