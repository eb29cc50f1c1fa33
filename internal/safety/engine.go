// Package safety screens a proposed treatment against a patient profile.
//
// The rule engine is a conservative substring screen over the static
// knowledge tables: a drug is "mentioned" when its name occurs anywhere in
// the lower-cased treatment text, and a patient condition, allergy or
// medication matches when it contains the relevant term. Over-warning is
// accepted; missing a known conflict is not.
package safety

import (
	"slices"
	"strings"

	"clinical-decision-agent/internal/knowledge"
	"clinical-decision-agent/internal/patient"
)

// Result is the rule engine verdict. IsSafe is true iff Warnings is empty.
type Result struct {
	Warnings []Warning `json:"warnings"`
	IsSafe   bool      `json:"is_safe"`
}

type Engine struct {
	tables *knowledge.Tables
}

func NewEngine(tables *knowledge.Tables) *Engine {
	return &Engine{tables: tables}
}

// Check runs the three rule passes in a fixed order: allergies, then
// condition contraindications, both over the contraindication index, then
// drug interactions over the interaction index. Warning order depends only
// on index order and patient list order, so identical input always yields
// identical output.
func (e *Engine) Check(proposed string, p *patient.Profile) Result {
	if p == nil {
		p = patient.Empty("")
	}
	text := strings.ToLower(proposed)
	warnings := []Warning{}

	for rule := range e.tables.Contraindications() {
		if !strings.Contains(text, rule.Drug) {
			continue
		}
		if anyContains(p.Allergies, rule.Drug) {
			warnings = append(warnings, Warning{Kind: AllergyConflict, Drug: rule.Drug})
		}
	}

	for rule := range e.tables.Contraindications() {
		if !strings.Contains(text, rule.Drug) {
			continue
		}
		for _, condition := range p.Conditions {
			if containsAny(condition, rule.Conditions) {
				warnings = append(warnings, Warning{
					Kind:      ConditionContraindication,
					Drug:      rule.Drug,
					Condition: condition,
					Reason:    rule.Reason,
				})
			}
		}
	}

	for rule := range e.tables.Interactions() {
		if !strings.Contains(text, rule.Drug) {
			continue
		}
		for _, med := range p.Medications {
			if containsAny(med, rule.InteractsWith) {
				warnings = append(warnings, Warning{Kind: DrugInteraction, Drug: rule.Drug, Medication: med})
			}
		}
	}

	return Result{Warnings: warnings, IsSafe: len(warnings) == 0}
}

// MentionedDrugs lists the indexed drugs named in the proposed text, in
// index order without duplicates.
func (e *Engine) MentionedDrugs(proposed string) []string {
	text := strings.ToLower(proposed)
	var drugs []string
	for rule := range e.tables.Contraindications() {
		if strings.Contains(text, rule.Drug) && !slices.Contains(drugs, rule.Drug) {
			drugs = append(drugs, rule.Drug)
		}
	}
	for rule := range e.tables.Interactions() {
		if strings.Contains(text, rule.Drug) && !slices.Contains(drugs, rule.Drug) {
			drugs = append(drugs, rule.Drug)
		}
	}
	return drugs
}

// anyContains reports whether some value contains term, ignoring case.
func anyContains(values []string, term string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

// containsAny reports whether value contains one of the lower-cased terms.
func containsAny(value string, terms []string) bool {
	v := strings.ToLower(value)
	for _, t := range terms {
		if strings.Contains(v, t) {
			return true
		}
	}
	return false
}
