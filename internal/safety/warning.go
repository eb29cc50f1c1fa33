package safety

import (
	"fmt"
	"strings"
)

type Kind string

const (
	AllergyConflict           Kind = "allergy_conflict"
	ConditionContraindication Kind = "condition_contraindication"
	DrugInteraction           Kind = "drug_interaction"
)

// Warning is one rule-engine finding. Which fields are set depends on Kind:
// AllergyConflict carries Drug; ConditionContraindication carries Drug,
// Condition and Reason; DrugInteraction carries Drug and Medication.
type Warning struct {
	Kind       Kind   `json:"kind"`
	Drug       string `json:"drug"`
	Condition  string `json:"condition,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Medication string `json:"medication,omitempty"`
}

func (w Warning) String() string {
	drug := strings.ToUpper(w.Drug)
	switch w.Kind {
	case AllergyConflict:
		return fmt.Sprintf("CRITICAL: Patient is allergic to %s.", drug)
	case ConditionContraindication:
		return fmt.Sprintf("CONTRAINDICATION: %s + %s. %s", drug, w.Condition, w.Reason)
	case DrugInteraction:
		return fmt.Sprintf("INTERACTION: %s interacts with %s.", drug, w.Medication)
	default:
		return fmt.Sprintf("WARNING: %s", drug)
	}
}

// Status is the overall safety verdict.
type Status string

const (
	StatusSafe     Status = "SAFE"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
)

func (s Status) rank() int {
	switch s {
	case StatusCritical:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// Worse returns the more severe of two statuses.
func Worse(a, b Status) Status {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// statusFloor is the lowest status the rule findings allow.
func statusFloor(warnings []Warning) Status {
	floor := StatusSafe
	for _, w := range warnings {
		if w.Kind == AllergyConflict {
			return StatusCritical
		}
		floor = StatusWarning
	}
	return floor
}
