package recommendation

import (
	"github.com/go-playground/validator/v10"

	"clinical-decision-agent/internal/patient"
	"clinical-decision-agent/internal/pipeline"
	"clinical-decision-agent/internal/safety"
)

var validate = validator.New()

type RecommendationRequest struct {
	PatientID string `json:"patient_id" validate:"required,max=64"`
	Query     string `json:"query" validate:"required,max=4000"`
}

func (r *RecommendationRequest) Validate() error {
	return validate.Struct(r)
}

// InlinePatient lets a caller run the rule check against a profile that is
// not in the record store.
type InlinePatient struct {
	Conditions  []string `json:"conditions" validate:"max=100,dive,max=200"`
	Medications []string `json:"medications" validate:"max=100,dive,max=200"`
	Allergies   []string `json:"allergies" validate:"max=100,dive,max=200"`
}

// SafetyCheckRequest names either a stored patient or an inline profile.
type SafetyCheckRequest struct {
	PatientID         string         `json:"patient_id" validate:"required_without=Patient,max=64"`
	Patient           *InlinePatient `json:"patient"`
	ProposedTreatment string         `json:"proposed_treatment" validate:"required,max=8000"`
}

func (r *SafetyCheckRequest) Validate() error {
	return validate.Struct(r)
}

func (r *SafetyCheckRequest) profile() *patient.Profile {
	p := &patient.Profile{
		ID:          r.PatientID,
		Conditions:  r.Patient.Conditions,
		Medications: r.Patient.Medications,
		Allergies:   r.Patient.Allergies,
	}
	p.Normalize()
	return p
}

type SafetyCheckResponse struct {
	Warnings []safety.Warning `json:"warnings"`
	Messages []string         `json:"messages"`
	IsSafe   bool             `json:"is_safe"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// RecommendationResponse is the JSON view of a finished run.
type RecommendationResponse struct {
	*pipeline.State
	AlertQueued bool `json:"alert_queued"`
}
