package pipeline

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"clinical-decision-agent/internal/patient"
	"clinical-decision-agent/internal/safety"
)

// Phase is the position of a run in the fixed stage sequence.
type Phase string

const (
	PhaseStart        Phase = "start"
	PhasePersonalized Phase = "personalized"
	PhaseResearched   Phase = "researched"
	PhaseValidated    Phase = "validated"
)

var (
	ErrFieldAlreadySet = errors.New("state field already set")
	ErrMissingOutput   = errors.New("stage produced no output")
)

type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Research is the output of the research stage.
type Research struct {
	Findings string `json:"findings"`
	Source   Source `json:"source"`
	// Topic names the fallback guidance bucket when Source is fallback.
	Topic           string `json:"topic,omitempty"`
	LiteratureFound bool   `json:"literature_found"`
}

// State is the baton passed through the stages. The inputs are set at
// creation; every other field is written by exactly one stage and never
// overwritten.
type State struct {
	RunID     uuid.UUID `json:"run_id"`
	PatientID string    `json:"patient_id"`
	UserQuery string    `json:"user_query"`
	Phase     Phase     `json:"phase"`

	Profile     *patient.Profile `json:"patient_profile,omitempty"`
	Research    *Research        `json:"research,omitempty"`
	Safety      *safety.Report   `json:"safety,omitempty"`
	SafetyCheck string           `json:"safety_check,omitempty"`
	FinalAnswer string           `json:"final_answer,omitempty"`
}

func newState(patientID, query string) *State {
	return &State{
		RunID:     uuid.New(),
		PatientID: patientID,
		UserQuery: query,
		Phase:     PhaseStart,
	}
}

// ResearchFindings is the proposed treatment text, empty before the
// research stage has run.
func (s *State) ResearchFindings() string {
	if s.Research == nil {
		return ""
	}
	return s.Research.Findings
}

// Update is a partial state produced by one stage. Zero fields are left
// untouched by the merge.
type Update struct {
	Profile     *patient.Profile
	Research    *Research
	Safety      *safety.Report
	SafetyCheck string
	FinalAnswer string
}

// apply merges u into s field by field. Either every field is merged or,
// when any of them is already set, nothing is.
func (s *State) apply(stage string, u Update) error {
	conflicts := []struct {
		field string
		clash bool
	}{
		{"patient_profile", u.Profile != nil && s.Profile != nil},
		{"research", u.Research != nil && s.Research != nil},
		{"safety", u.Safety != nil && s.Safety != nil},
		{"safety_check", u.SafetyCheck != "" && s.SafetyCheck != ""},
		{"final_answer", u.FinalAnswer != "" && s.FinalAnswer != ""},
	}
	for _, c := range conflicts {
		if c.clash {
			return fmt.Errorf("%w: stage %s wrote %s", ErrFieldAlreadySet, stage, c.field)
		}
	}

	if u.Profile != nil {
		s.Profile = u.Profile
	}
	if u.Research != nil {
		s.Research = u.Research
	}
	if u.Safety != nil {
		s.Safety = u.Safety
	}
	if u.SafetyCheck != "" {
		s.SafetyCheck = u.SafetyCheck
	}
	if u.FinalAnswer != "" {
		s.FinalAnswer = u.FinalAnswer
	}
	return nil
}
