package patient

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

const (
	UnknownGender = "unknown"
	NoRecentLabs  = "No recent labs"
)

// Profile is the patient summary handed to the research and safety stages.
type Profile struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name,omitempty"`
	Age         int            `json:"age,omitempty"`
	Gender      string         `json:"gender"`
	Conditions  []string       `json:"conditions"`
	Medications []string       `json:"medications"`
	Allergies   []string       `json:"allergies"`
	Vitals      map[string]any `json:"vitals,omitempty"`
	RecentLabs  string         `json:"recent_labs,omitempty"`
	LabFlags    string         `json:"lab_flags,omitempty"`
}

// Empty returns the profile used when a patient cannot be resolved.
func Empty(id string) *Profile {
	p := &Profile{ID: id}
	p.Normalize()
	return p
}

// Normalize fills defaults so downstream code never checks for nil lists,
// and derives LabFlags from the vitals.
func (p *Profile) Normalize() {
	if p.Conditions == nil {
		p.Conditions = []string{}
	}
	if p.Medications == nil {
		p.Medications = []string{}
	}
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	if strings.TrimSpace(p.Gender) == "" {
		p.Gender = UnknownGender
	}
	if strings.TrimSpace(p.RecentLabs) == "" {
		p.RecentLabs = NoRecentLabs
	}
	if p.Vitals == nil {
		p.Vitals = map[string]any{}
	}
	p.LabFlags = fmt.Sprintf("Creatinine: %s, eGFR: %s", p.vital("creatinine"), p.vital("eGFR"))
}

func (p *Profile) vital(key string) string {
	if v, ok := p.Vitals[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return "N/A"
}

// AgeText renders the age for prompts, "Unknown" when not recorded.
func (p *Profile) AgeText() string {
	if p.Age <= 0 {
		return "Unknown"
	}
	return fmt.Sprint(p.Age)
}

// VitalsText renders vitals as "key: value" pairs sorted by key.
func (p *Profile) VitalsText() string {
	if len(p.Vitals) == 0 {
		return "None recorded"
	}
	parts := make([]string, 0, len(p.Vitals))
	for _, k := range slices.Sorted(maps.Keys(p.Vitals)) {
		parts = append(parts, fmt.Sprintf("%s: %v", k, p.Vitals[k]))
	}
	return strings.Join(parts, ", ")
}

// JoinOr joins values with ", " or returns fallback for an empty list.
func JoinOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}
