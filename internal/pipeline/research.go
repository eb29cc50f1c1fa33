package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clinical-decision-agent/internal/agent"
	"clinical-decision-agent/internal/knowledge"
	"clinical-decision-agent/internal/patient"
)

const (
	// localeQualifier scopes literature search to Indian guidelines.
	localeQualifier    = " India guidelines treatment"
	literatureResults  = 3
	researchTemp       = 0.3
	researchMaxTokens  = 500
	researchSystemRole = "You are an expert Indian medical AI trained on ICMR guidelines. Provide evidence-based, India-specific treatment recommendations."
)

// LiteratureSearcher returns raw literature context for a query.
type LiteratureSearcher interface {
	Search(ctx context.Context, query string, maxResults int) (string, error)
}

// ResearchStage turns the query and profile into a treatment proposal.
// The model answer is preferred; when the completion call fails the
// keyword-routed guidance from the knowledge tables is used instead.
type ResearchStage struct {
	searcher  LiteratureSearcher
	completer agent.Completer
	tables    *knowledge.Tables
	model     string
	timeout   time.Duration
	logger    *zap.Logger
}

func NewResearchStage(
	searcher LiteratureSearcher,
	completer agent.Completer,
	tables *knowledge.Tables,
	model string,
	timeout time.Duration,
	logger *zap.Logger,
) *ResearchStage {
	return &ResearchStage{
		searcher:  searcher,
		completer: completer,
		tables:    tables,
		model:     model,
		timeout:   timeout,
		logger:    logger,
	}
}

func (s *ResearchStage) Name() string { return StageResearch }

func (s *ResearchStage) Run(ctx context.Context, st State) Update {
	log := s.logger.With(zap.String("stage", StageResearch), zap.String("patient_id", st.PatientID))
	profile := st.Profile
	if profile == nil {
		profile = patient.Empty(st.PatientID)
	}

	literature, err := s.search(ctx, st.UserQuery+localeQualifier)
	if err != nil {
		reason := classify(err)
		recordFallback(StageResearch, reason)
		log.Warn("literature search unavailable, continuing without context",
			zap.String("reason", string(reason)), zap.Error(err))
	}

	findings, err := s.complete(ctx, researchPrompt(st.UserQuery, profile, literature))
	if err != nil {
		reason := classify(err)
		recordFallback(StageResearch, reason)
		topic, text := s.tables.ResolveGuidance(st.UserQuery)
		log.Warn("completion failed, using fallback guidance",
			zap.String("reason", string(reason)), zap.String("topic", topic), zap.Error(err))
		return Update{Research: &Research{
			Findings:        text,
			Source:          SourceFallback,
			Topic:           topic,
			LiteratureFound: literature != "",
		}}
	}

	log.Info("clinical recommendation ready", zap.Bool("literature", literature != ""))
	return Update{Research: &Research{
		Findings:        findings,
		Source:          SourceModel,
		LiteratureFound: literature != "",
	}}
}

func (s *ResearchStage) search(ctx context.Context, query string) (string, error) {
	if s.searcher == nil {
		return "", errNotConfigured
	}
	callCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.searcher.Search(callCtx, query, literatureResults)
}

func (s *ResearchStage) complete(ctx context.Context, prompt string) (string, error) {
	if s.completer == nil {
		return "", errNotConfigured
	}
	callCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.completer.Complete(callCtx, agent.CompletionRequest{
		System:      researchSystemRole,
		User:        prompt,
		Model:       s.model,
		Temperature: researchTemp,
		MaxTokens:   researchMaxTokens,
	})
}

func researchPrompt(query string, p *patient.Profile, literature string) string {
	if literature == "" {
		literature = "Limited"
	}
	return fmt.Sprintf(`You are an expert clinical decision support AI for Indian healthcare, trained on ICMR guidelines and Indian pharmacology standards.

COMPLETE PATIENT PROFILE:
- Age: %s years | Gender: %s
- Medical Conditions: %s
- Current Medications: %s
- Known Allergies: %s
- Lab Values: %s
- Recent Lab Report: %s

CLINICAL QUERY: %s

RESEARCH DATA AVAILABLE:
- PubMed Results: %s
- ICMR Guidelines: Available for reference

YOUR TASK:
Provide a detailed, evidence-based treatment recommendation that:
1. References specific ICMR/Indian clinical guidelines
2. Lists 2-3 medications with exact dosages appropriate for THIS patient's age and conditions
3. Prioritizes Jan Aushadhi (generic) alternatives with approximate costs
4. Includes specific precautions based on the patient's lab values and comorbidities
5. Explains the clinical rationale briefly

OUTPUT FORMAT (150 words max):
**Clinical Recommendation:**
[Medication recommendations with dosages]

**Precautions:**
[Specific to this patient's profile]

**Evidence Basis:**
[ICMR guideline reference or clinical evidence]`,
		p.AgeText(), p.Gender,
		patient.JoinOr(p.Conditions, "general patient"),
		patient.JoinOr(p.Medications, "None"),
		patient.JoinOr(p.Allergies, "None"),
		p.VitalsText(),
		p.RecentLabs,
		query,
		literature,
	)
}
