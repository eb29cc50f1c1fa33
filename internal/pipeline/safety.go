package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clinical-decision-agent/internal/agent"
	"clinical-decision-agent/internal/patient"
	"clinical-decision-agent/internal/safety"
)

const (
	safetyTemp      = 0.1
	safetyMaxTokens = 400
	// maxNotesPerDrug caps the external interaction notes per drug.
	maxNotesPerDrug = 5
)

// InteractionSource is an optional secondary source of interaction data.
type InteractionSource interface {
	InteractionsFor(ctx context.Context, drug string) ([]agent.InteractionGroup, error)
}

// SafetyStage validates the research findings: the rule engine runs first
// and its warnings are final; the model narrative is merged on top when the
// completion call succeeds.
type SafetyStage struct {
	engine       *safety.Engine
	completer    agent.Completer
	interactions InteractionSource
	model        string
	timeout      time.Duration
	logger       *zap.Logger
}

// NewSafetyStage builds the stage. interactions may be nil.
func NewSafetyStage(
	engine *safety.Engine,
	completer agent.Completer,
	interactions InteractionSource,
	model string,
	timeout time.Duration,
	logger *zap.Logger,
) *SafetyStage {
	return &SafetyStage{
		engine:       engine,
		completer:    completer,
		interactions: interactions,
		model:        model,
		timeout:      timeout,
		logger:       logger,
	}
}

func (s *SafetyStage) Name() string { return StageSafety }

func (s *SafetyStage) Run(ctx context.Context, st State) Update {
	log := s.logger.With(zap.String("stage", StageSafety), zap.String("patient_id", st.PatientID))
	profile := st.Profile
	if profile == nil {
		profile = patient.Empty(st.PatientID)
	}
	proposed := st.ResearchFindings()

	res := s.engine.Check(proposed, profile)
	for _, w := range res.Warnings {
		safetyWarnings.WithLabelValues(string(w.Kind)).Inc()
	}

	external := s.enrich(ctx, log, proposed)

	var assessment *safety.Assessment
	text, err := s.complete(ctx, safety.NarrativePrompt(proposed, profile, res, external))
	if err != nil {
		reason := classify(err)
		recordFallback(StageSafety, reason)
		log.Warn("model safety analysis failed, using rule-based results only",
			zap.String("reason", string(reason)), zap.Error(err))
	} else {
		a := safety.ParseAssessment(text)
		assessment = &a
	}

	report := safety.Compose(res, assessment)
	log.Info("safety analysis complete",
		zap.Bool("is_safe", report.IsSafe),
		zap.Int("warnings", len(report.Warnings)),
		zap.String("status", string(report.Status)),
		zap.Bool("model_assessed", report.ModelAssessed))

	return Update{
		Safety:      &report,
		SafetyCheck: report.Narrative,
		FinalAnswer: report.Narrative,
	}
}

// enrich collects interaction notes for the indexed drugs named in the
// proposal. Lookup failures only cost the notes for that drug.
func (s *SafetyStage) enrich(ctx context.Context, log *zap.Logger, proposed string) []string {
	if s.interactions == nil {
		return nil
	}
	var notes []string
	for _, drug := range s.engine.MentionedDrugs(proposed) {
		callCtx, cancel := withTimeout(ctx, s.timeout)
		groups, err := s.interactions.InteractionsFor(callCtx, drug)
		cancel()
		if err != nil {
			recordFallback(StageSafety, classify(err))
			log.Debug("interaction lookup failed", zap.String("drug", drug), zap.Error(err))
			continue
		}
		n := 0
		for _, g := range groups {
			for _, d := range g.Descriptions {
				if n == maxNotesPerDrug {
					break
				}
				notes = append(notes, fmt.Sprintf("%s (%s): %s", drug, g.Source, d))
				n++
			}
		}
	}
	return notes
}

func (s *SafetyStage) complete(ctx context.Context, prompt string) (string, error) {
	if s.completer == nil {
		return "", errNotConfigured
	}
	callCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.completer.Complete(callCtx, agent.CompletionRequest{
		System:      safety.SystemPrompt,
		User:        prompt,
		Model:       s.model,
		Temperature: safetyTemp,
		MaxTokens:   safetyMaxTokens,
	})
}
