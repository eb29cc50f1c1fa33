// Package pipeline runs the clinical decision support stages over a shared
// State: personalization, then research, then safety validation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type step struct {
	stage Stage
	phase Phase
	// done reports whether the stage wrote the field it owns.
	done func(*State) bool
}

// Orchestrator drives the fixed stage sequence. It has no branching and no
// retries; each stage is responsible for its own fallback.
type Orchestrator struct {
	steps  []step
	logger *zap.Logger
}

func NewOrchestrator(personalize, research, validate Stage, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		steps: []step{
			{stage: personalize, phase: PhasePersonalized, done: func(s *State) bool { return s.Profile != nil }},
			{stage: research, phase: PhaseResearched, done: func(s *State) bool { return s.Research != nil }},
			{stage: validate, phase: PhaseValidated, done: func(s *State) bool {
				return s.Safety != nil && s.SafetyCheck != "" && s.FinalAnswer != ""
			}},
		},
		logger: logger,
	}
}

// Run executes one pipeline invocation. Errors are limited to caller
// cancellation between stages and stage contract violations; external
// service failures never surface here.
func (o *Orchestrator) Run(ctx context.Context, patientID, query string) (*State, error) {
	st := newState(patientID, query)
	log := o.logger.With(zap.String("run_id", st.RunID.String()), zap.String("patient_id", patientID))
	log.Info("pipeline started")

	started := time.Now()
	for _, s := range o.steps {
		name := s.stage.Name()
		if err := ctx.Err(); err != nil {
			pipelineRuns.WithLabelValues("aborted").Inc()
			return nil, fmt.Errorf("run %s aborted before %s: %w", st.RunID, name, err)
		}

		began := time.Now()
		u := s.stage.Run(ctx, *st)
		stageDuration.WithLabelValues(name).Observe(time.Since(began).Seconds())

		if err := st.apply(name, u); err != nil {
			pipelineRuns.WithLabelValues("contract_violation").Inc()
			return nil, err
		}
		if !s.done(st) {
			pipelineRuns.WithLabelValues("contract_violation").Inc()
			return nil, fmt.Errorf("%w: %s", ErrMissingOutput, name)
		}
		st.Phase = s.phase
	}

	pipelineRuns.WithLabelValues("completed").Inc()
	log.Info("pipeline finished",
		zap.Duration("elapsed", time.Since(started)),
		zap.Bool("is_safe", st.Safety.IsSafe))
	return st, nil
}
