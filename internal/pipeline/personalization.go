package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clinical-decision-agent/internal/patient"
)

// PersonalizationStage resolves the patient profile. An unknown patient or
// an unreachable record store yields an empty profile rather than an error.
type PersonalizationStage struct {
	store   patient.Store
	timeout time.Duration
	logger  *zap.Logger
}

func NewPersonalizationStage(store patient.Store, timeout time.Duration, logger *zap.Logger) *PersonalizationStage {
	return &PersonalizationStage{store: store, timeout: timeout, logger: logger}
}

func (s *PersonalizationStage) Name() string { return StagePersonalization }

func (s *PersonalizationStage) Run(ctx context.Context, st State) Update {
	log := s.logger.With(zap.String("stage", StagePersonalization), zap.String("patient_id", st.PatientID))

	p, err := s.lookup(ctx, st.PatientID)
	if err != nil {
		reason := classify(err)
		recordFallback(StagePersonalization, reason)
		log.Warn("patient lookup failed, continuing with empty profile",
			zap.String("reason", string(reason)), zap.Error(err))
		return Update{Profile: patient.Empty(st.PatientID)}
	}

	p.Normalize()
	log.Info("found patient record",
		zap.String("name", p.Name),
		zap.Strings("conditions", p.Conditions))
	return Update{Profile: p}
}

func (s *PersonalizationStage) lookup(ctx context.Context, id string) (*patient.Profile, error) {
	if s.store == nil {
		return nil, errNotConfigured
	}
	callCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	p, err := s.store.Lookup(callCtx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", patient.ErrNotFound, id)
	}
	return p, nil
}
