package pipeline

import (
	"context"
	"errors"

	"clinical-decision-agent/internal/agent"
	"clinical-decision-agent/internal/patient"
)

// FallbackReason labels why a stage left its primary path.
type FallbackReason string

const (
	ReasonTimeout           FallbackReason = "timeout"
	ReasonCanceled          FallbackReason = "canceled"
	ReasonPatientNotFound   FallbackReason = "patient_not_found"
	ReasonStoreUnavailable  FallbackReason = "record_store_unavailable"
	ReasonSearchUnavailable FallbackReason = "search_unavailable"
	ReasonCompletionFailed  FallbackReason = "completion_failed"
	ReasonInteractionLookup FallbackReason = "interaction_lookup_failed"
	ReasonNotConfigured     FallbackReason = "not_configured"
	ReasonUnclassified      FallbackReason = "unclassified"
)

var errNotConfigured = errors.New("dependency not configured")

// classify maps an error from an external call onto a fallback reason.
// Timeouts and cancellation take precedence over the failure class.
func classify(err error) FallbackReason {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, errNotConfigured):
		return ReasonNotConfigured
	case errors.Is(err, patient.ErrNotFound):
		return ReasonPatientNotFound
	case errors.Is(err, patient.ErrStoreUnavailable):
		return ReasonStoreUnavailable
	case errors.Is(err, agent.ErrSearchUnavailable):
		return ReasonSearchUnavailable
	case errors.Is(err, agent.ErrCompletion):
		return ReasonCompletionFailed
	case errors.Is(err, agent.ErrInteractionLookup):
		return ReasonInteractionLookup
	default:
		return ReasonUnclassified
	}
}

func recordFallback(stage string, reason FallbackReason) {
	stageFallbacks.WithLabelValues(stage, string(reason)).Inc()
}
