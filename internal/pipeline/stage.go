package pipeline

import (
	"context"
	"time"
)

const (
	StagePersonalization = "personalization"
	StageResearch        = "research"
	StageSafety          = "safety"

	DefaultCallTimeout = 10 * time.Second
)

// Stage is one step of the pipeline. It reads a copy of the current state
// and returns the fields it owns. Stages recover from their own external
// failures, so Run has no error result.
type Stage interface {
	Name() string
	Run(ctx context.Context, st State) Update
}

// withTimeout bounds one outbound call.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultCallTimeout
	}
	return context.WithTimeout(ctx, d)
}
