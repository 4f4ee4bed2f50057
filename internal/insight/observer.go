package insight

import (
	"context"
	"time"
)

// Outcome summarizes one finished pipeline call.
type Outcome struct {
	RequestID      string
	Fingerprint    string
	Domain         DomainTag
	Provenance     Provenance
	FallbackReason FallbackReason
	Provider       string
	Duration       time.Duration
	CreatedAt      time.Time
}

// Observer is notified after every call. Implementations must not block for
// long; the result is returned to the caller only after Observe returns.
type Observer interface {
	Observe(ctx context.Context, o Outcome)
}

// Observers fans an outcome out to each observer in order.
type Observers []Observer

func (list Observers) Observe(ctx context.Context, o Outcome) {
	for _, obs := range list {
		if obs != nil {
			obs.Observe(ctx, o)
		}
	}
}

type nopObserver struct{}

func (nopObserver) Observe(context.Context, Outcome) {}
