package observability

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"healthinsight/internal/insight"
	"healthinsight/internal/logging"
)

// alertEvery is how many consecutive fallbacks trigger a repeated alert.
const alertEvery = 10

// PipelineObserver logs every pipeline outcome and keeps per-reason
// fallback counters for the status surface.
type PipelineObserver struct {
	logger *zap.Logger

	mu          sync.Mutex
	real        int64
	fallbacks   map[insight.FallbackReason]int64
	consecutive int64
}

type Counts struct {
	Real      int64            `json:"real"`
	Fallbacks map[string]int64 `json:"fallbacks"`
	// Consecutive is the current streak of fallback results.
	Consecutive int64 `json:"consecutive_fallbacks"`
}

func NewPipelineObserver(logger *zap.Logger) *PipelineObserver {
	return &PipelineObserver{
		logger:    logging.OrNop(logger),
		fallbacks: make(map[insight.FallbackReason]int64),
	}
}

func (o *PipelineObserver) Observe(_ context.Context, out insight.Outcome) {
	if o == nil {
		return
	}
	fields := []zap.Field{
		zap.String("request_id", out.RequestID),
		zap.String("domain", string(out.Domain)),
		zap.String("provenance", string(out.Provenance)),
		zap.Duration("duration", out.Duration),
	}
	if out.Provenance == insight.ProvenanceReal {
		o.mu.Lock()
		o.real++
		o.consecutive = 0
		o.mu.Unlock()
		o.logger.Info("pipeline completed", append(fields, zap.String("provider", out.Provider))...)
		return
	}

	o.mu.Lock()
	o.fallbacks[out.FallbackReason]++
	o.consecutive++
	streak := o.consecutive
	o.mu.Unlock()

	o.logger.Info("pipeline fell back", append(fields, zap.String("reason", string(out.FallbackReason)))...)
	if streak%alertEvery == 0 {
		o.logger.Warn("repeated fallback results",
			zap.Int64("consecutive", streak),
			zap.String("last_reason", string(out.FallbackReason)))
	}
}

func (o *PipelineObserver) Counts() Counts {
	o.mu.Lock()
	defer o.mu.Unlock()
	c := Counts{Real: o.real, Fallbacks: make(map[string]int64, len(o.fallbacks)), Consecutive: o.consecutive}
	for reason, n := range o.fallbacks {
		c.Fallbacks[string(reason)] = n
	}
	return c
}
