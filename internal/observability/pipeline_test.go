package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"healthinsight/internal/insight"
)

func TestPipelineObserverCountsAndAlerts(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	o := NewPipelineObserver(zap.New(core))

	for i := 0; i < alertEvery; i++ {
		o.Observe(context.Background(), insight.Outcome{Provenance: insight.ProvenanceFallback, FallbackReason: insight.ReasonQuotaDenied})
	}
	assert.Equal(t, 1, logs.FilterMessage("repeated fallback results").Len())

	o.Observe(context.Background(), insight.Outcome{Provenance: insight.ProvenanceReal, Provider: "local"})
	c := o.Counts()
	assert.Equal(t, int64(1), c.Real)
	assert.Equal(t, int64(alertEvery), c.Fallbacks["quota_denied"])
	assert.Equal(t, int64(0), c.Consecutive)

	completed := logs.FilterMessage("pipeline completed").All()
	require.Len(t, completed, 1)
	assert.Equal(t, "local", completed[0].ContextMap()["provider"])
}

func TestNilPipelineObserverIsSafe(t *testing.T) {
	var o *PipelineObserver
	assert.NotPanics(t, func() {
		o.Observe(context.Background(), insight.Outcome{})
	})
}
