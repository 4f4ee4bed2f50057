package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProbeAll checks every provider concurrently and records the outcome. A
// failing probe never aborts the others.
func (g *Gateway) ProbeAll(ctx context.Context, timeout time.Duration) []Descriptor {
	results := make([]health, len(g.members))
	var eg errgroup.Group
	for i, m := range g.members {
		eg.Go(func() error {
			probeCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				probeCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			err := m.Backend.Probe(probeCtx)
			results[i] = health{healthy: err == nil, lastProbe: g.now()}
			if err != nil {
				results[i].lastError = err.Error()
				g.logger.Debug("provider probe failed", zap.String("provider", m.Backend.Name()), zap.Error(err))
			}
			return nil
		})
	}
	_ = eg.Wait()

	g.mu.Lock()
	copy(g.health, results)
	g.mu.Unlock()
	return g.Descriptors()
}

// RunProber probes on every tick until ctx is done.
func (g *Gateway) RunProber(ctx context.Context, interval, timeout time.Duration) {
	if interval <= 0 {
		return
	}
	g.ProbeAll(ctx, timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.ProbeAll(ctx, timeout)
		}
	}
}
