// Package gateway runs a prompt against a ranked list of backends, one at a
// time, until one of them answers.
package gateway

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"healthinsight/internal/logging"
	"healthinsight/internal/provider"
)

const DefaultAttemptTimeout = 30 * time.Second

type Member struct {
	Backend  provider.Backend
	Priority int
	Timeout  time.Duration
}

// Descriptor is the status view of one provider. Healthy reflects the last
// probe only and never decides whether the provider is attempted.
type Descriptor struct {
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	Model      string    `json:"model"`
	Priority   int       `json:"priority"`
	Configured bool      `json:"configured"`
	Healthy    bool      `json:"healthy"`
	LastProbe  time.Time `json:"last_probe,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}

type health struct {
	healthy   bool
	lastProbe time.Time
	lastError string
}

type Gateway struct {
	members []Member
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.RWMutex
	health []health
}

// Result is the text of the first successful attempt and who produced it.
type Result struct {
	Text     string
	Provider string
	Attempts int
}

func New(members []Member, logger *zap.Logger) *Gateway {
	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	g := &Gateway{
		members: sorted,
		logger:  logging.OrNop(logger),
		now:     time.Now,
		health:  make([]health, len(sorted)),
	}
	for i, m := range sorted {
		g.health[i].healthy = m.Backend.Configured()
	}
	return g
}

// Execute tries each configured provider in priority order and returns the
// first success. Provider failures and timeouts are absorbed; only when every
// attempt fails does it return an *ExhaustedError.
func (g *Gateway) Execute(ctx context.Context, prompt string) (Result, error) {
	exhausted := &ExhaustedError{}
	attempts := 0
	for _, m := range g.members {
		if !m.Backend.Configured() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		attempts++
		start := g.now()
		text, err := g.attempt(ctx, m, prompt)
		if err == nil {
			g.logger.Debug("provider succeeded",
				zap.String("provider", m.Backend.Name()),
				zap.Duration("elapsed", g.now().Sub(start)),
				zap.Int("attempt", attempts))
			return Result{Text: text, Provider: m.Backend.Name(), Attempts: attempts}, nil
		}
		failure := &ProviderError{Provider: m.Backend.Name(), Err: err}
		exhausted.Failures = append(exhausted.Failures, failure)
		g.logger.Warn("provider attempt failed", zap.String("provider", m.Backend.Name()), zap.Error(err))
	}
	return Result{}, exhausted
}

// attempt races one provider call against its timeout. A call that loses the
// race is abandoned; its context is cancelled and any late answer is dropped.
func (g *Gateway) attempt(ctx context.Context, m Member, prompt string) (string, error) {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		text, err := m.Backend.Generate(attemptCtx, prompt)
		done <- outcome{text: text, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", ErrProviderTimeout
		}
		return out.text, out.err
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", ErrProviderTimeout
		}
		return "", attemptCtx.Err()
	}
}

func (g *Gateway) Descriptors() []Descriptor {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Descriptor, 0, len(g.members))
	for i, m := range g.members {
		h := g.health[i]
		out = append(out, Descriptor{
			Name:       m.Backend.Name(),
			Kind:       m.Backend.Kind(),
			Model:      m.Backend.Model(),
			Priority:   m.Priority,
			Configured: m.Backend.Configured(),
			Healthy:    h.healthy,
			LastProbe:  h.lastProbe,
			LastError:  h.lastError,
		})
	}
	return out
}
