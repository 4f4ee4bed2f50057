package gateway

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProviderTimeout       = errors.New("provider attempt timed out")
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
)

// ProviderError records why one provider attempt failed.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ExhaustedError is returned when no provider produced text. Failures holds
// one entry per attempted provider, in attempt order.
type ExhaustedError struct {
	Failures []*ProviderError
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return ErrAllProvidersExhausted.Error() + ": no configured providers"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("%s: %s", ErrAllProvidersExhausted, strings.Join(parts, "; "))
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersExhausted
}

// Reasons flattens the failures for logs and status payloads.
func (e *ExhaustedError) Reasons() []string {
	out := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Error())
	}
	return out
}
