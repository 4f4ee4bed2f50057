package insight

import (
	"regexp"
	"strings"
)

type Provenance string

const (
	ProvenanceReal     Provenance = "real"
	ProvenanceFallback Provenance = "fallback"
)

type FallbackReason string

const (
	ReasonNone               FallbackReason = ""
	ReasonQuotaDenied        FallbackReason = "quota_denied"
	ReasonProvidersExhausted FallbackReason = "providers_exhausted"
	ReasonExtractionEmpty    FallbackReason = "extraction_empty"
	ReasonCanceled           FallbackReason = "canceled"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

var confidenceRe = regexp.MustCompile(`(?i)\b(not\s+|no\s+)?(high|medium|moderate|low)\b`)

// ParseConfidence maps free text such as "Moderate (based on 3 cycles)" to a
// label. The first whole label word wins; negated words ("not high") are
// skipped. Anything unrecognized is medium.
func ParseConfidence(text string) Confidence {
	for _, m := range confidenceRe.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			continue
		}
		switch strings.ToLower(m[2]) {
		case "high":
			return ConfidenceHigh
		case "low":
			return ConfidenceLow
		default:
			return ConfidenceMedium
		}
	}
	return ConfidenceMedium
}

type AssessmentField struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
	// Fallback marks a field filled from local content.
	Fallback bool `json:"fallback,omitempty"`
}

// TypedResult is the only shape callers receive, on success and on
// fallback alike. List fields are never nil.
type TypedResult struct {
	RequestID       string            `json:"request_id"`
	Domain          DomainTag         `json:"domain"`
	QuickAssessment []AssessmentField `json:"quick_assessment"`
	Insight         string            `json:"insight"`
	Recommendations []string          `json:"recommendations"`
	Alerts          []string          `json:"alerts"`
	Tips            []string          `json:"tips"`
	Reminders       []string          `json:"reminders"`
	Confidence      Confidence        `json:"confidence"`
	Provenance      Provenance        `json:"provenance"`
	FallbackReason  FallbackReason    `json:"fallback_reason,omitempty"`
	Provider        string            `json:"provider,omitempty"`
	// Reused is set when the text came from the cache or another caller's
	// in-flight request.
	Reused bool `json:"reused,omitempty"`
}

// Field returns the quick-assessment value for key.
func (r TypedResult) Field(key string) (string, bool) {
	for _, f := range r.QuickAssessment {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}
