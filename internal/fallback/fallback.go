// Package fallback produces deterministic, locally computed content for a
// domain when no usable generated text is available.
package fallback

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultContent []byte

// Generic is the domain used for tags without their own content.
const Generic = "generic"

const (
	// NeutralConfidence is attached to every synthesized result.
	NeutralConfidence = "medium"
	// MissingValue fills a quick-assessment field no template defines.
	MissingValue = "Not enough data yet"
)

// Variants is an ordered list of alternatives for one text field.
type Variants []string

type Template struct {
	QuickAssessment map[string]Variants `yaml:"quick_assessment"`
	Insight         Variants            `yaml:"insight"`
	Recommendations []string            `yaml:"recommendations"`
	Alerts          []string            `yaml:"alerts"`
	Tips            []string            `yaml:"tips"`
	Reminders       []string            `yaml:"reminders"`
}

type document struct {
	Domains map[string]Template `yaml:"domains"`
}

// Field is one labeled quick-assessment value.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Content struct {
	QuickAssessment []Field  `json:"quick_assessment"`
	Insight         string   `json:"insight"`
	Recommendations []string `json:"recommendations"`
	Alerts          []string `json:"alerts"`
	Tips            []string `json:"tips"`
	Reminders       []string `json:"reminders"`
	Confidence      string   `json:"confidence"`
}

// List names accepted by Synthesizer.List.
const (
	ListRecommendations = "recommendations"
	ListAlerts          = "alerts"
	ListTips            = "tips"
	ListReminders       = "reminders"
)

type Synthesizer struct {
	domains  map[string]Template
	maxItems int
}

// New loads the built-in content and, when path is set, overlays the domains
// defined in that file.
func New(path string, maxItems int) (*Synthesizer, error) {
	var doc document
	if err := yaml.Unmarshal(defaultContent, &doc); err != nil {
		return nil, fmt.Errorf("parse built-in fallback content: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var override document
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("parse fallback content %s: %w", path, err)
		}
		for name, tmpl := range override.Domains {
			doc.Domains[name] = tmpl
		}
	}
	if _, ok := doc.Domains[Generic]; !ok {
		return nil, errors.New("fallback content has no generic domain")
	}
	return &Synthesizer{domains: doc.Domains, maxItems: maxItems}, nil
}

func (s *Synthesizer) template(domain string) Template {
	if t, ok := s.domains[domain]; ok {
		return t
	}
	return s.domains[Generic]
}

// Synthesize builds the full result shape for domain from facts alone. Quick
// assessment fields follow keys when given, else the template's keys sorted.
// The same inputs always yield the same output.
func (s *Synthesizer) Synthesize(domain string, keys []string, facts map[string]string) Content {
	t := s.template(domain)
	if keys == nil {
		keys = make([]string, 0, len(t.QuickAssessment))
		for k := range t.QuickAssessment {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	quick := make([]Field, 0, len(keys))
	for _, k := range keys {
		v, ok := s.Field(domain, k, facts)
		if !ok {
			v = MissingValue
		}
		quick = append(quick, Field{Key: k, Value: v})
	}
	return Content{
		QuickAssessment: quick,
		Insight:         s.Insight(domain, facts),
		Recommendations: s.List(domain, ListRecommendations, facts),
		Alerts:          s.List(domain, ListAlerts, facts),
		Tips:            s.List(domain, ListTips, facts),
		Reminders:       s.List(domain, ListReminders, facts),
		Confidence:      NeutralConfidence,
	}
}

// Field returns the fallback value for one quick-assessment key, or false
// when the domain defines none.
func (s *Synthesizer) Field(domain, key string, facts map[string]string) (string, bool) {
	variants, ok := s.template(domain).QuickAssessment[key]
	if !ok {
		variants, ok = s.domains[Generic].QuickAssessment[key]
	}
	if !ok {
		return "", false
	}
	v := render(variants, facts)
	return v, v != ""
}

func (s *Synthesizer) Insight(domain string, facts map[string]string) string {
	return render(s.template(domain).Insight, facts)
}

// List returns the static list for domain, bounded by the configured
// maximum. Entries with unknown placeholders are skipped.
func (s *Synthesizer) List(domain, name string, facts map[string]string) []string {
	t := s.template(domain)
	var src []string
	switch name {
	case ListRecommendations:
		src = t.Recommendations
	case ListAlerts:
		src = t.Alerts
	case ListTips:
		src = t.Tips
	case ListReminders:
		src = t.Reminders
	}
	out := make([]string, 0, len(src))
	for _, item := range src {
		if s.maxItems > 0 && len(out) == s.maxItems {
			break
		}
		if text, ok := fill(item, facts); ok {
			out = append(out, text)
		}
	}
	return out
}

var placeholderRe = regexp.MustCompile(`\{([a-z0-9_]+)\}`)

func render(variants Variants, facts map[string]string) string {
	for _, v := range variants {
		if text, ok := fill(v, facts); ok {
			return text
		}
	}
	return ""
}

// fill substitutes facts into text. It fails when any placeholder has no
// non-empty fact.
func fill(text string, facts map[string]string) (string, bool) {
	ok := true
	out := placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		name := m[1 : len(m)-1]
		val := strings.TrimSpace(facts[name])
		if val == "" {
			ok = false
			return m
		}
		return val
	})
	return out, ok
}
