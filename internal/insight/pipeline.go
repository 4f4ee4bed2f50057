// Package insight runs a domain prompt through admission, caching,
// generation and extraction, and always hands back a TypedResult.
package insight

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"healthinsight/internal/cache"
	"healthinsight/internal/extract"
	"healthinsight/internal/fallback"
	"healthinsight/internal/gateway"
	"healthinsight/internal/logging"
	"healthinsight/internal/quota"
)

// Executor is the generation side of the pipeline.
type Executor interface {
	Execute(ctx context.Context, prompt string) (gateway.Result, error)
	Descriptors() []gateway.Descriptor
}

type Options struct {
	Quota    *quota.Tracker
	Cache    *cache.ResponseCache
	Gateway  Executor
	Fallback *fallback.Synthesizer
	MaxItems int
	Observer Observer
	Logger   *zap.Logger
}

// Pipeline owns the quota and cache state for one client process.
type Pipeline struct {
	quota     *quota.Tracker
	cache     *cache.ResponseCache
	gateway   Executor
	extractor *extract.Extractor
	fallback  *fallback.Synthesizer
	maxItems  int
	observer  Observer
	logger    *zap.Logger
	now       func() time.Time
}

func New(opts Options) *Pipeline {
	maxItems := opts.MaxItems
	if maxItems <= 0 {
		maxItems = 4
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Pipeline{
		quota:     opts.Quota,
		cache:     opts.Cache,
		gateway:   opts.Gateway,
		extractor: extract.New(sectionTable()),
		fallback:  opts.Fallback,
		maxItems:  maxItems,
		observer:  observer,
		logger:    logging.OrNop(opts.Logger),
		now:       time.Now,
	}
}

// RunPipeline is the entry point domain modules call.
func (p *Pipeline) RunPipeline(ctx context.Context, domain DomainTag, prompt string, facts map[string]string) TypedResult {
	return p.Run(ctx, NewRequest(domain, prompt, facts))
}

// Run never fails: quota denial, provider exhaustion and empty extraction
// all end in fallback content, flagged through Provenance.
func (p *Pipeline) Run(ctx context.Context, req Request) TypedResult {
	start := p.now()
	result := p.run(ctx, req)
	p.observer.Observe(ctx, Outcome{
		RequestID:      req.ID,
		Fingerprint:    req.Fingerprint,
		Domain:         req.Domain,
		Provenance:     result.Provenance,
		FallbackReason: result.FallbackReason,
		Provider:       result.Provider,
		Duration:       p.now().Sub(start),
		CreatedAt:      req.CreatedAt,
	})
	return result
}

func (p *Pipeline) run(ctx context.Context, req Request) TypedResult {
	profile := ProfileFor(req.Domain)
	log := p.logger.With(zap.String("request_id", req.ID), zap.String("domain", string(req.Domain)))

	if decision := p.quota.Admit(); !decision.Allowed {
		log.Info("quota denied, using fallback", zap.String("reason", string(decision.Reason)))
		return p.synthesize(req, profile, ReasonQuotaDenied)
	}

	var provider string
	executed := false
	raw, err := p.cache.GetOrFetch(ctx, req.Fingerprint, func(fetchCtx context.Context) (string, error) {
		executed = true
		res, err := p.gateway.Execute(fetchCtx, req.Prompt)
		provider = res.Provider
		return res.Text, err
	})
	if err != nil {
		reason := ReasonProvidersExhausted
		if ctx.Err() != nil && !errors.Is(err, gateway.ErrAllProvidersExhausted) {
			reason = ReasonCanceled
		}
		fields := []zap.Field{zap.String("reason", string(reason)), zap.Error(err)}
		var exhausted *gateway.ExhaustedError
		if errors.As(err, &exhausted) {
			fields = append(fields, zap.Strings("failures", exhausted.Reasons()))
		}
		log.Warn("generation failed, using fallback", fields...)
		return p.synthesize(req, profile, reason)
	}

	extracted, err := p.extractor.Resolve(extract.Classify(raw), profile.plan(p.maxItems))
	if err == nil && !hasContent(extracted, profile) {
		err = extract.ErrExtractionEmpty
	}
	if err != nil {
		log.Info("nothing extracted, using fallback", zap.Int("raw_len", len(raw)))
		return p.synthesize(req, profile, ReasonExtractionEmpty)
	}

	result := p.assemble(req, profile, extracted)
	result.Provider = provider
	result.Reused = !executed
	return result
}

func hasContent(res extract.Result, profile Profile) bool {
	for _, key := range profile.keys() {
		if _, ok := res.Section(key); ok {
			return true
		}
	}
	if _, ok := res.Section(keyInsights.Name); ok {
		return true
	}
	for _, l := range listSections {
		if len(res.List(l.section.Name)) > 0 {
			return true
		}
	}
	return false
}

// assemble fills each field from the extraction and falls back per field
// for anything missing.
func (p *Pipeline) assemble(req Request, profile Profile, res extract.Result) TypedResult {
	domain := string(req.Domain)
	out := TypedResult{
		RequestID:  req.ID,
		Domain:     req.Domain,
		Provenance: ProvenanceReal,
		Confidence: ConfidenceMedium,
	}
	for _, key := range profile.keys() {
		field := AssessmentField{Key: key, Label: Label(key)}
		if v, ok := res.Section(key); ok {
			field.Value = v
		} else {
			field.Value, _ = p.fallback.Field(domain, key, req.Facts)
			if field.Value == "" {
				field.Value = fallback.MissingValue
			}
			field.Fallback = true
		}
		out.QuickAssessment = append(out.QuickAssessment, field)
	}

	if v, ok := res.Section(keyInsights.Name); ok {
		out.Insight = v
	} else {
		out.Insight = p.fallback.Insight(domain, req.Facts)
	}

	lists := make([][]string, len(listSections))
	for i, l := range listSections {
		items := res.List(l.section.Name)
		if len(items) == 0 {
			items = p.fallback.List(domain, l.fallback, req.Facts)
		}
		lists[i] = nonNil(items)
	}
	out.Recommendations, out.Alerts, out.Tips, out.Reminders = lists[0], lists[1], lists[2], lists[3]

	if v, ok := res.Section(confidence.Name); ok {
		out.Confidence = ParseConfidence(v)
	}
	return out
}

func (p *Pipeline) synthesize(req Request, profile Profile, reason FallbackReason) TypedResult {
	content := p.fallback.Synthesize(string(req.Domain), profile.keys(), req.Facts)
	out := TypedResult{
		RequestID:       req.ID,
		Domain:          req.Domain,
		Insight:         content.Insight,
		Recommendations: nonNil(content.Recommendations),
		Alerts:          nonNil(content.Alerts),
		Tips:            nonNil(content.Tips),
		Reminders:       nonNil(content.Reminders),
		Confidence:      Confidence(content.Confidence),
		Provenance:      ProvenanceFallback,
		FallbackReason:  reason,
	}
	for _, f := range content.QuickAssessment {
		out.QuickAssessment = append(out.QuickAssessment, AssessmentField{
			Key:      f.Key,
			Label:    Label(f.Key),
			Value:    f.Value,
			Fallback: true,
		})
	}
	return out
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

type Status struct {
	Quota     quota.State          `json:"quota"`
	Cache     cache.Stats          `json:"cache"`
	Providers []gateway.Descriptor `json:"providers"`
}

func (p *Pipeline) Status() Status {
	return Status{
		Quota:     p.quota.Snapshot(),
		Cache:     p.cache.Stats(),
		Providers: p.gateway.Descriptors(),
	}
}

func (p *Pipeline) ResetQuota() {
	p.quota.Reset()
	p.logger.Info("quota reset")
}

func (p *Pipeline) ClearCache(ctx context.Context) {
	p.cache.Clear(ctx)
	p.logger.Info("response cache cleared")
}
