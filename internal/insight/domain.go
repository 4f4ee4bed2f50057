package insight

import (
	"strings"

	"healthinsight/internal/extract"
	"healthinsight/internal/fallback"
)

type DomainTag string

const (
	DomainGeneric    DomainTag = fallback.Generic
	DomainCycle      DomainTag = "cycle"
	DomainSymptom    DomainTag = "symptom"
	DomainMedication DomainTag = "medication"
	DomainMood       DomainTag = "mood"
	DomainSleep      DomainTag = "sleep"
	DomainPregnancy  DomainTag = "pregnancy"
)

// ParseDomain normalizes a tag. Unknown tags are kept as given and served
// by the generic profile.
func ParseDomain(s string) DomainTag {
	tag := strings.ToLower(strings.TrimSpace(s))
	if tag == "" {
		return DomainGeneric
	}
	return DomainTag(tag)
}

// Sections shared by every domain.
var (
	clinicalSummary = extract.NewSection("CLINICAL SUMMARY", "SUMMARY", "CLINICAL OVERVIEW")
	keyInsights     = extract.NewSection("KEY INSIGHTS", "INSIGHTS", "INSIGHT", "AI INSIGHT")
	recommendations = extract.NewSection("RECOMMENDATIONS", "RECOMMENDATION", "ACTION ITEMS")
	alerts          = extract.NewSection("ALERTS", "WARNINGS", "WARNING SIGNS", "RED FLAGS")
	tips            = extract.NewSection("PERSONALIZED TIPS", "TIPS", "PERSONAL TIPS")
	reminders       = extract.NewSection("GENTLE REMINDERS", "REMINDERS")
	confidence      = extract.NewSection("CONFIDENCE", "CONFIDENCE LEVEL").WithMinLength(2)
)

func short(aliases ...string) extract.Section {
	return extract.NewSection(aliases...).WithMinLength(2)
}

// Profile lists the quick-assessment fields a domain fills, in display order.
type Profile struct {
	Domain          DomainTag
	QuickAssessment []extract.Section
}

func (p Profile) keys() []string {
	out := make([]string, 0, len(p.QuickAssessment))
	for _, s := range p.QuickAssessment {
		out = append(out, s.Name)
	}
	return out
}

var profiles = map[DomainTag]Profile{
	DomainGeneric: {Domain: DomainGeneric, QuickAssessment: []extract.Section{
		clinicalSummary, short("OVERALL STATUS", "STATUS"),
	}},
	DomainCycle: {Domain: DomainCycle, QuickAssessment: []extract.Section{
		short("CYCLE STATUS", "CYCLE HEALTH"), clinicalSummary, short("NEXT PERIOD", "NEXT PERIOD PREDICTION"),
	}},
	DomainSymptom: {Domain: DomainSymptom, QuickAssessment: []extract.Section{
		short("SEVERITY", "SEVERITY LEVEL"), short("PATTERN", "SYMPTOM PATTERN"), clinicalSummary,
	}},
	DomainMedication: {Domain: DomainMedication, QuickAssessment: []extract.Section{
		short("ADHERENCE", "ADHERENCE RATE"), short("INTERACTIONS", "INTERACTION CHECK"), clinicalSummary,
	}},
	DomainMood: {Domain: DomainMood, QuickAssessment: []extract.Section{
		short("MOOD TREND", "MOOD PATTERN"), short("ENERGY LEVEL", "ENERGY"), clinicalSummary,
	}},
	DomainSleep: {Domain: DomainSleep, QuickAssessment: []extract.Section{
		short("SLEEP QUALITY"), short("SLEEP DEBT"), clinicalSummary,
	}},
	DomainPregnancy: {Domain: DomainPregnancy, QuickAssessment: []extract.Section{
		short("CURRENT STAGE", "PREGNANCY STAGE"), short("WELLBEING", "WELL-BEING"), clinicalSummary,
	}},
}

func ProfileFor(domain DomainTag) Profile {
	if p, ok := profiles[domain]; ok {
		return p
	}
	p := profiles[DomainGeneric]
	p.Domain = domain
	return p
}

// listSections pairs each bounded list with the fallback list it falls back to.
var listSections = []struct {
	section  extract.Section
	fallback string
}{
	{recommendations, fallback.ListRecommendations},
	{alerts, fallback.ListAlerts},
	{tips, fallback.ListTips},
	{reminders, fallback.ListReminders},
}

// sectionTable holds every section any profile can ask for.
func sectionTable() extract.Table {
	table := extract.NewTable(clinicalSummary, keyInsights, recommendations, alerts, tips, reminders, confidence)
	for _, p := range profiles {
		table = table.Merge(p.QuickAssessment...)
	}
	return table
}

func (p Profile) plan(maxItems int) extract.Plan {
	plan := extract.Plan{Sections: append(p.keys(), keyInsights.Name, confidence.Name)}
	for _, l := range listSections {
		plan.Lists = append(plan.Lists, extract.ListSpec{Name: l.section.Name, MaxItems: maxItems})
	}
	return plan
}

// Label turns a section key into display text, e.g. "clinical_summary"
// becomes "Clinical Summary".
func Label(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
