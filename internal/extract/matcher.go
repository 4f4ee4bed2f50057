package extract

import (
	"regexp"
	"strings"
)

// emoji covers pictographs plus the joiners and variation selectors that
// travel with them.
const emoji = `[\p{So}\p{Sk}\x{FE0F}\x{200D}]`

// Matcher finds the header of one section in one layout style.
type Matcher struct {
	Style string
	re    *regexp.Regexp
}

// find returns the end offset of every header occurrence, in text order.
func (m Matcher) find(raw string) []int {
	locs := m.re.FindAllStringIndex(raw, -1)
	out := make([]int, 0, len(locs))
	for _, loc := range locs {
		out = append(out, loc[1])
	}
	return out
}

// Section is a named slot in a generated response. Matchers are tried in
// order; the first plausible capture wins.
type Section struct {
	Name      string
	Aliases   []string
	MinLength int
	Matchers  []Matcher
}

const (
	StyleEmojiBold  = "emoji_bold"
	StyleBold       = "bold"
	StyleHeading    = "heading"
	StyleEmojiLabel = "emoji_label"
	StyleLabel      = "label"
)

// NewSection builds the standard matcher cascade for a section. The first
// alias is also the section name.
func NewSection(aliases ...string) Section {
	alt := aliasPattern(aliases)
	return Section{
		Name:    Key(aliases[0]),
		Aliases: aliases,
		Matchers: []Matcher{
			{Style: StyleEmojiBold, re: regexp.MustCompile(`(?im)^[ \t]*` + emoji + `+[ \t]*\*\*[ \t]*` + alt + `[ \t]*:?[ \t]*\*\*[ \t]*:?`)},
			{Style: StyleBold, re: regexp.MustCompile(`(?im)^[ \t]*\*\*[ \t]*(?:` + emoji + `+[ \t]*)?` + alt + `[ \t]*:?[ \t]*\*\*[ \t]*:?`)},
			{Style: StyleHeading, re: regexp.MustCompile(`(?im)^[ \t]*#{1,6}[ \t]*(?:` + emoji + `+[ \t]*)?` + alt + `[ \t]*(?::|$)`)},
			{Style: StyleEmojiLabel, re: regexp.MustCompile(`(?im)^[ \t]*` + emoji + `+[ \t]*` + alt + `[ \t]*:`)},
			{Style: StyleLabel, re: regexp.MustCompile(`(?im)^[ \t]*` + alt + `[ \t]*:`)},
		},
	}
}

// WithMinLength overrides the plausibility length threshold for short
// labeled fields.
func (s Section) WithMinLength(n int) Section {
	s.MinLength = n
	return s
}

func aliasPattern(aliases []string) string {
	parts := make([]string, 0, len(aliases))
	for _, a := range aliases {
		words := strings.Fields(a)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		parts = append(parts, strings.Join(words, `[ \t_-]+`))
	}
	return `(?:` + strings.Join(parts, `|`) + `)`
}

// Key normalizes a section label to the snake_case form used for lookups
// and structured payloads.
func Key(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.NewReplacer("_", " ", "-", " ").Replace(label))), "_")
}

// Table maps section keys to their definitions.
type Table map[string]Section

func NewTable(sections ...Section) Table {
	t := make(Table, len(sections))
	for _, s := range sections {
		t[s.Name] = s
	}
	return t
}

// Merge returns a table holding t's sections plus others; others win on
// name collisions.
func (t Table) Merge(others ...Section) Table {
	out := make(Table, len(t)+len(others))
	for k, v := range t {
		out[k] = v
	}
	for _, s := range others {
		out[s.Name] = s
	}
	return out
}

var (
	// A new block starts at a bold line, a markdown heading, or an
	// upper-case label such as "TIPS:".
	boundaryRe = regexp.MustCompile(`(?m)^[ \t]*(?:` + emoji + `+[ \t]*)?(?:\*\*[^*\n]+\*\*|#{1,6}[ \t]|[A-Z][A-Z0-9 &/'()-]{2,}:)`)
	bulletRe   = regexp.MustCompile(`^\s*(?:\d{1,3}[.)]|[-*+•▪◦‣–—]|>)\s+(.+)$`)
	hruleRe    = regexp.MustCompile(`(?m)^[ \t]*(?:-{3,}|\*{3,}|_{3,})[ \t]*$`)
)
