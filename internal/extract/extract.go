// Package extract turns free-form generated text into named sections and
// bounded lists.
package extract

import (
	"errors"
	"regexp"
	"strings"
)

var ErrExtractionEmpty = errors.New("no plausible section or list extracted")

type Extractor struct {
	table   Table
	labelRe *regexp.Regexp
}

func New(table Table) *Extractor {
	e := &Extractor{table: table}
	var aliases []string
	for _, s := range table {
		aliases = append(aliases, s.Aliases...)
	}
	if len(aliases) > 0 {
		// Title-case labels of known sections ("Recommendations:") also end a block.
		e.labelRe = regexp.MustCompile(`(?im)^[ \t]*(?:` + emoji + `+[ \t]*)?` + aliasPattern(aliases) + `[ \t]*:`)
	}
	return e
}

func (e *Extractor) section(name string) Section {
	if s, ok := e.table[Key(name)]; ok {
		return s
	}
	return NewSection(name)
}

// Extract returns the first plausible capture for the named section. The
// boolean is false when no matcher produced usable text.
func (e *Extractor) Extract(raw, name string) (string, bool) {
	sec := e.section(name)
	minLength := sec.MinLength
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	for _, m := range sec.Matchers {
		for _, end := range m.find(raw) {
			body := e.captureBody(raw, end)
			if Plausible(body, minLength) {
				return body, true
			}
		}
	}
	return "", false
}

// ExtractList returns up to maxItems bullet items from the named section,
// in the order they appear with markers stripped. It never returns nil.
func (e *Extractor) ExtractList(raw, name string, maxItems int) []string {
	if maxItems <= 0 {
		return []string{}
	}
	sec := e.section(name)
	for _, m := range sec.Matchers {
		for _, end := range m.find(raw) {
			if items := bulletItems(e.captureBody(raw, end), maxItems); len(items) > 0 {
				return items
			}
		}
	}
	return []string{}
}

// captureBody returns the text after a header up to the next block
// boundary. Inline text on the header line belongs to the body.
func (e *Extractor) captureBody(raw string, start int) string {
	rest := raw[start:]
	end := len(rest)
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		if idx := e.boundary(rest[nl+1:]); idx >= 0 {
			end = nl + 1 + idx
		}
	}
	body := strings.TrimSpace(rest[:end])
	body = strings.TrimLeft(body, ":")
	return strings.TrimSpace(body)
}

func (e *Extractor) boundary(text string) int {
	best := -1
	for _, re := range []*regexp.Regexp{boundaryRe, hruleRe, e.labelRe} {
		if re == nil {
			continue
		}
		if loc := re.FindStringIndex(text); loc != nil && (best < 0 || loc[0] < best) {
			best = loc[0]
		}
	}
	return best
}

func bulletItems(body string, maxItems int) []string {
	items := make([]string, 0, maxItems)
	for _, line := range strings.Split(body, "\n") {
		m := bulletRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item := cleanItem(m[1])
		if item == "" {
			continue
		}
		items = append(items, item)
		if len(items) == maxItems {
			break
		}
	}
	return items
}

func cleanItem(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	return strings.TrimSpace(s)
}

type ListSpec struct {
	Name     string
	MaxItems int
}

// Plan names what a caller wants out of one response.
type Plan struct {
	Sections []string
	Lists    []ListSpec
}

// Result holds what was found. Sections only contains names that produced a
// plausible capture; Lists has an entry, possibly empty, for every planned list.
type Result struct {
	Sections map[string]string
	Lists    map[string][]string
}

func newResult() Result {
	return Result{Sections: make(map[string]string), Lists: make(map[string][]string)}
}

func (r Result) Section(name string) (string, bool) {
	v, ok := r.Sections[Key(name)]
	return v, ok
}

func (r Result) List(name string) []string {
	if items, ok := r.Lists[Key(name)]; ok && items != nil {
		return items
	}
	return []string{}
}

func (r Result) Empty() bool {
	if len(r.Sections) > 0 {
		return false
	}
	for _, items := range r.Lists {
		if len(items) > 0 {
			return false
		}
	}
	return true
}

// ExtractAll runs the plan against free text. It returns ErrExtractionEmpty
// alongside the (empty) result when nothing usable was found.
func (e *Extractor) ExtractAll(raw string, plan Plan) (Result, error) {
	res := newResult()
	for _, name := range plan.Sections {
		if v, ok := e.Extract(raw, name); ok {
			res.Sections[Key(name)] = v
		}
	}
	for _, l := range plan.Lists {
		res.Lists[Key(l.Name)] = e.ExtractList(raw, l.Name, l.MaxItems)
	}
	if res.Empty() {
		return res, ErrExtractionEmpty
	}
	return res, nil
}
