package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const DefaultMinLength = 10

// boilerplate words show up in placeholder text ("Analysis completed
// successfully", "Insights generated") rather than real content.
var boilerplate = map[string]struct{}{
	"analysis": {}, "available": {}, "complete": {}, "completed": {}, "content": {},
	"data": {}, "done": {}, "generated": {}, "generating": {}, "insight": {},
	"insights": {}, "n": {}, "a": {}, "na": {}, "none": {}, "not": {}, "ok": {},
	"pending": {}, "placeholder": {}, "ready": {}, "section": {}, "successfully": {},
	"success": {}, "summary": {}, "tbd": {}, "is": {}, "are": {}, "was": {},
	"been": {}, "has": {}, "have": {}, "here": {}, "the": {}, "your": {},
	"and": {}, "response": {}, "result": {}, "results": {},
}

// Plausible reports whether captured text looks like real content. The
// trimmed text must be longer than minLength and must not consist only of
// placeholder wording.
func Plausible(text string, minLength int) bool {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) <= minLength {
		return false
	}
	return !IsBoilerplate(trimmed)
}

func IsBoilerplate(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if _, ok := boilerplate[w]; !ok {
			return false
		}
	}
	return true
}
