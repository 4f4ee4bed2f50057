package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Response is either a Structured or a FreeText payload. The shape is
// decided once, right after the provider call.
type Response interface {
	isResponse()
}

// Structured is a JSON object whose values are strings or string lists.
type Structured struct {
	Fields map[string]any
}

type FreeText struct {
	Text string
}

func (Structured) isResponse() {}
func (FreeText) isResponse()   {}

const responseSchema = `{
  "type": "object",
  "minProperties": 1,
  "additionalProperties": {
    "anyOf": [
      {"type": "string"},
      {"type": "number"},
      {"type": "array", "items": {"type": "string"}}
    ]
  }
}`

var (
	compiledSchema = mustCompileSchema()
	jsonFenceRe    = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
)

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response.json", strings.NewReader(responseSchema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("response.json")
}

// Classify returns Structured when raw is a JSON object (optionally in a
// code fence) that fits the response schema, and FreeText otherwise.
func Classify(raw string) Response {
	candidate := strings.TrimSpace(raw)
	if m := jsonFenceRe.FindStringSubmatch(candidate); m != nil {
		candidate = m[1]
	}
	if !strings.HasPrefix(candidate, "{") {
		return FreeText{Text: raw}
	}
	var decoded any
	if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
		return FreeText{Text: raw}
	}
	if err := compiledSchema.Validate(decoded); err != nil {
		return FreeText{Text: raw}
	}
	fields := make(map[string]any)
	for k, v := range decoded.(map[string]any) {
		fields[Key(k)] = v
	}
	return Structured{Fields: fields}
}

// Resolve extracts the plan from either response shape.
func (e *Extractor) Resolve(resp Response, plan Plan) (Result, error) {
	switch r := resp.(type) {
	case Structured:
		return e.fromStructured(r, plan)
	case FreeText:
		return e.ExtractAll(r.Text, plan)
	default:
		return newResult(), ErrExtractionEmpty
	}
}

func (e *Extractor) fromStructured(r Structured, plan Plan) (Result, error) {
	res := newResult()
	for _, name := range plan.Sections {
		sec := e.section(name)
		minLength := sec.MinLength
		if minLength <= 0 {
			minLength = DefaultMinLength
		}
		if v, ok := lookupField(r.Fields, sec).(string); ok && Plausible(v, minLength) {
			res.Sections[Key(name)] = strings.TrimSpace(v)
		}
	}
	for _, l := range plan.Lists {
		items := []string{}
		if raw, ok := lookupField(r.Fields, e.section(l.Name)).([]any); ok && l.MaxItems > 0 {
			for _, it := range raw {
				s, _ := it.(string)
				if s = cleanItem(s); s == "" {
					continue
				}
				if len(items) == l.MaxItems {
					break
				}
				items = append(items, s)
			}
		}
		res.Lists[Key(l.Name)] = items
	}
	if res.Empty() {
		return res, ErrExtractionEmpty
	}
	return res, nil
}

func lookupField(fields map[string]any, sec Section) any {
	if v, ok := fields[sec.Name]; ok {
		return v
	}
	for _, a := range sec.Aliases {
		if v, ok := fields[Key(a)]; ok {
			return v
		}
	}
	return nil
}
