package advisory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
)

const advisorySchemaJSON = `{
  "type": "object",
  "required": ["summary", "insights", "guidance", "nextSteps", "statusAdvice"],
  "properties": {
    "summary":      {"type": "string", "minLength": 1},
    "insights":     {"type": "array", "items": {"type": "string"}, "minItems": 1},
    "guidance":     {"type": "string", "minLength": 1},
    "nextSteps":    {"type": "array", "items": {"type": "string"}},
    "draftReply":   {"type": "string"},
    "statusAdvice": {"type": "string"}
  }
}`

var advisorySchema = mustSchema(advisorySchemaJSON)

func mustSchema(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("advisory schema: %v", err))
	}
	return schema
}

// ErrSchemaMismatch marks generated output that does not fit the advisory shape.
var ErrSchemaMismatch = errors.New("generated advisory does not match schema")

// ParseGenerated strips markdown fences from model output, validates the JSON
// against the advisory schema and decodes it.
func ParseGenerated(text string) (domain.Advisory, error) {
	payload := stripFences(text)
	if payload == "" {
		return domain.Advisory{}, fmt.Errorf("%w: empty output", ErrSchemaMismatch)
	}

	res, err := advisorySchema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		return domain.Advisory{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if !res.Valid() {
		var msgs []string
		for i, e := range res.Errors() {
			if i >= 5 {
				break
			}
			msgs = append(msgs, e.String())
		}
		return domain.Advisory{}, fmt.Errorf("%w: %s", ErrSchemaMismatch, strings.Join(msgs, "; "))
	}

	var advice domain.Advisory
	if err := json.Unmarshal([]byte(payload), &advice); err != nil {
		return domain.Advisory{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if advice.NextSteps == nil {
		advice.NextSteps = []string{}
	}
	return advice, nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line, e.g. ```json
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
