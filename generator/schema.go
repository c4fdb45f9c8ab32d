package generator

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const titleSchemaJSON = `{
  "type": "object",
  "required": ["title"],
  "properties": {
    "title": {"type": "string", "minLength": 1}
  }
}`

const verdictSchemaJSON = `{
  "type": "object",
  "required": ["verdict"],
  "properties": {
    "verdict": {"type": "string", "enum": ["approved", "needs_revision"]}
  }
}`

var (
	titleSchema   = mustSchema(titleSchemaJSON)
	verdictSchema = mustSchema(verdictSchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in schema: %v", err))
	}
	return s
}

// validatePayload checks a JSON document against schema and reports every violation.
func validatePayload(schema *gojsonschema.Schema, doc string) error {
	result, err := schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return newLLMError(ErrorKindMalformedOutput, err, "validate model output")
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			msgs[i] = desc.String()
		}
		return newLLMError(ErrorKindMalformedOutput, nil, "schema violation: "+strings.Join(msgs, "; "))
	}
	return nil
}
