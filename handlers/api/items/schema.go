package items

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// elementSchema constrains request bodies. Kind-specific payload keys are
// open; only the shared keys are typed.
const elementSchema = `{
	"type": "object",
	"properties": {
		"type": {"enum": ["note", "task", "image", "audio", "scribble"]},
		"x": {"type": "integer"},
		"y": {"type": "integer"},
		"title": {"type": ["string", "null"]},
		"content": {"type": ["string", "null"]},
		"transcription": {"type": ["string", "null"]},
		"completed": {"type": "boolean"},
		"is_edited": {"type": "boolean"},
		"priority": {"enum": ["low", "medium", "high"]},
		"repeat": {"enum": ["yes", "no"]}
	}
}`

var (
	updateSchema = mustSchema(elementSchema)
	createSchema = mustSchema(strings.Replace(elementSchema, `"type": "object",`, `"type": "object", "required": ["x", "y"],`, 1))
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compiling element schema: %v", err))
	}
	return schema
}

// fieldError mirrors one entry of a validation failure's detail list.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// validate returns nil when body satisfies schema, else one fieldError per violation.
func validate(schema *gojsonschema.Schema, body []byte) ([]fieldError, error) {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}
	errs := make([]fieldError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		field := re.Field()
		if p, ok := re.Details()["property"].(string); ok && field == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY {
			field = p
		}
		errs = append(errs, fieldError{
			Loc:  []string{"body", field},
			Msg:  re.Description(),
			Type: re.Type(),
		})
	}
	return errs, nil
}
