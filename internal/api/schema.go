package api

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const answerSchemaURL = "schema://geoquiz/answer.json"

const answerSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["question_id"],
  "properties": {
    "question_id": {"type": "integer", "minimum": 1},
    "answer_id": {"type": "integer", "minimum": 1},
    "answer_text": {"type": "string", "minLength": 1, "maxLength": 2000}
  },
  "oneOf": [
    {"required": ["answer_id"]},
    {"required": ["answer_text"]}
  ],
  "additionalProperties": false
}`

const feedbackSchemaURL = "schema://geoquiz/feedback.json"

const feedbackSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["feedback_id"],
  "properties": {
    "feedback_id": {"type": "integer", "minimum": 1},
    "triangle_types": {"type": "array", "items": {"type": "integer", "minimum": 0}},
    "helpful_theorems": {"type": "array", "items": {"type": "integer", "minimum": 1}}
  },
  "additionalProperties": false
}`

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func compileSchemas() (map[string]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for url, src := range map[string]string{
			answerSchemaURL:   answerSchema,
			feedbackSchemaURL: feedbackSchema,
		} {
			doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
			if err != nil {
				schemasErr = fmt.Errorf("parse %s: %w", url, err)
				return
			}
			if err := c.AddResource(url, doc); err != nil {
				schemasErr = fmt.Errorf("add resource %s: %w", url, err)
				return
			}
		}
		out := make(map[string]*jsonschema.Schema, 2)
		for _, url := range []string{answerSchemaURL, feedbackSchemaURL} {
			sch, err := c.Compile(url)
			if err != nil {
				schemasErr = fmt.Errorf("compile %s: %w", url, err)
				return
			}
			out[url] = sch
		}
		schemas = out
	})
	return schemas, schemasErr
}

// validateBody checks a JSON request body against the schema at url.
func validateBody(url string, body []byte) error {
	all, err := compileSchemas()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: malformed JSON: %v", errBadRequest, err)
	}
	if err := all[url].Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
