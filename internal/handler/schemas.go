package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/pesio-ai/be-sow-approvals/internal/errors"
)

const schemaRegisterDocument = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["amount"],
  "properties": {
    "id": { "type": "string", "format": "uuid" },
    "amount": { "type": "integer", "minimum": 0 }
  },
  "additionalProperties": false
}`

const schemaStartWorkflow = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["amount"],
  "properties": {
    "amount": { "type": "integer", "minimum": 0 }
  },
  "additionalProperties": false
}`

const schemaActOnStage = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["action"],
  "properties": {
    "action": { "type": "string", "enum": ["approve", "reject", "skip"] }
  },
  "additionalProperties": false
}`

const schemaAddComment = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["text"],
  "properties": {
    "text": { "type": "string", "minLength": 1 },
    "parent_id": { "type": ["string", "null"] },
    "is_internal": { "type": "boolean" }
  },
  "additionalProperties": false
}`

const schemaStage = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "assigned_role"],
  "properties": {
    "name": { "type": "string", "minLength": 1, "maxLength": 100 },
    "assigned_role": { "type": "string", "minLength": 1 },
    "sort_order": { "type": "integer" },
    "auto_approve": { "type": "boolean" },
    "is_active": { "type": "boolean" }
  },
  "additionalProperties": false
}`

const schemaRule = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["condition_type", "condition_value", "stage_id"],
  "properties": {
    "condition_type": { "type": "string", "minLength": 1 },
    "condition_value": { "type": "object" },
    "stage_id": { "type": "string", "minLength": 1 },
    "sort_order": { "type": "integer" },
    "is_active": { "type": "boolean" }
  },
  "additionalProperties": false
}`

var (
	registerDocumentLoader = gojsonschema.NewStringLoader(schemaRegisterDocument)
	startWorkflowLoader    = gojsonschema.NewStringLoader(schemaStartWorkflow)
	actOnStageLoader       = gojsonschema.NewStringLoader(schemaActOnStage)
	addCommentLoader       = gojsonschema.NewStringLoader(schemaAddComment)
	stageLoader            = gojsonschema.NewStringLoader(schemaStage)
	ruleLoader             = gojsonschema.NewStringLoader(schemaRule)
)

// decodeBody reads the request body, checks it against schema and decodes it
// into dst. Every failure is reported as invalid input.
func decodeBody(r *http.Request, schema gojsonschema.JSONLoader, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return errors.InvalidInput("body", "unreadable request body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errors.InvalidInput("body", "request body is required")
	}
	if err := validateJSONSchema(schema, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.InvalidInput("body", err.Error())
	}
	return nil
}

func validateJSONSchema(schema gojsonschema.JSONLoader, body []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return errors.InvalidInput("body", fmt.Sprintf("malformed JSON: %v", err))
	}
	if result.Valid() {
		return nil
	}

	first := result.Errors()[0]
	field := first.Field()
	if field == "(root)" {
		if p, ok := first.Details()["property"].(string); ok {
			field = p
		} else {
			field = "body"
		}
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.InvalidInput(field, strings.Join(msgs, "; "))
}
