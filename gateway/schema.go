package gateway

import (
	"fmt"

	"github.com/kaptinlin/jsonschema"

	"github.com/SereneyePro/rrweb-uploader/core"
)

// Request shapes for the header-authenticated path. Event payloads stay
// unconstrained: records are opaque past ingestion, and the sparsest
// accepted payload is an empty object.
const (
	startSchemaJSON = `{
		"type": "object",
		"required": ["sessionId"],
		"properties": {
			"sessionId": {"type": "string", "minLength": 1},
			"meta": {"type": "object"}
		}
	}`

	chunkSchemaJSON = `{
		"type": "object",
		"required": ["sessionId", "events"],
		"properties": {
			"sessionId": {"type": "string", "minLength": 1},
			"events": {"type": "array"}
		}
	}`

	finishSchemaJSON = `{
		"type": "object",
		"required": ["sessionId"],
		"properties": {
			"sessionId": {"type": "string", "minLength": 1},
			"meta": {"type": "object"}
		}
	}`

	mergeSchemaJSON = `{
		"type": "object",
		"required": ["ids"],
		"properties": {
			"ids": {"type": "array", "items": {"type": "string"}}
		}
	}`
)

var (
	startSchema  = mustCompileSchema(startSchemaJSON)
	chunkSchema  = mustCompileSchema(chunkSchemaJSON)
	finishSchema = mustCompileSchema(finishSchemaJSON)
	mergeSchema  = mustCompileSchema(mergeSchemaJSON)
)

func mustCompileSchema(src string) *jsonschema.Schema {
	schema, err := jsonschema.NewCompiler().Compile([]byte(src))
	if err != nil {
		panic(fmt.Sprintf("gateway: invalid request schema: %v", err))
	}
	return schema
}

// validateBody checks the request body against the route's schema,
// reporting violations as BadRequest.
func validateBody(schema *jsonschema.Schema, data []byte) error {
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("%w: %v", core.ErrBadRequest, result.Errors)
}
