package gateway

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// methodSchemas declares the parameter shape for each RPC method. Params
// are validated before the handler runs so handlers can trust their input
// types.
var methodSchemas = map[string]string{
	"memory.add": `{
		"type": "object",
		"properties": {
			"content": {"type": "string", "minLength": 1},
			"project": {"type": "string"},
			"tags": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["content"],
		"additionalProperties": false
	}`,
	"memory.add_batch": `{
		"type": "object",
		"properties": {
			"items": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"properties": {
						"content": {"type": "string", "minLength": 1},
						"project": {"type": "string"},
						"tags": {"type": "array", "items": {"type": "string"}}
					},
					"required": ["content"],
					"additionalProperties": false
				}
			}
		},
		"required": ["items"],
		"additionalProperties": false
	}`,
	"memory.update": `{
		"type": "object",
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"content": {"type": "string", "minLength": 1},
			"project": {"type": "string"},
			"tags": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["id"],
		"additionalProperties": false
	}`,
	"memory.delete": `{
		"type": "object",
		"properties": {
			"id": {"type": "string", "minLength": 1}
		},
		"required": ["id"],
		"additionalProperties": false
	}`,
	"memory.get": `{
		"type": "object",
		"properties": {
			"id": {"type": "string", "minLength": 1}
		},
		"required": ["id"],
		"additionalProperties": false
	}`,
	"memory.list": `{
		"type": "object",
		"properties": {
			"project": {"type": "string"},
			"tags": {"type": "array", "items": {"type": "string"}},
			"limit": {"type": "integer", "minimum": 1},
			"offset": {"type": "integer", "minimum": 0}
		},
		"additionalProperties": false
	}`,
	"memory.search": `{
		"type": "object",
		"properties": {
			"query": {"type": "string", "minLength": 1},
			"limit": {"type": "integer", "minimum": 1, "maximum": 100},
			"boostFrequent": {"type": "boolean"}
		},
		"required": ["query"],
		"additionalProperties": false
	}`,
	"memory.related": `{
		"type": "object",
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"limit": {"type": "integer", "minimum": 1, "maximum": 100},
			"boostFrequent": {"type": "boolean"}
		},
		"required": ["id"],
		"additionalProperties": false
	}`,
	"memory.import": `{
		"type": "object",
		"additionalProperties": false
	}`,
	"memory.status": `{
		"type": "object",
		"additionalProperties": false
	}`,
}

// schemaSet holds the compiled per-method schemas
type schemaSet struct {
	compiled map[string]*gojsonschema.Schema
}

func newSchemaSet() *schemaSet {
	compiled := make(map[string]*gojsonschema.Schema, len(methodSchemas))
	for method, raw := range methodSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			// Schemas are compile-time constants; a bad one is a bug.
			panic(fmt.Sprintf("invalid schema for %s: %v", method, err))
		}
		compiled[method] = schema
	}
	return &schemaSet{compiled: compiled}
}

// validate checks params against the method's schema. Methods without a
// declared schema are not validated.
func (s *schemaSet) validate(method string, params map[string]interface{}) *RPCError {
	schema, ok := s.compiled[method]
	if !ok {
		return nil
	}

	if params == nil {
		params = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return &RPCError{
			Code:    InvalidParams,
			Message: "Invalid params",
			Data:    err.Error(),
		}
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}

	return &RPCError{
		Code:    InvalidParams,
		Message: "Invalid params",
		Data:    strings.Join(details, "; "),
	}
}
