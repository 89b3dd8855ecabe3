package tool

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var emptyObjectSchema = map[string]interface{}{
	"type":       "object",
	"properties": map[string]interface{}{},
}

// compileSchema compiles a tool parameter declaration. A nil declaration accepts any object.
func compileSchema(name string, params map[string]interface{}) (*jsonschema.Schema, error) {
	if params == nil {
		params = emptyObjectSchema
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	return jsonschema.CompileString(name+".schema.json", string(raw))
}

// validateArgs checks args against schema. Arguments are round-tripped through JSON so
// Go values such as int or []string validate the same way the decoded model output does.
func validateArgs(schema *jsonschema.Schema, args map[string]interface{}) error {
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	var decoded interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return schema.Validate(decoded)
}
