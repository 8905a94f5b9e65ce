package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects a params struct into the tool wire schema:
// {type:"object", properties:{...}, required:[...]}. Field descriptions come
// from `jsonschema:"description=..."` tags; required fields are those
// without a default and not marked omitempty. A nil params means the tool
// takes no arguments.
func SchemaFor(params interface{}) map[string]interface{} {
	if params == nil {
		return map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}

	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(params)

	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}

	// keep only the keys the providers understand
	delete(m, "$schema")
	delete(m, "$id")
	delete(m, "$defs")
	delete(m, "additionalProperties")
	if _, ok := m["type"]; !ok {
		m["type"] = "object"
	}
	if _, ok := m["properties"]; !ok {
		m["properties"] = map[string]interface{}{}
	}
	return m
}
