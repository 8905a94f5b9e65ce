package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleParams struct {
	URL       string `json:"url" jsonschema:"description=Page URL to crawl"`
	MaxPages  int    `json:"max_pages,omitempty" jsonschema:"description=Page cap"`
	Recursive bool   `json:"recursive,omitempty"`
}

func TestSchemaForNil(t *testing.T) {
	schema := SchemaFor(nil)
	assert.Equal(t, "object", schema["type"])
	assert.NotNil(t, schema["properties"])
	assert.Empty(t, schema["properties"])
}

func TestSchemaForStruct(t *testing.T) {
	schema := SchemaFor(&sampleParams{})

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "url")
	assert.Contains(t, props, "max_pages")
	assert.Contains(t, props, "recursive")

	urlProp, ok := props["url"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "string", urlProp["type"])
	assert.Equal(t, "Page URL to crawl", urlProp["description"])

	required, ok := schema["required"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, required, "url")
	assert.NotContains(t, required, "max_pages", "omitempty fields are optional")
}

func TestSchemaForStripsReflectorKeys(t *testing.T) {
	schema := SchemaFor(&sampleParams{})
	assert.NotContains(t, schema, "$schema")
	assert.NotContains(t, schema, "$id")
	assert.NotContains(t, schema, "$defs")
	assert.NotContains(t, schema, "additionalProperties")
}
