package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/colligo/internal/models"
	"google.golang.org/genai"
)

func TestToGeminiSchema(t *testing.T) {
	assert.Nil(t, toGeminiSchema(nil))

	schema := toGeminiSchema(map[string]interface{}{
		"type":        "object",
		"description": "crawl parameters",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "page to fetch",
			},
			"format": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"full", "minimal"},
			},
			"tags": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
		},
		"required": []interface{}{"url"},
	})
	require.NotNil(t, schema)

	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Equal(t, "crawl parameters", schema.Description)
	assert.Equal(t, []string{"url"}, schema.Required)

	require.Contains(t, schema.Properties, "url")
	assert.Equal(t, genai.TypeString, schema.Properties["url"].Type)
	assert.Equal(t, "page to fetch", schema.Properties["url"].Description)

	require.Contains(t, schema.Properties, "format")
	assert.Equal(t, []string{"full", "minimal"}, schema.Properties["format"].Enum)

	require.Contains(t, schema.Properties, "tags")
	require.NotNil(t, schema.Properties["tags"].Items)
	assert.Equal(t, genai.TypeString, schema.Properties["tags"].Items.Type)
}

func TestConvertToolsToGemini(t *testing.T) {
	assert.Nil(t, convertToolsToGemini(nil), "no tools means no tool block")

	tools := convertToolsToGemini([]models.ToolSchema{
		{Name: "crawl", Description: "fetch a page", InputSchema: map[string]interface{}{"type": "object"}},
		{Name: "search", Description: "query the web"},
	})
	require.Len(t, tools, 1)
	require.Len(t, tools[0].FunctionDeclarations, 2)

	crawl := tools[0].FunctionDeclarations[0]
	assert.Equal(t, "crawl", crawl.Name)
	assert.Equal(t, "fetch a page", crawl.Description)
	require.NotNil(t, crawl.Parameters)
	assert.Equal(t, genai.TypeObject, crawl.Parameters.Type)

	assert.Nil(t, tools[0].FunctionDeclarations[1].Parameters, "schemaless tools carry no parameters")
}
