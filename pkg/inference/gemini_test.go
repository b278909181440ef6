package inference

import (
	"testing"

	"github.com/openai/openai-go/v3"

	"plottheplot/pkg/schema"
)

func TestGenerationConfig_CarriesResponseSchema(t *testing.T) {
	params := &openai.ChatCompletionNewParams{
		ResponseFormat: schema.AnalysisResponseFormat(),
		Temperature:    openai.Float(0.8),
	}

	config := generationConfig(params, "You extract characters.")
	if config.ResponseJsonSchema == nil {
		t.Fatal("Expected the response schema to carry over")
	}
	if config.ResponseJsonSchema != schema.AnalysisSchema {
		t.Error("Expected the extraction schema on the generation config")
	}
	if config.ResponseMIMEType != "application/json" {
		t.Errorf("Unexpected response MIME type: %q", config.ResponseMIMEType)
	}
	if config.Temperature == nil || *config.Temperature != float32(0.8) {
		t.Errorf("Expected temperature to carry over, got %v", config.Temperature)
	}
}

func TestGenerationConfig_NoResponseFormat(t *testing.T) {
	config := generationConfig(new(openai.ChatCompletionNewParams), "system")
	if config.ResponseJsonSchema != nil {
		t.Errorf("Expected no schema without a response format, got %v", config.ResponseJsonSchema)
	}
}
