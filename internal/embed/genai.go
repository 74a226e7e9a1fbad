package embed

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenAIEmbedder calls Google's Gemini embedding API.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
}

func NewGenAIEmbedder(ctx context.Context, apiKey, model string) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai api key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIEmbedder{client: client, model: model}, nil
}

func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("genai embed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("genai returned no embeddings")
	}
	return result.Embeddings[0].Values, nil
}

func (e *GenAIEmbedder) Dimensions() int { return 768 }

func (e *GenAIEmbedder) Name() string { return "genai:" + e.model }

func (e *GenAIEmbedder) Close() error {
	// *genai.Client has no Close method in this SDK version.
	return nil
}
