package embedding

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	parleyErrors "github.com/parley-oss/parley/internal/errors"
)

// Known output sizes for the OpenAI embedding models we accept.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// APIEmbedder calls the OpenAI embeddings endpoint.
type APIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewAPIEmbedder creates an embedder backed by the OpenAI API.
func NewAPIEmbedder(apiKey, model string) (*APIEmbedder, error) {
	if apiKey == "" {
		return nil, parleyErrors.New(parleyErrors.CodeAPIKeyMissing, "OPENAI_API_KEY not set").
			WithSuggestion("Set the OPENAI_API_KEY environment variable or embedding.api_key in parley.yaml")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	dims, ok := modelDimensions[model]
	if !ok {
		dims = 1536
	}

	return &APIEmbedder{
		client:     openai.NewClient(option.WithAPIKey(apiKey)),
		model:      model,
		dimensions: dims,
	}, nil
}

// Embed requests an embedding for a single text.
func (e *APIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, parleyErrors.Wrap(parleyErrors.CodeEmbeddingFailed, "embedding request failed", err)
	}
	if len(resp.Data) == 0 {
		return nil, parleyErrors.New(parleyErrors.CodeEmbeddingFailed, "embedding response contained no data")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dimensions returns the embedding size for the configured model.
func (e *APIEmbedder) Dimensions() int {
	return e.dimensions
}
