package gemini

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"github.com/poiesic/weavit/ai"
)

// Embedder implements ai.Embedder using Gemini embedding models.
type Embedder struct {
	model  *genai.EmbeddingModel
	logger *slog.Logger
}

// newEmbedder is an internal constructor; the provider owns the client.
func newEmbedder(client *genai.Client, config *ai.Config) *Embedder {
	return &Embedder{
		model:  client.EmbeddingModel(config.EmbeddingModel),
		logger: slog.Default().With("component", "gemini-embedder"),
	}
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, err
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		e.logger.Warn("embedder returned empty result")
		return []float32{}, nil
	}

	return res.Embedding.Values, nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	batch := e.model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	res, err := e.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}

	if len(res.Embeddings) != len(texts) {
		return nil, errors.New("gemini embedder: response count does not match input count")
	}

	out := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}
