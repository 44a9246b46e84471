// Package gemini provides AI service implementations backed by the Google
// Gemini API (github.com/google/generative-ai-go).
//
// Embeddings use the Gemini embedding models with batch support; entity
// extraction uses a generative model pinned to JSON response mode.
// Transcription is not available through this provider.
//
//	cfg := ai.NewConfig(
//	    ai.WithAPIKey(os.Getenv("GEMINI_API_KEY")),
//	    ai.WithEmbeddingModel("gemini-embedding-001"),
//	    ai.WithExtractorModel("gemini-2.0-flash"),
//	)
//	provider, err := gemini.NewProvider(ctx, cfg)
package gemini
