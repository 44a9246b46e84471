package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/weavit/ai"
	"github.com/poiesic/weavit/core"
	"github.com/poiesic/weavit/storage"
)

// DefaultMaxHits caps results when the caller passes a non-positive limit.
const DefaultMaxHits = 10

// verbatimBoost is added to a hit's score when the chunk contains every
// significant word of the query.
const verbatimBoost = 0.3

// Result is one scored search hit with its parent document attached.
type Result struct {
	ChunkId    core.ID
	DocumentId core.ID
	Content    string
	Score      float64
	Document   *core.Document
}

// Searcher answers free-text queries against the vector store and
// resolves hits back to their documents in the relational store.
type Searcher struct {
	documents storage.DocumentStore
	vectors   storage.VectorStore
	embedder  ai.Embedder
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	documents storage.DocumentStore,
	vectors storage.VectorStore,
	provider ai.AIProvider,
	opts ...Option,
) (*Searcher, error) {
	if documents == nil {
		return nil, ErrDocumentStoreRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		documents: documents,
		vectors:   vectors,
		embedder:  provider.Embedder(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Query embeds the query text, runs a similarity search, and returns up
// to maxHits results ranked by score. Hits whose chunk contains every
// significant query word get a verbatim boost on top of their vector
// score. Each result carries its parent document when the relational
// store still has it.
func (s *Searcher) Query(ctx context.Context, query string, maxHits int) ([]*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if maxHits <= 0 {
		maxHits = DefaultMaxHits
	}

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}

	hits, err := s.vectors.Search(ctx, embedding, maxHits)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}
	if len(hits) == 0 {
		return []*Result{}, nil
	}

	// One lookup per distinct document. A hit whose document has been
	// deleted since indexing still surfaces, just without the document.
	docs := make(map[core.ID]*core.Document, len(hits))
	for _, hit := range hits {
		if _, ok := docs[hit.DocumentId]; ok {
			continue
		}
		doc, err := s.documents.GetDocument(ctx, hit.DocumentId)
		if err != nil {
			s.logger.Warn("error looking up document for hit",
				"document", hit.DocumentId, "err", err)
			continue
		}
		docs[hit.DocumentId] = doc
	}

	results := make([]*Result, 0, len(hits))
	for _, hit := range hits {
		score := hit.Score
		if containsAllQueryWords(hit.Content, query) {
			score += verbatimBoost
		}
		results = append(results, &Result{
			ChunkId:    hit.ChunkId,
			DocumentId: hit.DocumentId,
			Content:    hit.Content,
			Score:      score,
			Document:   docs[hit.DocumentId],
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxHits {
		results = results[:maxHits]
	}

	return results, nil
}
