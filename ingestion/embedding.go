package ingestion

import (
	"context"
	"sync"

	"github.com/poiesic/weavit/core"
)

// embedChunks fills chunk embeddings through the embedding pool. Each
// request carries its own timeout and passes the shared rate limiter,
// so a slow embedding backend cannot starve document-level work. The
// returned IDs are the chunks left without a vector; they never fail
// the document and are journaled for the reconciliation sweep.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []*core.Chunk) []core.ID {
	embedder := p.provider.Embedder()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed []core.ID

	markFailed := func(id core.ID) {
		mu.Lock()
		failed = append(failed, id)
		mu.Unlock()
	}

	for _, c := range chunks {
		// Chunk IDs hash document identity and position, so a cache hit
		// means this exact content was embedded before.
		if vector, ok := p.cache.Get(c.Id); ok {
			c.Embedding = vector
			continue
		}

		c := c
		wg.Add(1)
		task := func() {
			defer wg.Done()

			if err := p.limiter.Wait(ctx); err != nil {
				markFailed(c.Id)
				return
			}

			requestCtx, cancel := context.WithTimeout(ctx, p.embedTimeout)
			vector, err := embedder.EmbedText(requestCtx, c.Content)
			cancel()
			if err != nil {
				p.logger.Warn("embedding request failed",
					"chunk", c.Id, "index", c.Index, "err", err)
				markFailed(c.Id)
				return
			}

			c.Embedding = vector
			p.cache.Add(c.Id, vector)
		}

		if err := p.embedPool.Submit(task); err != nil {
			// Pool released mid-job; count the chunk as failed rather
			// than embedding inline past the concurrency bound.
			wg.Done()
			markFailed(c.Id)
		}
	}

	wg.Wait()
	return failed
}
