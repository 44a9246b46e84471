package postgres

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/weavit/core"
)

func TestIDRoundTrip(t *testing.T) {
	ids := []core.ID{
		0,
		1,
		core.IDFromContent("document"),
		core.ID(math.MaxInt64),
		core.ID(math.MaxInt64) + 1,
		core.ID(math.MaxUint64),
	}
	for _, id := range ids {
		assert.Equal(t, id, idFromDB(idToDB(id)))
	}
}

func TestIDHighBitMapsToNegative(t *testing.T) {
	// IDs with the high bit set appear negative in SQL but keep their
	// bit pattern.
	assert.Equal(t, int64(-1), idToDB(core.ID(math.MaxUint64)))
}

func TestEmbeddable(t *testing.T) {
	chunks := []*core.Chunk{
		{Id: 1, Embedding: []float32{0.1}},
		{Id: 2},
		{Id: 3, Embedding: []float32{}},
		{Id: 4, Embedding: []float32{0.2, 0.3}},
	}

	got := embeddable(chunks)
	require.Len(t, got, 2)
	assert.Equal(t, core.ID(1), got[0].Id)
	assert.Equal(t, core.ID(4), got[1].Id)

	assert.Empty(t, embeddable(nil))
}

func TestVectorSchema(t *testing.T) {
	schema := vectorSchema(1536, 200)
	assert.Contains(t, schema, "embedding vector(1536)")
	assert.Contains(t, schema, "lists = 200")
	assert.Contains(t, schema, "CREATE EXTENSION IF NOT EXISTS vector")
	assert.Contains(t, schema, "vector_cosine_ops")
}
