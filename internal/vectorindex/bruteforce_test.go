package vectorindex

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractiq/backend/internal/models"
)

func vec(dim int, values ...float32) []float32 {
	v := make([]float32, dim)
	copy(v, values)
	return v
}

func TestBruteForceQueryRanksByCosine(t *testing.T) {
	ctx := context.Background()
	idx := NewBruteForce(3)
	tenant := uuid.New()

	far := uuid.New()
	near := uuid.New()
	opposite := uuid.New()

	require.NoError(t, idx.Insert(ctx, tenant, far, vec(3, 0, 1, 0)))
	require.NoError(t, idx.Insert(ctx, tenant, near, vec(3, 1, 0.1, 0)))
	require.NoError(t, idx.Insert(ctx, tenant, opposite, vec(3, -1, 0, 0)))

	matches, err := idx.Query(ctx, tenant, vec(3, 1, 0, 0), 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, near, matches[0].ChunkID)
	assert.Equal(t, far, matches[1].ChunkID)
	assert.Equal(t, opposite, matches[2].ChunkID)
	assert.InDelta(t, -1.0, matches[2].Score, 1e-9)
}

func TestBruteForceSelfSimilarityIsOne(t *testing.T) {
	ctx := context.Background()
	idx := NewBruteForce(4)
	tenant := uuid.New()
	id := uuid.New()

	v := vec(4, 0.3, -0.7, 0.2, 0.9)
	require.NoError(t, idx.Insert(ctx, tenant, id, v))

	matches, err := idx.Query(ctx, tenant, v, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
}

func TestBruteForceZeroVectorScoresZero(t *testing.T) {
	ctx := context.Background()
	idx := NewBruteForce(3)
	tenant := uuid.New()
	id := uuid.New()

	require.NoError(t, idx.Insert(ctx, tenant, id, vec(3)))

	matches, err := idx.Query(ctx, tenant, vec(3, 1, 0, 0), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Zero(t, matches[0].Score)

	// Zero query against a non-zero vector scores zero too.
	idx2 := NewBruteForce(3)
	require.NoError(t, idx2.Insert(ctx, tenant, id, vec(3, 1, 0, 0)))
	matches, err = idx2.Query(ctx, tenant, vec(3), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Zero(t, matches[0].Score)
}

func TestBruteForceDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewBruteForce(3)
	tenant := uuid.New()

	err := idx.Insert(ctx, tenant, uuid.New(), vec(2, 1, 1))
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = idx.Query(ctx, tenant, vec(5), 1)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestBruteForceTenantPartitionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	idx := NewBruteForce(3)
	tenantA := uuid.New()
	tenantB := uuid.New()

	idA := uuid.New()
	require.NoError(t, idx.Insert(ctx, tenantA, idA, vec(3, 1, 0, 0)))

	matches, err := idx.Query(ctx, tenantB, vec(3, 1, 0, 0), 10)
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = idx.Query(ctx, tenantA, vec(3, 1, 0, 0), 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, idA, matches[0].ChunkID)
}

func TestBruteForceTieBreaksByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	idx := NewBruteForce(3)
	tenant := uuid.New()

	first := uuid.New()
	second := uuid.New()
	third := uuid.New()

	// Identical vectors, identical scores: order of insertion must decide.
	same := vec(3, 0, 1, 1)
	require.NoError(t, idx.Insert(ctx, tenant, first, same))
	require.NoError(t, idx.Insert(ctx, tenant, second, same))
	require.NoError(t, idx.Insert(ctx, tenant, third, same))

	matches, err := idx.Query(ctx, tenant, vec(3, 0, 1, 1), 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, first, matches[0].ChunkID)
	assert.Equal(t, second, matches[1].ChunkID)
	assert.Equal(t, third, matches[2].ChunkID)
}

func TestBruteForceTopKTruncates(t *testing.T) {
	ctx := context.Background()
	idx := NewBruteForce(2)
	tenant := uuid.New()

	for i := 0; i < 10; i++ {
		require.NoError(t, idx.Insert(ctx, tenant, uuid.New(), vec(2, 1, float32(i))))
	}

	matches, err := idx.Query(ctx, tenant, vec(2, 1, 0), 3)
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	// k <= 0 falls back to the default.
	matches, err = idx.Query(ctx, tenant, vec(2, 1, 0), 0)
	require.NoError(t, err)
	assert.Len(t, matches, DefaultTopK)
}

func TestBruteForceRemove(t *testing.T) {
	ctx := context.Background()
	idx := NewBruteForce(3)
	tenant := uuid.New()
	id := uuid.New()

	require.NoError(t, idx.Insert(ctx, tenant, id, vec(3, 1, 0, 0)))
	require.Equal(t, 1, idx.Size(tenant))

	require.NoError(t, idx.Remove(ctx, tenant, id))
	assert.Zero(t, idx.Size(tenant))

	// Removing again, or from an unknown tenant, is a no-op.
	require.NoError(t, idx.Remove(ctx, tenant, id))
	require.NoError(t, idx.Remove(ctx, uuid.New(), id))
}

func TestCosineHelpers(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	assert.InDelta(t, 0.0, Cosine(a, b), 1e-9)
	assert.InDelta(t, 1.0, Cosine(a, a), 1e-9)
	assert.Zero(t, Cosine(a, []float32{0, 0, 0}))
}
