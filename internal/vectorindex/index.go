package vectorindex

import (
	"context"
	"math"

	"github.com/google/uuid"
)

// DefaultTopK is the number of matches returned when the caller passes k<=0.
const DefaultTopK = 5

// Match pairs a chunk identifier with its cosine similarity to the query
// vector. Results are ordered by descending score; ties resolve to the
// earlier-inserted chunk.
type Match struct {
	ChunkID uuid.UUID
	Score   float64
}

// Index is a per-tenant partitioned nearest-neighbor structure over chunk
// embeddings. It owns no chunk data: it is derived and rebuildable, keyed by
// chunk ID plus tenant ID. Implementations must never let a query observe a
// partially-inserted vector.
type Index interface {
	Insert(ctx context.Context, tenantID, chunkID uuid.UUID, embedding []float32) error
	Remove(ctx context.Context, tenantID, chunkID uuid.UUID) error
	Query(ctx context.Context, tenantID uuid.UUID, embedding []float32, k int) ([]Match, error)
}

// norm returns the L2 norm of v.
func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Cosine is the dot product of the L2-normalized inputs. A zero vector has
// similarity 0 with every vector; that is a defined edge case, not an error.
func Cosine(a, b []float32) float64 {
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot(a, b) / (na * nb)
}
