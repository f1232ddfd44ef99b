package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/contractiq/backend/internal/models"
)

type entry struct {
	chunkID uuid.UUID
	vec     []float32
	norm    float64
	seq     uint64 // insertion order, the tie-breaker
}

// partition holds one tenant's vectors. Each partition has its own lock, so
// tenants never contend with each other and a query within a tenant never
// sees a half-inserted vector.
type partition struct {
	mu      sync.RWMutex
	entries []entry
	nextSeq uint64
}

// BruteForce is the exact similarity index: a linear cosine scan per tenant
// partition. It is the correctness reference every other index is verified
// against.
type BruteForce struct {
	mu         sync.RWMutex
	dim        int
	partitions map[uuid.UUID]*partition
}

func NewBruteForce(dim int) *BruteForce {
	if dim <= 0 {
		dim = models.EmbeddingDim
	}
	return &BruteForce{
		dim:        dim,
		partitions: make(map[uuid.UUID]*partition),
	}
}

func (b *BruteForce) checkDim(v []float32) error {
	if len(v) != b.dim {
		return fmt.Errorf("%w: embedding has %d dimensions, index expects %d", models.ErrValidation, len(v), b.dim)
	}
	return nil
}

func (b *BruteForce) partition(tenantID uuid.UUID, create bool) *partition {
	b.mu.RLock()
	p := b.partitions[tenantID]
	b.mu.RUnlock()
	if p != nil || !create {
		return p
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if p = b.partitions[tenantID]; p == nil {
		p = &partition{}
		b.partitions[tenantID] = p
	}
	return p
}

func (b *BruteForce) Insert(ctx context.Context, tenantID, chunkID uuid.UUID, embedding []float32) error {
	if err := b.checkDim(embedding); err != nil {
		return err
	}

	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	p := b.partition(tenantID, true)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry{
		chunkID: chunkID,
		vec:     vec,
		norm:    norm(vec),
		seq:     p.nextSeq,
	})
	p.nextSeq++
	return nil
}

// Remove drops a vector from the tenant's partition. Removing an absent
// chunk is a no-op so cascade deletes stay idempotent.
func (b *BruteForce) Remove(ctx context.Context, tenantID, chunkID uuid.UUID) error {
	p := b.partition(tenantID, false)
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.entries {
		if p.entries[i].chunkID == chunkID {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (b *BruteForce) Query(ctx context.Context, tenantID uuid.UUID, embedding []float32, k int) ([]Match, error) {
	if err := b.checkDim(embedding); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = DefaultTopK
	}

	p := b.partition(tenantID, false)
	if p == nil {
		return nil, nil
	}

	qnorm := norm(embedding)

	p.mu.RLock()
	scored := make([]Match, 0, len(p.entries))
	for _, e := range p.entries {
		var score float64
		if qnorm != 0 && e.norm != 0 {
			score = dot(e.vec, embedding) / (e.norm * qnorm)
		}
		scored = append(scored, Match{ChunkID: e.chunkID, Score: score})
	}
	p.mu.RUnlock()

	// Entries are scanned in insertion order, so a stable sort breaks score
	// ties toward the earlier-inserted chunk.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Size reports the number of vectors in a tenant's partition.
func (b *BruteForce) Size(tenantID uuid.UUID) int {
	p := b.partition(tenantID, false)
	if p == nil {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}
