package models

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingDim is the fixed dimensionality of chunk embeddings. Every vector
// entering the chunk store or the similarity index is validated against it.
const EmbeddingDim = 384

// Chunk is the unit of retrieval: a fragment of document text with its
// embedding. TenantID is denormalized from the owning document so isolation
// can be enforced without a join. Chunks are immutable after creation.
type Chunk struct {
	ID         uuid.UUID         `json:"id" db:"id"`
	DocumentID uuid.UUID         `json:"document_id" db:"document_id"`
	TenantID   uuid.UUID         `json:"tenant_id" db:"tenant_id"`
	Text       string            `json:"text" db:"text"`
	Embedding  []float32         `json:"-" db:"embedding"`
	Metadata   map[string]string `json:"metadata,omitempty" db:"metadata"`
	Page       int               `json:"page" db:"page"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}
