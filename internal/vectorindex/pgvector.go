package vectorindex

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/contractiq/backend/internal/models"
)

// PgVector serves similarity queries from the chunks table's pgvector
// column, letting Postgres shard by the tenant partition key. Ties on score
// fall back to created_at then id, which tracks insertion order for rows
// written through the ingestion pipeline.
type PgVector struct {
	db  *pgxpool.Pool
	dim int
}

func NewPgVector(db *pgxpool.Pool, dim int) *PgVector {
	if dim <= 0 {
		dim = models.EmbeddingDim
	}
	return &PgVector{db: db, dim: dim}
}

func (s *PgVector) checkDim(v []float32) error {
	if len(v) != s.dim {
		return fmt.Errorf("%w: embedding has %d dimensions, index expects %d", models.ErrValidation, len(v), s.dim)
	}
	return nil
}

// Insert is a no-op for rows already persisted by the chunk store; it exists
// so callers can treat a PgVector like any other Index. It still validates
// dimensionality symmetrically with the in-memory indexes.
func (s *PgVector) Insert(ctx context.Context, tenantID, chunkID uuid.UUID, embedding []float32) error {
	return s.checkDim(embedding)
}

func (s *PgVector) Remove(ctx context.Context, tenantID, chunkID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		"DELETE FROM chunks WHERE id = $1 AND tenant_id = $2",
		chunkID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("remove chunk vector: %w", err)
	}
	return nil
}

func (s *PgVector) Query(ctx context.Context, tenantID uuid.UUID, embedding []float32, k int) ([]Match, error) {
	if err := s.checkDim(embedding); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = DefaultTopK
	}

	// A zero query vector has no direction; `<=>` would produce NaN
	// distances in Postgres. Mirror the in-memory indexes: every chunk
	// scores 0 and insertion order decides the top k.
	if norm(embedding) == 0 {
		return s.queryZero(ctx, tenantID, k)
	}

	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT id, 1 - (embedding <=> $1) AS score
		 FROM chunks
		 WHERE tenant_id = $2
		 ORDER BY embedding <=> $1, created_at, id
		 LIMIT $3`,
		vec, tenantID, k,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ChunkID, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *PgVector) queryZero(ctx context.Context, tenantID uuid.UUID, k int) ([]Match, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id
		 FROM chunks
		 WHERE tenant_id = $1
		 ORDER BY created_at, id
		 LIMIT $2`,
		tenantID, k,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ChunkID); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
