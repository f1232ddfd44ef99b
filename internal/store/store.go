package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/contractiq/backend/internal/models"
)

// DocumentFilter narrows a document listing. Zero values match everything.
// These are plain attribute filters; ranking lives in the similarity index.
type DocumentFilter struct {
	Status    string
	RiskScore string
	Filename  string // case-insensitive substring match
}

// TenantStore holds tenant records. Tenants are soft-deactivated, never
// removed, so document ownership references stay valid forever.
type TenantStore interface {
	Create(ctx context.Context, t *models.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetByEmail(ctx context.Context, email string) (*models.Tenant, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error
}

// DocumentStore holds per-tenant document metadata. Every operation takes
// the calling tenant's ID and fails with models.ErrAccessDenied when the
// target document belongs to someone else.
type DocumentStore interface {
	CreateDocument(ctx context.Context, tenantID uuid.UUID, d *models.Document) error
	GetDocument(ctx context.Context, tenantID, docID uuid.UUID) (*models.Document, error)
	ListDocuments(ctx context.Context, tenantID uuid.UUID, f DocumentFilter) ([]models.Document, error)
	// UpdateDocumentAnalysis writes the two mutable fields, status and risk
	// score. Reserved for the ingestion/analysis pipeline.
	UpdateDocumentAnalysis(ctx context.Context, tenantID, docID uuid.UUID, status, riskScore string) error
	// DeleteDocument removes the metadata record only; callers cascade to
	// chunks and the index through the contracts service.
	DeleteDocument(ctx context.Context, tenantID, docID uuid.UUID) error
	// RefreshStatuses re-derives every document's lifecycle status from its
	// expiry date. It spans tenants because it runs as the analysis
	// collaborator, not on behalf of a caller. Returns how many rows
	// changed.
	RefreshStatuses(ctx context.Context, now time.Time, renewalWindow time.Duration) (int, error)
}

// ChunkStore holds immutable text fragments with embeddings. The explicit
// tenant ID on every call is the isolation mechanism; it is enforced here,
// not trusted to callers.
type ChunkStore interface {
	Insert(ctx context.Context, tenantID uuid.UUID, c *models.Chunk) error
	GetByDocument(ctx context.Context, tenantID, docID uuid.UUID) ([]models.Chunk, error)
	GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.Chunk, error)
	// DeleteByDocument removes every chunk of a document. Idempotent:
	// deleting an already-empty document is not an error.
	DeleteByDocument(ctx context.Context, tenantID, docID uuid.UUID) error
}
