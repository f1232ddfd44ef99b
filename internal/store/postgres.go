package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/contractiq/backend/internal/audit"
	"github.com/contractiq/backend/internal/models"
)

// Postgres backs the stores with pgx. Chunks and document deletion share a
// transaction so no orphaned chunk can outlive its document. Ownership is
// checked in SQL (tenant_id predicates) and mismatches are distinguished
// from absence by a second existence probe, so AccessDenied never degrades
// into NotFound.
type Postgres struct {
	db    *pgxpool.Pool
	dim   int
	audit *audit.Logger
}

func NewPostgres(db *pgxpool.Pool, dim int, auditLog *audit.Logger) *Postgres {
	if dim <= 0 {
		dim = models.EmbeddingDim
	}
	return &Postgres{db: db, dim: dim, audit: auditLog}
}

// --- TenantStore ---

func (s *Postgres) Create(ctx context.Context, t *models.Tenant) error {
	if t.Email == "" || t.Name == "" {
		return fmt.Errorf("%w: tenant name and email are required", models.ErrValidation)
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO tenants (id, name, email, password_hash)
		 VALUES ($1, $2, lower($3), $4)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING created_at`,
		t.ID, t.Name, t.Email, t.PasswordHash,
	).Scan(&t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: email already registered", models.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (s *Postgres) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.scanTenant(ctx,
		"SELECT id, name, email, password_hash, created_at, deactivated_at FROM tenants WHERE id = $1", id)
}

func (s *Postgres) GetByEmail(ctx context.Context, email string) (*models.Tenant, error) {
	return s.scanTenant(ctx,
		"SELECT id, name, email, password_hash, created_at, deactivated_at FROM tenants WHERE email = lower($1)", email)
}

func (s *Postgres) scanTenant(ctx context.Context, query string, arg any) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.QueryRow(ctx, query, arg).
		Scan(&t.ID, &t.Name, &t.Email, &t.PasswordHash, &t.CreatedAt, &t.DeactivatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: tenant", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

func (s *Postgres) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := s.db.Exec(ctx, "UPDATE tenants SET password_hash = $1 WHERE id = $2", passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: tenant %s", models.ErrNotFound, id)
	}
	return nil
}

func (s *Postgres) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx, "UPDATE tenants SET deactivated_at = $1 WHERE id = $2", at, id)
	if err != nil {
		return fmt.Errorf("deactivate tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: tenant %s", models.ErrNotFound, id)
	}
	return nil
}

// --- DocumentStore ---

func (s *Postgres) CreateDocument(ctx context.Context, tenantID uuid.UUID, d *models.Document) error {
	if d.Filename == "" {
		return fmt.Errorf("%w: filename is required", models.ErrValidation)
	}
	if d.TenantID != tenantID {
		s.audit.AccessDenied(ctx, tenantID, "document", d.ID)
		return fmt.Errorf("%w: document owner %s does not match caller %s", models.ErrAccessDenied, d.TenantID, tenantID)
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = models.DocStatusActive
	}
	if d.RiskScore == "" {
		d.RiskScore = models.RiskLow
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO documents (id, tenant_id, filename, file_path, file_type, status, risk_score, expiry_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING uploaded_at`,
		d.ID, d.TenantID, d.Filename, d.FilePath, d.FileType, d.Status, d.RiskScore, d.ExpiryDate,
	).Scan(&d.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *Postgres) GetDocument(ctx context.Context, tenantID, docID uuid.UUID) (*models.Document, error) {
	var d models.Document
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, filename, file_path, file_type, status, risk_score, expiry_date, uploaded_at
		 FROM documents WHERE id = $1 AND tenant_id = $2`,
		docID, tenantID,
	).Scan(&d.ID, &d.TenantID, &d.Filename, &d.FilePath, &d.FileType, &d.Status, &d.RiskScore, &d.ExpiryDate, &d.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.documentMiss(ctx, tenantID, docID)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &d, nil
}

// documentMiss decides whether a failed tenant-scoped lookup is NotFound or
// a cross-tenant access attempt.
func (s *Postgres) documentMiss(ctx context.Context, tenantID, docID uuid.UUID) error {
	var exists bool
	if err := s.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1)", docID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check document: %w", err)
	}
	if exists {
		s.audit.AccessDenied(ctx, tenantID, "document", docID)
		return fmt.Errorf("%w: document %s", models.ErrAccessDenied, docID)
	}
	return fmt.Errorf("%w: document %s", models.ErrNotFound, docID)
}

func (s *Postgres) ListDocuments(ctx context.Context, tenantID uuid.UUID, f DocumentFilter) ([]models.Document, error) {
	query := `SELECT id, tenant_id, filename, file_path, file_type, status, risk_score, expiry_date, uploaded_at
			  FROM documents WHERE tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, f.Status)
		argIdx++
	}
	if f.RiskScore != "" {
		query += fmt.Sprintf(" AND risk_score = $%d", argIdx)
		args = append(args, f.RiskScore)
		argIdx++
	}
	if f.Filename != "" {
		query += fmt.Sprintf(" AND filename ILIKE $%d", argIdx)
		args = append(args, "%"+f.Filename+"%")
		argIdx++
	}
	query += " ORDER BY uploaded_at DESC, id"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Filename, &d.FilePath, &d.FileType, &d.Status, &d.RiskScore, &d.ExpiryDate, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *Postgres) UpdateDocumentAnalysis(ctx context.Context, tenantID, docID uuid.UUID, status, riskScore string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE documents
		 SET status = COALESCE(NULLIF($1, ''), status),
		     risk_score = COALESCE(NULLIF($2, ''), risk_score)
		 WHERE id = $3 AND tenant_id = $4`,
		status, riskScore, docID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("update document analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.documentMiss(ctx, tenantID, docID)
	}
	return nil
}

func (s *Postgres) RefreshStatuses(ctx context.Context, now time.Time, renewalWindow time.Duration) (int, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE documents SET status = CASE
			WHEN expiry_date < $1 THEN $3
			WHEN expiry_date <= $1 + make_interval(secs => $2) THEN $4
			ELSE $5
		 END
		 WHERE expiry_date IS NOT NULL
		   AND status <> CASE
			WHEN expiry_date < $1 THEN $3
			WHEN expiry_date <= $1 + make_interval(secs => $2) THEN $4
			ELSE $5
		 END`,
		now, renewalWindow.Seconds(), models.DocStatusExpired, models.DocStatusRenewalDue, models.DocStatusActive,
	)
	if err != nil {
		return 0, fmt.Errorf("refresh statuses: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Postgres) DeleteDocument(ctx context.Context, tenantID, docID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var owner uuid.UUID
	err = tx.QueryRow(ctx, "SELECT tenant_id FROM documents WHERE id = $1 FOR UPDATE", docID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil // already gone, deletion is idempotent
	}
	if err != nil {
		return fmt.Errorf("lock document: %w", err)
	}
	if owner != tenantID {
		s.audit.AccessDenied(ctx, tenantID, "document", docID)
		return fmt.Errorf("%w: document %s", models.ErrAccessDenied, docID)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM chunks WHERE document_id = $1 AND tenant_id = $2", docID, tenantID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM documents WHERE id = $1 AND tenant_id = $2", docID, tenantID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return tx.Commit(ctx)
}

// --- ChunkStore ---

func (s *Postgres) Insert(ctx context.Context, tenantID uuid.UUID, c *models.Chunk) error {
	if len(c.Embedding) != s.dim {
		return fmt.Errorf("%w: embedding has %d dimensions, store expects %d", models.ErrValidation, len(c.Embedding), s.dim)
	}
	if c.Text == "" {
		return fmt.Errorf("%w: chunk text is required", models.ErrValidation)
	}
	if c.TenantID != tenantID {
		s.audit.AccessDenied(ctx, tenantID, "chunk", c.ID)
		return fmt.Errorf("%w: chunk owner %s does not match caller %s", models.ErrAccessDenied, c.TenantID, tenantID)
	}

	var docTenant uuid.UUID
	err := s.db.QueryRow(ctx, "SELECT tenant_id FROM documents WHERE id = $1", c.DocumentID).Scan(&docTenant)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: document %s", models.ErrNotFound, c.DocumentID)
	}
	if err != nil {
		return fmt.Errorf("check document tenant: %w", err)
	}
	if docTenant != c.TenantID {
		return fmt.Errorf("%w: chunk tenant %s does not match document tenant %s", models.ErrValidation, c.TenantID, docTenant)
	}

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO chunks (id, document_id, tenant_id, text, embedding, metadata, page)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		c.ID, c.DocumentID, c.TenantID, c.Text, pgvector.NewVector(c.Embedding), c.Metadata, c.Page,
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

func (s *Postgres) GetByDocument(ctx context.Context, tenantID, docID uuid.UUID) ([]models.Chunk, error) {
	if _, err := s.GetDocument(ctx, tenantID, docID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, document_id, tenant_id, text, metadata, page, created_at
		 FROM chunks WHERE document_id = $1 AND tenant_id = $2
		 ORDER BY created_at, id`,
		docID, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (s *Postgres) GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, document_id, tenant_id, text, metadata, page, created_at
		 FROM chunks WHERE id = ANY($1) AND tenant_id = $2`,
		ids, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("get chunks by ids: %w", err)
	}
	defer rows.Close()

	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]models.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	// preserve the caller's (ranking) order
	out := make([]models.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Postgres) DeleteByDocument(ctx context.Context, tenantID, docID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		"DELETE FROM chunks WHERE document_id = $1 AND tenant_id = $2", docID, tenantID)
	if err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func scanChunks(rows pgx.Rows) ([]models.Chunk, error) {
	var out []models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.TenantID, &c.Text, &c.Metadata, &c.Page, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var (
	_ TenantStore   = (*Postgres)(nil)
	_ DocumentStore = (*Postgres)(nil)
	_ ChunkStore    = (*Postgres)(nil)
)
