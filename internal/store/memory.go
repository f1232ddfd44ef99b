package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/contractiq/backend/internal/audit"
	"github.com/contractiq/backend/internal/models"
)

// Memory is an in-process implementation of the tenant, document and chunk
// stores. It is the authoritative backend for tests and works standalone
// when no database is configured. A single RWMutex guards all maps; the
// similarity index keeps its own per-tenant locks.
type Memory struct {
	mu    sync.RWMutex
	dim   int
	audit *audit.Logger

	tenants map[uuid.UUID]*models.Tenant
	emails  map[string]uuid.UUID

	docs      map[uuid.UUID]*models.Document
	chunks    map[uuid.UUID]*models.Chunk
	docChunks map[uuid.UUID][]uuid.UUID // insertion order per document
}

func NewMemory(dim int, auditLog *audit.Logger) *Memory {
	if dim <= 0 {
		dim = models.EmbeddingDim
	}
	return &Memory{
		dim:       dim,
		audit:     auditLog,
		tenants:   make(map[uuid.UUID]*models.Tenant),
		emails:    make(map[string]uuid.UUID),
		docs:      make(map[uuid.UUID]*models.Document),
		chunks:    make(map[uuid.UUID]*models.Chunk),
		docChunks: make(map[uuid.UUID][]uuid.UUID),
	}
}

// --- TenantStore ---

func (m *Memory) Create(ctx context.Context, t *models.Tenant) error {
	if t.Email == "" || t.Name == "" {
		return fmt.Errorf("%w: tenant name and email are required", models.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(t.Email)
	if _, exists := m.emails[email]; exists {
		return fmt.Errorf("%w: email already registered", models.ErrValidation)
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	cp := *t
	m.tenants[t.ID] = &cp
	m.emails[email] = t.ID
	return nil
}

func (m *Memory) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, fmt.Errorf("%w: tenant %s", models.ErrNotFound, id)
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) GetByEmail(ctx context.Context, email string) (*models.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("%w: tenant with email %q", models.ErrNotFound, email)
	}
	cp := *m.tenants[id]
	return &cp, nil
}

func (m *Memory) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return fmt.Errorf("%w: tenant %s", models.ErrNotFound, id)
	}
	t.PasswordHash = passwordHash
	return nil
}

func (m *Memory) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return fmt.Errorf("%w: tenant %s", models.ErrNotFound, id)
	}
	t.DeactivatedAt = &at
	return nil
}

// --- DocumentStore ---

func (m *Memory) CreateDocument(ctx context.Context, tenantID uuid.UUID, d *models.Document) error {
	if d.Filename == "" {
		return fmt.Errorf("%w: filename is required", models.ErrValidation)
	}
	if d.TenantID != tenantID {
		m.audit.AccessDenied(ctx, tenantID, "document", d.ID)
		return fmt.Errorf("%w: document owner %s does not match caller %s", models.ErrAccessDenied, d.TenantID, tenantID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenants[tenantID]; !ok {
		return fmt.Errorf("%w: tenant %s", models.ErrNotFound, tenantID)
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now().UTC()
	}
	if d.Status == "" {
		d.Status = models.DocStatusActive
	}
	if d.RiskScore == "" {
		d.RiskScore = models.RiskLow
	}

	cp := *d
	m.docs[d.ID] = &cp
	return nil
}

// getDocLocked fetches a document and enforces ownership. Caller holds at
// least a read lock.
func (m *Memory) getDocLocked(ctx context.Context, tenantID, docID uuid.UUID) (*models.Document, error) {
	d, ok := m.docs[docID]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", models.ErrNotFound, docID)
	}
	if d.TenantID != tenantID {
		m.audit.AccessDenied(ctx, tenantID, "document", docID)
		return nil, fmt.Errorf("%w: document %s", models.ErrAccessDenied, docID)
	}
	return d, nil
}

func (m *Memory) GetDocument(ctx context.Context, tenantID, docID uuid.UUID) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, err := m.getDocLocked(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	cp := *d
	return &cp, nil
}

func (m *Memory) ListDocuments(ctx context.Context, tenantID uuid.UUID, f DocumentFilter) ([]models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(f.Filename)
	var out []models.Document
	for _, d := range m.docs {
		if d.TenantID != tenantID {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.RiskScore != "" && d.RiskScore != f.RiskScore {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(d.Filename), needle) {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *Memory) UpdateDocumentAnalysis(ctx context.Context, tenantID, docID uuid.UUID, status, riskScore string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.getDocLocked(ctx, tenantID, docID)
	if err != nil {
		return err
	}
	if status != "" {
		d.Status = status
	}
	if riskScore != "" {
		d.RiskScore = riskScore
	}
	return nil
}

func (m *Memory) RefreshStatuses(ctx context.Context, now time.Time, renewalWindow time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := 0
	for _, d := range m.docs {
		next := models.StatusForExpiry(d.ExpiryDate, now, renewalWindow)
		if next != d.Status {
			d.Status = next
			changed++
		}
	}
	return changed, nil
}

// DeleteDocument removes the document record. Deleting an already-removed
// document is not an error, so cascades stay idempotent.
func (m *Memory) DeleteDocument(ctx context.Context, tenantID, docID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.docs[docID]
	if !ok {
		return nil
	}
	if d.TenantID != tenantID {
		m.audit.AccessDenied(ctx, tenantID, "document", docID)
		return fmt.Errorf("%w: document %s", models.ErrAccessDenied, docID)
	}
	delete(m.docs, docID)
	return nil
}

// --- ChunkStore ---

func (m *Memory) Insert(ctx context.Context, tenantID uuid.UUID, c *models.Chunk) error {
	if len(c.Embedding) != m.dim {
		return fmt.Errorf("%w: embedding has %d dimensions, store expects %d", models.ErrValidation, len(c.Embedding), m.dim)
	}
	if c.Text == "" {
		return fmt.Errorf("%w: chunk text is required", models.ErrValidation)
	}
	if c.TenantID != tenantID {
		m.audit.AccessDenied(ctx, tenantID, "chunk", c.ID)
		return fmt.Errorf("%w: chunk owner %s does not match caller %s", models.ErrAccessDenied, c.TenantID, tenantID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.docs[c.DocumentID]
	if !ok {
		return fmt.Errorf("%w: document %s", models.ErrNotFound, c.DocumentID)
	}
	if d.TenantID != c.TenantID {
		return fmt.Errorf("%w: chunk tenant %s does not match document tenant %s", models.ErrValidation, c.TenantID, d.TenantID)
	}

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	cp := *c
	cp.Embedding = append([]float32(nil), c.Embedding...)
	m.chunks[c.ID] = &cp
	m.docChunks[c.DocumentID] = append(m.docChunks[c.DocumentID], c.ID)
	return nil
}

func (m *Memory) GetByDocument(ctx context.Context, tenantID, docID uuid.UUID) ([]models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, err := m.getDocLocked(ctx, tenantID, docID); err != nil {
		return nil, err
	}

	ids := m.docChunks[docID]
	out := make([]models.Chunk, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.chunks[id])
	}
	return out, nil
}

// GetByIDs resolves chunk IDs back to full records, preserving the input
// order. IDs that no longer exist are omitted: the similarity index is a
// derived structure and may briefly reference chunks a cascade has already
// removed. A chunk owned by another tenant fails AccessDenied.
func (m *Memory) GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Chunk, 0, len(ids))
	for _, id := range ids {
		c, ok := m.chunks[id]
		if !ok {
			continue
		}
		if c.TenantID != tenantID {
			m.audit.AccessDenied(ctx, tenantID, "chunk", id)
			return nil, fmt.Errorf("%w: chunk %s", models.ErrAccessDenied, id)
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *Memory) DeleteByDocument(ctx context.Context, tenantID, docID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.docs[docID]
	if ok && d.TenantID != tenantID {
		m.audit.AccessDenied(ctx, tenantID, "document", docID)
		return fmt.Errorf("%w: document %s", models.ErrAccessDenied, docID)
	}

	for _, id := range m.docChunks[docID] {
		delete(m.chunks, id)
	}
	delete(m.docChunks, docID)
	return nil
}

var (
	_ TenantStore   = (*Memory)(nil)
	_ DocumentStore = (*Memory)(nil)
	_ ChunkStore    = (*Memory)(nil)
)
