package contracts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/contractiq/backend/internal/audit"
	"github.com/contractiq/backend/internal/models"
	"github.com/contractiq/backend/internal/storage"
	"github.com/contractiq/backend/internal/store"
	"github.com/contractiq/backend/internal/vectorindex"
	"github.com/contractiq/backend/pkg/textextract"
)

// RenewalWindow is how far ahead of its expiry date a contract is flagged
// RenewalDue.
const RenewalWindow = 30 * 24 * time.Hour

// IngestEnqueuer hands a freshly uploaded contract to the ingestion worker.
type IngestEnqueuer interface {
	EnqueueContractIngest(tenantID, docID uuid.UUID) error
}

// Service owns the contract lifecycle: upload, listing, detail, and cascade
// deletion. It is the single writer that keeps the chunk store and the
// similarity index in step, serializing chunk attachment and deletion per
// document so a cascade can never race an insert into an orphaned index
// entry.
type Service struct {
	docs    store.DocumentStore
	chunks  store.ChunkStore
	index   vectorindex.Index
	files   storage.Storage
	queue   IngestEnqueuer
	audit   *audit.Logger
	log     *slog.Logger
	docMu   sync.Mutex
	docLock map[uuid.UUID]*sync.Mutex
}

func NewService(docs store.DocumentStore, chunks store.ChunkStore, index vectorindex.Index, files storage.Storage, queue IngestEnqueuer, auditLog *audit.Logger) *Service {
	return &Service{
		docs:    docs,
		chunks:  chunks,
		index:   index,
		files:   files,
		queue:   queue,
		audit:   auditLog,
		log:     slog.Default(),
		docLock: make(map[uuid.UUID]*sync.Mutex),
	}
}

// lockDocument returns the per-document mutex, creating it on first use.
// Locks are never reclaimed; the map grows with the document count, which is
// bounded and small next to the chunks themselves.
func (s *Service) lockDocument(docID uuid.UUID) *sync.Mutex {
	s.docMu.Lock()
	defer s.docMu.Unlock()
	mu, ok := s.docLock[docID]
	if !ok {
		mu = &sync.Mutex{}
		s.docLock[docID] = mu
	}
	return mu
}

type UploadRequest struct {
	Filename   string
	FileType   string
	ExpiryDate *time.Time
	Data       io.Reader
}

// Upload records the document, stashes the raw file and enqueues ingestion.
// The document starts Active with risk Low; the analysis pipeline owns both
// fields from here on.
func (s *Service) Upload(ctx context.Context, tenantID uuid.UUID, req UploadRequest) (*models.Document, error) {
	if req.Filename == "" {
		return nil, fmt.Errorf("%w: filename is required", models.ErrValidation)
	}
	if !textextract.Supported(req.FileType) {
		return nil, fmt.Errorf("%w: unsupported file type %q, accepted types are %s",
			models.ErrValidation, req.FileType, strings.Join(textextract.SupportedTypes(), ", "))
	}

	doc := &models.Document{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Filename:   req.Filename,
		FileType:   req.FileType,
		ExpiryDate: req.ExpiryDate,
		Status:     models.StatusForExpiry(req.ExpiryDate, time.Now(), RenewalWindow),
		RiskScore:  models.RiskLow,
	}
	doc.FilePath = fmt.Sprintf("%s/%s%s", tenantID, doc.ID, extension(req.FileType))

	if s.files != nil && req.Data != nil {
		if err := s.files.Upload(ctx, doc.FilePath, req.Data); err != nil {
			return nil, fmt.Errorf("store file: %w", err)
		}
	}

	if err := s.docs.CreateDocument(ctx, tenantID, doc); err != nil {
		if s.files != nil {
			_ = s.files.Delete(ctx, doc.FilePath)
		}
		return nil, err
	}

	if s.queue != nil {
		if err := s.queue.EnqueueContractIngest(tenantID, doc.ID); err != nil {
			s.log.Error("enqueue ingest", "document_id", doc.ID, "error", err)
		}
	}

	s.log.Info("contract uploaded", "tenant_id", tenantID, "document_id", doc.ID, "filename", doc.Filename)
	return doc, nil
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, f store.DocumentFilter) ([]models.Document, error) {
	return s.docs.ListDocuments(ctx, tenantID, f)
}

func (s *Service) Get(ctx context.Context, tenantID, docID uuid.UUID) (*models.Document, error) {
	return s.docs.GetDocument(ctx, tenantID, docID)
}

// Detail is a document together with its chunks in insertion order.
type Detail struct {
	Document models.Document `json:"document"`
	Chunks   []models.Chunk  `json:"chunks"`
}

func (s *Service) GetDetail(ctx context.Context, tenantID, docID uuid.UUID) (*Detail, error) {
	doc, err := s.docs.GetDocument(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	chunks, err := s.chunks.GetByDocument(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	return &Detail{Document: *doc, Chunks: chunks}, nil
}

// AttachChunks inserts extracted chunks into the store and the index,
// holding the document's lock so no concurrent cascade interleaves. Called
// by the ingestion pipeline only.
func (s *Service) AttachChunks(ctx context.Context, tenantID, docID uuid.UUID, chunks []*models.Chunk) error {
	mu := s.lockDocument(docID)
	mu.Lock()
	defer mu.Unlock()

	// The document could have been deleted between extraction and attach.
	if _, err := s.docs.GetDocument(ctx, tenantID, docID); err != nil {
		return err
	}

	for _, c := range chunks {
		c.DocumentID = docID
		c.TenantID = tenantID
		if err := s.chunks.Insert(ctx, tenantID, c); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
		if err := s.index.Insert(ctx, tenantID, c.ID, c.Embedding); err != nil {
			return fmt.Errorf("index chunk: %w", err)
		}
	}
	return nil
}

// RefreshStatuses re-derives lifecycle statuses from expiry dates across
// all tenants. Driven by the periodic worker task.
func (s *Service) RefreshStatuses(ctx context.Context) (int, error) {
	changed, err := s.docs.RefreshStatuses(ctx, time.Now(), RenewalWindow)
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.log.Info("contract statuses refreshed", "changed", changed)
	}
	return changed, nil
}

// SetAnalysis writes the analysis pipeline's verdict.
func (s *Service) SetAnalysis(ctx context.Context, tenantID, docID uuid.UUID, status, riskScore string) error {
	return s.docs.UpdateDocumentAnalysis(ctx, tenantID, docID, status, riskScore)
}

// Delete cascades: index entries, chunks, document record and stored file
// all go, under the document's exclusive lock. Deleting a document that is
// already gone succeeds, and a repeated delete never reports missing
// children.
func (s *Service) Delete(ctx context.Context, tenantID, docID uuid.UUID) error {
	mu := s.lockDocument(docID)
	mu.Lock()
	defer mu.Unlock()

	doc, err := s.docs.GetDocument(ctx, tenantID, docID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	chunks, err := s.chunks.GetByDocument(ctx, tenantID, docID)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if err := s.index.Remove(ctx, tenantID, c.ID); err != nil {
			return fmt.Errorf("unindex chunk %s: %w", c.ID, err)
		}
	}

	if err := s.chunks.DeleteByDocument(ctx, tenantID, docID); err != nil {
		return err
	}
	if err := s.docs.DeleteDocument(ctx, tenantID, docID); err != nil {
		return err
	}
	if s.files != nil && doc.FilePath != "" {
		_ = s.files.Delete(ctx, doc.FilePath)
	}

	s.audit.Record(ctx, audit.Event{
		TenantID:     tenantID,
		Action:       audit.ActionDocDeleted,
		ResourceType: "document",
		ResourceID:   docID,
		Details:      map[string]any{"chunks": len(chunks)},
	})
	return nil
}

func extension(fileType string) string {
	switch fileType {
	case "application/pdf", ".pdf", "pdf":
		return ".pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document", ".docx", "docx":
		return ".docx"
	default:
		return ".txt"
	}
}
