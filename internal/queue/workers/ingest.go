package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/contractiq/backend/internal/ingest"
	"github.com/contractiq/backend/internal/queue"
)

// IngestWorker runs the extraction/chunking/embedding pipeline for a newly
// uploaded contract.
type IngestWorker struct {
	pipeline *ingest.Pipeline
	log      *slog.Logger
}

func NewIngestWorker(pipeline *ingest.Pipeline) *IngestWorker {
	return &IngestWorker{pipeline: pipeline, log: slog.Default()}
}

func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ContractIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("parse tenant ID: %w", err)
	}
	docID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("parse document ID: %w", err)
	}

	w.log.Info("ingesting contract", "tenant_id", tenantID, "document_id", docID)

	if err := w.pipeline.Process(ctx, tenantID, docID); err != nil {
		return fmt.Errorf("ingest contract %s: %w", docID, err)
	}

	w.log.Info("contract ingested", "tenant_id", tenantID, "document_id", docID)
	return nil
}
