// Package ingest is the parsing/chunking/embedding collaborator that feeds
// the retrieval core. It is the only writer of document status and risk
// score.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contractiq/backend/internal/contracts"
	"github.com/contractiq/backend/internal/embedding"
	"github.com/contractiq/backend/internal/models"
	"github.com/contractiq/backend/internal/storage"
	"github.com/contractiq/backend/pkg/chunker"
	"github.com/contractiq/backend/pkg/textextract"
)

type Pipeline struct {
	svc      *contracts.Service
	files    storage.Storage
	embedder embedding.Embedder
	opts     chunker.Options
	log      *slog.Logger
}

func NewPipeline(svc *contracts.Service, files storage.Storage, embedder embedding.Embedder) *Pipeline {
	return &Pipeline{
		svc:      svc,
		files:    files,
		embedder: embedder,
		opts:     chunker.DefaultOptions(),
		log:      slog.Default(),
	}
}

// Process turns an uploaded contract into indexed chunks: download, extract
// page text, split, embed, attach, then score risk. Page numbers come from
// the extractor; chunks never span pages.
func (p *Pipeline) Process(ctx context.Context, tenantID, docID uuid.UUID) error {
	doc, err := p.svc.Get(ctx, tenantID, docID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	reader, err := p.files.Download(ctx, doc.FilePath)
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	pages, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), doc.FileType)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	var chunks []*models.Chunk
	var texts []string
	var fullText strings.Builder
	for _, page := range pages {
		fullText.WriteString(page.Content)
		fullText.WriteString("\n")
		for _, frag := range chunker.Split(page.Content, p.opts) {
			chunks = append(chunks, &models.Chunk{
				Text: frag.Text,
				Page: page.Number,
				Metadata: map[string]string{
					"contract_name": doc.Filename,
				},
			})
			texts = append(texts, frag.Text)
		}
	}

	if len(chunks) > 0 {
		vecs, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		for i, c := range chunks {
			c.Embedding = vecs[i]
		}
		if err := p.svc.AttachChunks(ctx, tenantID, docID, chunks); err != nil {
			return fmt.Errorf("attach chunks: %w", err)
		}
	}

	status := models.StatusForExpiry(doc.ExpiryDate, time.Now(), contracts.RenewalWindow)
	risk := ScoreRisk(fullText.String())
	if err := p.svc.SetAnalysis(ctx, tenantID, docID, status, risk); err != nil {
		return fmt.Errorf("record analysis: %w", err)
	}

	p.log.Info("contract ingested",
		"tenant_id", tenantID, "document_id", docID,
		"pages", len(pages), "chunks", len(chunks), "risk", risk)
	return nil
}
