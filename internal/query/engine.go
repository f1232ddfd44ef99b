package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/contractiq/backend/internal/embedding"
	"github.com/contractiq/backend/internal/models"
	"github.com/contractiq/backend/internal/store"
	"github.com/contractiq/backend/internal/vectorindex"
)

// State names the stage an ask request is in. Terminal states are Done and
// Failed; a tenant with zero chunks finishes Done with an empty evidence
// list, not Failed.
type State string

const (
	StateIdle       State = "idle"
	StateEmbedding  State = "embedding"
	StateRetrieving State = "retrieving"
	StateAssembling State = "assembling"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Evidence is one ranked retrieval hit, ready for a presentation layer or a
// downstream language-model answerer to consume.
type Evidence struct {
	DocumentID   uuid.UUID         `json:"document_id"`
	ContractName string            `json:"contract_name"`
	Excerpt      string            `json:"excerpt"`
	Page         int               `json:"page"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	// Relevance is the cosine similarity rescaled to 0-100.
	Relevance int `json:"relevance"`
}

type Result struct {
	State    State      `json:"state"`
	Evidence []Evidence `json:"evidence"`
}

type Options struct {
	// TopK caps the evidence list; 0 means the index default (5).
	TopK int
	// Timeout bounds the whole ask, embedding included. 0 disables it.
	Timeout time.Duration
}

// Engine answers tenant questions with ranked evidence: embed the question,
// query the similarity index inside the tenant's partition, then join the
// hits back to chunk text and document metadata. Answer synthesis is an
// external concern; the engine stops at evidence.
type Engine struct {
	embedder embedding.Embedder
	index    vectorindex.Index
	chunks   store.ChunkStore
	docs     store.DocumentStore
	log      *slog.Logger
}

func NewEngine(embedder embedding.Embedder, index vectorindex.Index, chunks store.ChunkStore, docs store.DocumentStore) *Engine {
	return &Engine{
		embedder: embedder,
		index:    index,
		chunks:   chunks,
		docs:     docs,
		log:      slog.Default(),
	}
}

// Ask runs the retrieval pipeline for one question. The returned Result
// carries the terminal state; on error the state is Failed and the error
// classifies with the models sentinels. Ask performs no mutation, so a
// timeout leaves nothing partial behind.
func (e *Engine) Ask(ctx context.Context, tenantID uuid.UUID, question string, opts Options) (*Result, error) {
	if question == "" {
		return &Result{State: StateFailed}, fmt.Errorf("%w: question is required", models.ErrValidation)
	}
	if tenantID == uuid.Nil {
		return &Result{State: StateFailed}, fmt.Errorf("%w: tenant ID is required", models.ErrValidation)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	state := StateEmbedding
	vec, err := embedding.Single(ctx, e.embedder, question)
	if err != nil {
		return e.fail(ctx, state, err)
	}

	state = StateRetrieving
	if err := ctx.Err(); err != nil {
		return e.fail(ctx, state, err)
	}
	matches, err := e.index.Query(ctx, tenantID, vec, opts.TopK)
	if err != nil {
		return e.fail(ctx, state, err)
	}
	if len(matches) == 0 {
		return &Result{State: StateDone, Evidence: []Evidence{}}, nil
	}

	state = StateAssembling
	if err := ctx.Err(); err != nil {
		return e.fail(ctx, state, err)
	}
	evidence, err := e.assemble(ctx, tenantID, matches)
	if err != nil {
		return e.fail(ctx, state, err)
	}

	return &Result{State: StateDone, Evidence: evidence}, nil
}

// fail classifies the error and returns the terminal Failed result. A lapsed
// deadline wins over whatever error the lapsed stage reported.
func (e *Engine) fail(ctx context.Context, state State, err error) (*Result, error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: ask aborted in %s stage", models.ErrTimeout, state)
	}
	e.log.Error("ask failed", "stage", string(state), "error", err)
	return &Result{State: StateFailed}, err
}

// assemble joins index matches back to chunk text and contract filenames,
// keeping the index's ranking order. Matches whose chunk has been deleted
// since retrieval are dropped.
func (e *Engine) assemble(ctx context.Context, tenantID uuid.UUID, matches []vectorindex.Match) ([]Evidence, error) {
	ids := make([]uuid.UUID, len(matches))
	scores := make(map[uuid.UUID]float64, len(matches))
	for i, m := range matches {
		ids[i] = m.ChunkID
		scores[m.ChunkID] = m.Score
	}

	chunks, err := e.chunks.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve chunks: %w", err)
	}

	names := make(map[uuid.UUID]string)
	evidence := make([]Evidence, 0, len(chunks))
	for _, c := range chunks {
		name, ok := names[c.DocumentID]
		if !ok {
			doc, err := e.docs.GetDocument(ctx, tenantID, c.DocumentID)
			if err != nil {
				return nil, fmt.Errorf("resolve document %s: %w", c.DocumentID, err)
			}
			name = doc.Filename
			names[c.DocumentID] = name
		}
		evidence = append(evidence, Evidence{
			DocumentID:   c.DocumentID,
			ContractName: name,
			Excerpt:      c.Text,
			Page:         c.Page,
			Metadata:     c.Metadata,
			Relevance:    relevance(scores[c.ID]),
		})
	}
	return evidence, nil
}

// relevance rescales cosine similarity to a 0-100 integer, clamped.
func relevance(score float64) int {
	r := int(math.Round(score * 100))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}
