package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/contractiq/backend/internal/contracts"
)

// RefreshWorker re-derives contract lifecycle statuses from expiry dates.
// It runs on a schedule, so every tenant's Expired and RenewalDue statuses
// stay current without a read-path recomputation.
type RefreshWorker struct {
	svc *contracts.Service
	log *slog.Logger
}

func NewRefreshWorker(svc *contracts.Service) *RefreshWorker {
	return &RefreshWorker{svc: svc, log: slog.Default()}
}

func (w *RefreshWorker) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	changed, err := w.svc.RefreshStatuses(ctx)
	if err != nil {
		return fmt.Errorf("refresh contract statuses: %w", err)
	}
	w.log.Info("contract status refresh complete", "changed", changed)
	return nil
}
