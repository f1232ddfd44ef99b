package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ActionAccessDenied = "access_denied"
	ActionLogin        = "login"
	ActionSignup       = "signup"
	ActionDocDeleted   = "document_deleted"
)

// Logger records security-relevant events. Every event goes to slog; when a
// database pool is attached the event is also persisted to audit_logs.
// A nil *Logger is safe to call, so components can treat auditing as
// optional wiring.
type Logger struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewLogger(db *pgxpool.Pool) *Logger {
	return &Logger{db: db, log: slog.Default()}
}

type Event struct {
	TenantID     uuid.UUID
	Action       string
	ResourceType string
	ResourceID   uuid.UUID
	Details      map[string]any
}

func (l *Logger) Record(ctx context.Context, e Event) {
	if l == nil {
		return
	}

	l.log.Warn("audit event",
		"action", e.Action,
		"tenant_id", e.TenantID,
		"resource_type", e.ResourceType,
		"resource_id", e.ResourceID,
		"details", e.Details,
	)

	if l.db == nil {
		return
	}
	details, _ := json.Marshal(e.Details)
	_, err := l.db.Exec(ctx,
		`INSERT INTO audit_logs (tenant_id, action, resource_type, resource_id, details)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.TenantID, e.Action, e.ResourceType, e.ResourceID, details,
	)
	if err != nil {
		l.log.Error("persist audit event", "error", fmt.Errorf("insert audit log: %w", err))
	}
}

// AccessDenied records a tenant isolation violation: the caller asked for a
// resource owned by a different tenant. These are never silently corrected.
func (l *Logger) AccessDenied(ctx context.Context, callerTenant uuid.UUID, resourceType string, resourceID uuid.UUID) {
	l.Record(ctx, Event{
		TenantID:     callerTenant,
		Action:       ActionAccessDenied,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	})
}
