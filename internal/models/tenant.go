package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the isolated owner of documents and chunks. Tenants are never
// hard-deleted; DeactivatedAt marks a soft lifecycle end so owned documents
// keep a valid owner reference.
type Tenant struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Email         string     `json:"email" db:"email"`
	PasswordHash  string     `json:"-" db:"password_hash"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty" db:"deactivated_at"`
}

func (t *Tenant) Active() bool {
	return t.DeactivatedAt == nil
}
