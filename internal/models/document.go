package models

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	TenantID   uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Filename   string     `json:"filename" db:"filename"`
	FilePath   string     `json:"-" db:"file_path"`
	FileType   string     `json:"file_type,omitempty" db:"file_type"`
	Status     string     `json:"status" db:"status"`
	RiskScore  string     `json:"risk_score" db:"risk_score"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty" db:"expiry_date"`
	UploadedAt time.Time  `json:"uploaded_at" db:"uploaded_at"`
}

const (
	DocStatusActive     = "Active"
	DocStatusRenewalDue = "RenewalDue"
	DocStatusExpired    = "Expired"
)

const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// StatusForExpiry derives the lifecycle status from the expiry date.
// renewalWindow is how far ahead of expiry a document counts as RenewalDue.
func StatusForExpiry(expiry *time.Time, now time.Time, renewalWindow time.Duration) string {
	if expiry == nil {
		return DocStatusActive
	}
	switch {
	case expiry.Before(now):
		return DocStatusExpired
	case expiry.Sub(now) <= renewalWindow:
		return DocStatusRenewalDue
	default:
		return DocStatusActive
	}
}
