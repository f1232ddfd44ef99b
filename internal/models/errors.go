package models

import "errors"

// Sentinel errors shared by the stores, the similarity index and the query
// engine. Callers classify with errors.Is; wrapped messages carry detail.
var (
	// ErrValidation covers malformed input: embedding dimensionality
	// mismatch, missing required fields, tenant/document disagreement on a
	// chunk. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrAccessDenied is a tenant isolation violation. Surfaced to the
	// caller and recorded as a security event, never silently corrected.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound means a referenced tenant, document or chunk is absent.
	ErrNotFound = errors.New("not found")

	// ErrEmbeddingUnavailable signals the external embedding collaborator
	// failed. Retriable by the caller, not within a single ask.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrTimeout signals a caller-specified deadline elapsed before the
	// operation finished. No partial mutation is left behind.
	ErrTimeout = errors.New("timeout")
)
