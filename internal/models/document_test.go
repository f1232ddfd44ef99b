package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusForExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 30 * 24 * time.Hour

	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}

	tests := []struct {
		name   string
		expiry *time.Time
		want   string
	}{
		{"no expiry date", nil, DocStatusActive},
		{"expired yesterday", at(-24 * time.Hour), DocStatusExpired},
		{"expires this instant", at(0), DocStatusRenewalDue},
		{"inside renewal window", at(7 * 24 * time.Hour), DocStatusRenewalDue},
		{"window boundary", at(window), DocStatusRenewalDue},
		{"well before renewal", at(90 * 24 * time.Hour), DocStatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForExpiry(tt.expiry, now, window))
		})
	}
}
