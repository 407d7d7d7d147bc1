// Package records implements the record lifecycle: draft, submitted,
// verified, certified, with separation of duties between the verifying
// and certifying actors.
package records

import (
	"time"

	"github.com/google/uuid"
)

// Status enumerates record lifecycle states.
type Status string

const (
	// StatusDraft marks a newly created record.
	StatusDraft Status = "DRAFT"
	// StatusSubmitted marks a record handed in for verification.
	StatusSubmitted Status = "SUBMITTED"
	// StatusVerified marks a record checked by a verifier.
	StatusVerified Status = "VERIFIED"
	// StatusCertified marks a record signed off by a second actor.
	StatusCertified Status = "CERTIFIED"
	// StatusArchived marks a withdrawn record.
	StatusArchived Status = "ARCHIVED"
)

// Statuses returns all lifecycle states.
func Statuses() []Status {
	return []Status{StatusDraft, StatusSubmitted, StatusVerified, StatusCertified, StatusArchived}
}

// Record is the certified-document aggregate.
type Record struct {
	ID          uuid.UUID
	Title       string
	Body        string
	Status      Status
	CreatedBy   int64
	VerifiedBy  *int64
	CertifiedBy *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
