package records

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relay-core/relay/internal/rpc"
	"github.com/relay-core/relay/internal/shared"
)

// ErrNotFound indicates the record does not exist in the store.
var ErrNotFound = errors.New("records: not found")

// IdempotencyPort guards repeated creates with the same key. Delete
// releases a key whose processing failed so an honest retry can pass.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, scope string) error
	Delete(ctx context.Context, key string) error
}

const idempotencyScope = "records.create"

// Service owns the record command executors. Queries are read-only;
// mutations run inside one transaction including their audit row.
type Service struct {
	repo        RepositoryPort
	idempotency IdempotencyPort
}

// NewService constructs the records service. idempotency may be nil.
func NewService(repo RepositoryPort, idempotency IdempotencyPort) *Service {
	return &Service{repo: repo, idempotency: idempotency}
}

// CreateInput describes a record creation.
type CreateInput struct {
	Title          string
	Body           string
	IdempotencyKey string
}

// Create persists a new draft record.
func (s *Service) Create(ctx context.Context, actorID int64, input CreateInput) (Record, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Record{}, rpc.Validation("title is required")
	}
	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, idempotencyScope); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Record{}, rpc.Conflict("request already processed")
			}
			return Record{}, err
		}
	}

	rec := Record{
		ID:        uuid.New(),
		Title:     title,
		Body:      input.Body,
		Status:    StatusDraft,
		CreatedBy: actorID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertRecord(ctx, rec); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, auditLog(actorID, "RECORD_CREATE", rec.ID, map[string]any{"title": rec.Title}))
	})
	if err != nil {
		// Nothing was written; release the key so a retry can pass.
		if input.IdempotencyKey != "" && s.idempotency != nil {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return Record{}, err
	}
	return rec, nil
}

// Get loads one record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	rec, err := s.repo.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Record{}, rpc.NotFound("record %s does not exist", id)
		}
		return Record{}, err
	}
	return rec, nil
}

// List returns one page of records plus the unpaged total.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Record, int, error) {
	return s.repo.ListRecords(ctx, filter)
}

// Submit transitions DRAFT to SUBMITTED.
func (s *Service) Submit(ctx context.Context, actorID int64, id uuid.UUID) (Record, error) {
	return s.transition(ctx, actorID, id, "RECORD_SUBMIT", func(rec *Record) error {
		if rec.Status != StatusDraft {
			return rpc.Conflict("record must be in state %s to submit, is %s", StatusDraft, rec.Status)
		}
		rec.Status = StatusSubmitted
		return nil
	})
}

// Verify transitions SUBMITTED to VERIFIED and remembers the verifier.
func (s *Service) Verify(ctx context.Context, actorID int64, id uuid.UUID) (Record, error) {
	return s.transition(ctx, actorID, id, "RECORD_VERIFY", func(rec *Record) error {
		if rec.Status != StatusSubmitted {
			return rpc.Conflict("record must be in state %s to verify, is %s", StatusSubmitted, rec.Status)
		}
		rec.Status = StatusVerified
		rec.VerifiedBy = &actorID
		return nil
	})
}

// Certify transitions VERIFIED to CERTIFIED. The certifying actor must
// differ from the verifier.
func (s *Service) Certify(ctx context.Context, actorID int64, id uuid.UUID) (Record, error) {
	return s.transition(ctx, actorID, id, "RECORD_CERTIFY", func(rec *Record) error {
		if rec.Status != StatusVerified {
			return rpc.Conflict("record must be in state %s to certify, is %s", StatusVerified, rec.Status)
		}
		if rec.VerifiedBy != nil && *rec.VerifiedBy == actorID {
			return rpc.Forbidden("separation of duties: verifier cannot certify the same record")
		}
		rec.Status = StatusCertified
		rec.CertifiedBy = &actorID
		return nil
	})
}

// Archive withdraws a record. Certified records are immutable.
func (s *Service) Archive(ctx context.Context, actorID int64, id uuid.UUID) (Record, error) {
	return s.transition(ctx, actorID, id, "RECORD_ARCHIVE", func(rec *Record) error {
		if rec.Status == StatusCertified {
			return rpc.Conflict("certified records cannot be archived")
		}
		if rec.Status == StatusArchived {
			return rpc.Conflict("record is already archived")
		}
		rec.Status = StatusArchived
		return nil
	})
}

// sweepBatchSize bounds one sweep pass so the job never holds the
// database for long.
const sweepBatchSize = 500

// SweepStaleDrafts archives drafts untouched since cutoff. Each record
// is re-checked under lock, so drafts touched between the id scan and
// the archive are left alone. Returns the number archived.
func (s *Service) SweepStaleDrafts(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.repo.StaleDraftIDs(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}
	archived := 0
	for _, id := range ids {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			rec, err := tx.GetRecordForUpdate(ctx, id)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return nil
				}
				return err
			}
			if rec.Status != StatusDraft || !rec.UpdatedAt.Before(cutoff) {
				return nil
			}
			rec.Status = StatusArchived
			if err := tx.UpdateRecord(ctx, rec); err != nil {
				return err
			}
			if err := tx.RecordAudit(ctx, auditLog(systemActorID, "RECORD_AUTO_ARCHIVE", rec.ID, map[string]any{"cutoff": cutoff.UTC().Format(time.RFC3339)})); err != nil {
				return err
			}
			archived++
			return nil
		})
		if err != nil {
			return archived, err
		}
	}
	return archived, nil
}

// systemActorID marks audit rows written by background maintenance.
const systemActorID int64 = 0

// transition fetches current state, applies the invariant check and
// mutation, and writes record plus audit row in one atomic unit.
func (s *Service) transition(ctx context.Context, actorID int64, id uuid.UUID, action string, apply func(*Record) error) (Record, error) {
	var out Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetRecordForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return rpc.NotFound("record %s does not exist", id)
			}
			return err
		}
		if err := apply(&rec); err != nil {
			return err
		}
		if err := tx.UpdateRecord(ctx, rec); err != nil {
			return err
		}
		if err := tx.RecordAudit(ctx, auditLog(actorID, action, rec.ID, map[string]any{"status": string(rec.Status)})); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return out, nil
}

func auditLog(actorID int64, action string, id uuid.UUID, meta map[string]any) shared.AuditLog {
	return shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "record",
		EntityID: id.String(),
		Meta:     meta,
	}
}
