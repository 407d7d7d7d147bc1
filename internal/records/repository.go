package records

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/relay-core/relay/internal/rpc"
	"github.com/relay-core/relay/internal/shared"
)

// ListFilter bounds a paginated read. Params must already be
// normalized by the procedure layer.
type ListFilter struct {
	Status Status
	Params rpc.ListParams
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRecord(ctx context.Context, id uuid.UUID) (Record, error)
	ListRecords(ctx context.Context, filter ListFilter) ([]Record, int, error)
	// StaleDraftIDs returns drafts untouched since cutoff, oldest first.
	StaleDraftIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

// TxRepository groups the writes of one mutation into an atomic unit.
type TxRepository interface {
	GetRecordForUpdate(ctx context.Context, id uuid.UUID) (Record, error)
	InsertRecord(ctx context.Context, rec Record) error
	UpdateRecord(ctx context.Context, rec Record) error
	// RecordAudit writes the audit row on the same transaction.
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}
