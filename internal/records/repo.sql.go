package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relay-core/relay/internal/platform/db"
	"github.com/relay-core/relay/internal/rpc"
	"github.com/relay-core/relay/internal/shared"
)

// sortColumns maps allow-listed sort fields to real columns. Client
// input never reaches the query text directly.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"title":      "title",
}

const recordColumns = "id, title, body, status, created_by, verified_by, certified_by, created_at, updated_at"

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool  *pgxpool.Pool
	audit *shared.AuditLogger
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, audit *shared.AuditLogger) *Repository {
	return &Repository{pool: pool, audit: audit}
}

// WithTx runs fn inside one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, audit: r.audit})
	})
}

// GetRecord loads one record.
func (r *Repository) GetRecord(ctx context.Context, id uuid.UUID) (Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM records WHERE id = $1`, id)
	return scanRecord(row)
}

// ListRecords returns one page plus the unpaged total. Ordering always
// carries the id tie-break so page boundaries stay stable when the
// sort field is not unique.
func (r *Repository) ListRecords(ctx context.Context, filter ListFilter) ([]Record, int, error) {
	column, ok := sortColumns[filter.Params.SortBy]
	if !ok {
		return nil, 0, fmt.Errorf("records: sort field %q not allow-listed", filter.Params.SortBy)
	}
	direction := "DESC"
	if filter.Params.SortOrder == rpc.SortAsc {
		direction = "ASC"
	}

	var clauses []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Params.Search != "" {
		args = append(args, "%"+filter.Params.Search+"%")
		clauses = append(clauses, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM records%s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`,
		recordColumns, where, column, direction, direction, len(args)+1, len(args)+2)

	// Count and page run on one snapshot so the total matches the page.
	var total int
	var out []Record
	err := db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM records`+where, args...).Scan(&total); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, query, append(args, filter.Params.PageSize, filter.Params.Offset())...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// StaleDraftIDs returns drafts whose last update predates cutoff.
func (r *Repository) StaleDraftIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM records WHERE status = $1 AND updated_at < $2 ORDER BY updated_at ASC LIMIT $3`,
		string(StatusDraft), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type txRepository struct {
	tx    pgx.Tx
	audit *shared.AuditLogger
}

func (t *txRepository) GetRecordForUpdate(ctx context.Context, id uuid.UUID) (Record, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM records WHERE id = $1 FOR UPDATE`, id)
	return scanRecord(row)
}

func (t *txRepository) InsertRecord(ctx context.Context, rec Record) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO records (id, title, body, status, created_by, verified_by, certified_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		rec.ID, rec.Title, rec.Body, string(rec.Status), rec.CreatedBy, rec.VerifiedBy, rec.CertifiedBy)
	return err
}

func (t *txRepository) UpdateRecord(ctx context.Context, rec Record) error {
	tag, err := t.tx.Exec(ctx, `UPDATE records SET title = $2, body = $3, status = $4, verified_by = $5, certified_by = $6, updated_at = NOW() WHERE id = $1`,
		rec.ID, rec.Title, rec.Body, string(rec.Status), rec.VerifiedBy, rec.CertifiedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return t.audit.RecordTx(ctx, t.tx, log)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var status string
	err := row.Scan(&rec.ID, &rec.Title, &rec.Body, &status, &rec.CreatedBy, &rec.VerifiedBy, &rec.CertifiedBy, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.Status = Status(status)
	return rec, nil
}
