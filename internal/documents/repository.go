package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sealine-erp/sealine-erp/internal/platform/db"
)

var _ RepositoryPort = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) RepositoryPort {
	return &pgRepository{pool: pool}
}

// querier covers the pgx surface shared by pool and transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{db: tx})
	})
}

const documentColumns = `id, code, title, document_type, department, retention_months,
	effective_date, content_url, file_name, file_size, status, created_by,
	deleted_at, created_at, updated_at`

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	err := row.Scan(
		&doc.ID, &doc.Code, &doc.Title, &doc.DocumentType, &doc.Department,
		&doc.RetentionMonths, &doc.EffectiveDate, &doc.ContentURL, &doc.FileName,
		&doc.FileSize, &doc.Status, &doc.CreatedBy, &doc.DeletedAt,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

func (r *pgRepository) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	return getDocument(ctx, r.pool, id)
}

func getDocument(ctx context.Context, db querier, id uuid.UUID) (Document, error) {
	row := db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (r *pgRepository) ListDocuments(ctx context.Context, limit, offset int, filters ListFilters) ([]Document, int, error) {
	where := []string{"deleted_at IS NULL"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.Status != "" {
		where = append(where, "status = "+arg(filters.Status))
	}
	if filters.Department != "" {
		where = append(where, "department = "+arg(filters.Department))
	}
	if filters.Search != "" {
		p := arg("%" + filters.Search + "%")
		where = append(where, "(title ILIKE "+p+" OR code ILIKE "+p+")")
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE ` + clause +
		` ORDER BY updated_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

func (r *pgRepository) GetHistory(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, document_id, COALESCE(from_status, ''), to_status, action, actor_id, actor_role, remarks, occurred_at
		FROM document_history
		WHERE document_id = $1
		ORDER BY id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.FromStatus, &e.ToStatus, &e.Action, &e.ActorID, &e.ActorRole, &e.Remarks, &e.At); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *pgRepository) GetDistributions(ctx context.Context, id uuid.UUID) ([]DistributionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, document_id, recipient_id, distributed_at, acknowledged_at, remarks
		FROM document_distributions
		WHERE document_id = $1
		ORDER BY id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DistributionRecord
	for rows.Next() {
		var rec DistributionRecord
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.RecipientID, &rec.DistributedAt, &rec.AcknowledgedAt, &rec.Remarks); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type pgTxRepository struct {
	db pgx.Tx
}

func (tx *pgTxRepository) InsertDocument(ctx context.Context, doc Document) error {
	_, err := tx.db.Exec(ctx, `
		INSERT INTO documents (id, code, title, document_type, department, retention_months,
			effective_date, content_url, file_name, file_size, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		doc.ID, doc.Code, doc.Title, doc.DocumentType, doc.Department, doc.RetentionMonths,
		doc.EffectiveDate, doc.ContentURL, doc.FileName, doc.FileSize, doc.Status,
		doc.CreatedBy, doc.CreatedAt, doc.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: document code %s already exists", ErrValidation, doc.Code)
	}
	return err
}

func (tx *pgTxRepository) UpdateDocumentFields(ctx context.Context, doc Document) error {
	tag, err := tx.db.Exec(ctx, `
		UPDATE documents
		SET title = $2, document_type = $3, department = $4, retention_months = $5,
			effective_date = $6, content_url = $7, file_name = $8, file_size = $9,
			updated_at = $10
		WHERE id = $1 AND deleted_at IS NULL`,
		doc.ID, doc.Title, doc.DocumentType, doc.Department, doc.RetentionMonths,
		doc.EffectiveDate, doc.ContentURL, doc.FileName, doc.FileSize, doc.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus is the compare-and-set at the heart of the no-lost-update
// guarantee: the row moves only if it still holds the expected state.
func (tx *pgTxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := tx.db.Exec(ctx,
		`UPDATE documents SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := getDocument(ctx, tx.db, id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func (tx *pgTxRepository) MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := tx.db.Exec(ctx,
		`UPDATE documents SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *pgTxRepository) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	_, err := tx.db.Exec(ctx, `
		INSERT INTO document_history (document_id, from_status, to_status, action, actor_id, actor_role, remarks, occurred_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8)`,
		entry.DocumentID, string(entry.FromStatus), entry.ToStatus, entry.Action,
		entry.ActorID, entry.ActorRole, entry.Remarks, entry.At,
	)
	return err
}

func (tx *pgTxRepository) InsertDistribution(ctx context.Context, rec DistributionRecord) error {
	_, err := tx.db.Exec(ctx, `
		INSERT INTO document_distributions (document_id, recipient_id, distributed_at)
		VALUES ($1, $2, $3)`,
		rec.DocumentID, rec.RecipientID, rec.DistributedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: recipient %d already on the distribution list", ErrConflict, rec.RecipientID)
	}
	return err
}

func (tx *pgTxRepository) MissingRecipients(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := tx.db.Query(ctx, `
		SELECT candidate
		FROM UNNEST($1::bigint[]) AS candidate
		WHERE NOT EXISTS (SELECT 1 FROM users WHERE users.id = candidate AND users.is_active)`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missing []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		missing = append(missing, id)
	}
	return missing, rows.Err()
}

func (tx *pgTxRepository) Acknowledge(ctx context.Context, documentID uuid.UUID, recipientID int64, remarks string, at time.Time) (bool, error) {
	tag, err := tx.db.Exec(ctx, `
		UPDATE document_distributions
		SET acknowledged_at = $3, remarks = $4
		WHERE document_id = $1 AND recipient_id = $2 AND acknowledged_at IS NULL`,
		documentID, recipientID, at, remarks,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (tx *pgTxRepository) GetDistribution(ctx context.Context, documentID uuid.UUID, recipientID int64) (DistributionRecord, error) {
	var rec DistributionRecord
	err := tx.db.QueryRow(ctx, `
		SELECT id, document_id, recipient_id, distributed_at, acknowledged_at, remarks
		FROM document_distributions
		WHERE document_id = $1 AND recipient_id = $2`,
		documentID, recipientID,
	).Scan(&rec.ID, &rec.DocumentID, &rec.RecipientID, &rec.DistributedAt, &rec.AcknowledgedAt, &rec.Remarks)
	if errors.Is(err, pgx.ErrNoRows) {
		return DistributionRecord{}, ErrNotFound
	}
	return rec, err
}
