package crew

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort defines data access for seafarer records.
type RepositoryPort interface {
	List(ctx context.Context, limit, offset int, search string) ([]Seafarer, int, error)
	Get(ctx context.Context, id int64) (Seafarer, error)
	Insert(ctx context.Context, s Seafarer) (int64, error)
	Update(ctx context.Context, s Seafarer) error
}

var _ RepositoryPort = (*PGRepository)(nil)

// PGRepository implements RepositoryPort on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const seafarerColumns = `id, full_name, rank, nationality, passport_no, date_of_birth,
	vessel_name, sign_on_date, sign_off_date, is_active, created_at, updated_at`

func scanSeafarer(row pgx.Row) (Seafarer, error) {
	var s Seafarer
	err := row.Scan(&s.ID, &s.FullName, &s.Rank, &s.Nationality, &s.PassportNo,
		&s.DateOfBirth, &s.VesselName, &s.SignOnDate, &s.SignOffDate,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Seafarer{}, ErrNotFound
	}
	return s, err
}

func (r *PGRepository) List(ctx context.Context, limit, offset int, search string) ([]Seafarer, int, error) {
	pattern := "%" + search + "%"
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM seafarers
		WHERE ($1 = '%%' OR full_name ILIKE $1 OR rank ILIKE $1)`, pattern).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+seafarerColumns+` FROM seafarers
		WHERE ($1 = '%%' OR full_name ILIKE $1 OR rank ILIKE $1)
		ORDER BY full_name
		LIMIT $2 OFFSET $3`, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Seafarer
	for rows.Next() {
		s, err := scanSeafarer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *PGRepository) Get(ctx context.Context, id int64) (Seafarer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+seafarerColumns+` FROM seafarers WHERE id = $1`, id)
	return scanSeafarer(row)
}

func (r *PGRepository) Insert(ctx context.Context, s Seafarer) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO seafarers (full_name, rank, nationality, passport_no, date_of_birth,
			vessel_name, sign_on_date, sign_off_date, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, NOW(), NOW())
		RETURNING id`,
		s.FullName, s.Rank, s.Nationality, s.PassportNo, s.DateOfBirth,
		s.VesselName, s.SignOnDate, s.SignOffDate).Scan(&id)
	return id, err
}

func (r *PGRepository) Update(ctx context.Context, s Seafarer) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE seafarers
		SET full_name = $2, rank = $3, nationality = $4, passport_no = $5,
			date_of_birth = $6, vessel_name = $7, sign_on_date = $8,
			sign_off_date = $9, is_active = $10, updated_at = NOW()
		WHERE id = $1`,
		s.ID, s.FullName, s.Rank, s.Nationality, s.PassportNo, s.DateOfBirth,
		s.VesselName, s.SignOnDate, s.SignOffDate, s.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
