package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sekolah/school-api/internal/model"
)

// SchoolRepository handles the school profile
type SchoolRepository struct {
	pool *pgxpool.Pool
}

func NewSchoolRepository(pool *pgxpool.Pool) *SchoolRepository {
	return &SchoolRepository{pool: pool}
}

const schoolColumns = `id, school_name, address, phone, email, principal, academic_year,
	about, vision, mission, logo_url, created_at, updated_at`

// Get returns the latest profile row, or nil if none exists
func (r *SchoolRepository) Get(ctx context.Context) (*model.SchoolInfo, error) {
	return r.queryInfo(ctx, `SELECT `+schoolColumns+` FROM school_info ORDER BY id DESC LIMIT 1`)
}

// Upsert overwrites the latest profile row, inserting one if the table is empty
func (r *SchoolRepository) Upsert(ctx context.Context, in model.SchoolInfoInput) (*model.SchoolInfo, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `SELECT id FROM school_info ORDER BY id DESC LIMIT 1 FOR UPDATE`).Scan(&id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	values := []interface{}{
		in.SchoolName, in.Address, in.Phone, in.Email, in.Principal,
		in.AcademicYear, in.About, in.Vision, in.Mission, in.LogoURL,
	}

	var row pgx.Row
	if errors.Is(err, pgx.ErrNoRows) {
		row = tx.QueryRow(ctx, `
			INSERT INTO school_info
				(school_name, address, phone, email, principal, academic_year, about, vision, mission, logo_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING `+schoolColumns, values...)
	} else {
		row = tx.QueryRow(ctx, `
			UPDATE school_info
			SET school_name = $1, address = $2, phone = $3, email = $4, principal = $5,
			    academic_year = $6, about = $7, vision = $8, mission = $9, logo_url = $10
			WHERE id = $11
			RETURNING `+schoolColumns, append(values, id)...)
	}

	info, err := scanSchool(row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return info, nil
}

func (r *SchoolRepository) queryInfo(ctx context.Context, query string, args ...interface{}) (*model.SchoolInfo, error) {
	info, err := scanSchool(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return info, err
}

func scanSchool(row pgx.Row) (*model.SchoolInfo, error) {
	var s model.SchoolInfo
	if err := row.Scan(
		&s.ID, &s.SchoolName, &s.Address, &s.Phone, &s.Email, &s.Principal, &s.AcademicYear,
		&s.About, &s.Vision, &s.Mission, &s.LogoURL, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
