package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sekolah/school-api/internal/model"
)

// UserRepository handles administrator accounts
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, username, email, password, role, created_at, updated_at`

// GetByUsername returns the user or nil if none exists
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// GetByID returns the user or nil if none exists
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// Create inserts a user. A duplicate username or email returns ErrConflict.
func (r *UserRepository) Create(ctx context.Context, u *model.User) (*model.User, error) {
	created, err := r.queryUser(ctx, `
		INSERT INTO users (username, email, password, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		u.Username, u.Email, u.PasswordHash, u.Role,
	)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return created, nil
}

// UpdatePassword stores a new password hash and reports whether the user exists
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `UPDATE users SET password = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *UserRepository) queryUser(ctx context.Context, query string, args ...interface{}) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
