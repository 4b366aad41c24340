package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sekolah/school-api/internal/model"
)

// StudentRepository handles graduation records
type StudentRepository struct {
	pool *pgxpool.Pool
}

func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

const studentColumns = `id, name, nisn, class, graduated, average_score::float8, notes, created_at, updated_at`

// Search returns students whose name contains term or whose NISN equals it
func (r *StudentRepository) Search(ctx context.Context, term string) ([]model.Student, error) {
	return r.queryStudents(ctx, `
		SELECT `+studentColumns+`
		FROM students
		WHERE name ILIKE $1 OR nisn = $2
		ORDER BY name
	`, containsPattern(term), term)
}

// List returns one page of students, newest first, optionally filtered by
// name or NISN substring.
func (r *StudentRepository) List(ctx context.Context, filter model.StudentFilter) ([]model.Student, int, error) {
	a := &args{}
	w := newWhere(a)
	if filter.Search != "" {
		w.cond("(name ILIKE %s OR nisn ILIKE %s)", containsPattern(filter.Search))
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM students %s`, w), a.list()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	query := fmt.Sprintf(`
		SELECT %s FROM students %s
		ORDER BY created_at DESC, id DESC
		LIMIT %s OFFSET %s
	`, studentColumns, w, a.add(filter.Limit), a.add(offset))

	items, err := r.queryStudents(ctx, query, a.list()...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetByID returns the student or nil if none exists
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*model.Student, error) {
	return r.queryStudent(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
}

// NISNExists reports whether nisn belongs to a student other than excludeID
func (r *StudentRepository) NISNExists(ctx context.Context, nisn string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM students WHERE nisn = $1 AND id <> $2)`,
		nisn, excludeID,
	).Scan(&exists)
	return exists, err
}

// Create inserts a student. A duplicate NISN returns ErrConflict.
func (r *StudentRepository) Create(ctx context.Context, in model.StudentInput) (*model.Student, error) {
	s, err := r.queryStudent(ctx, `
		INSERT INTO students (name, nisn, class, graduated, average_score, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+studentColumns,
		in.Name, in.NISN, in.Class, *in.Graduated, in.AverageScore, in.Notes,
	)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return s, nil
}

// Update replaces a student's fields. It returns nil if the student does not exist.
func (r *StudentRepository) Update(ctx context.Context, id int64, in model.StudentInput) (*model.Student, error) {
	s, err := r.queryStudent(ctx, `
		UPDATE students
		SET name = $1, nisn = $2, class = $3, graduated = $4, average_score = $5, notes = $6
		WHERE id = $7
		RETURNING `+studentColumns,
		in.Name, in.NISN, in.Class, *in.Graduated, in.AverageScore, in.Notes, id,
	)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return s, nil
}

// Delete removes a student and reports whether a row was deleted
func (r *StudentRepository) Delete(ctx context.Context, id int64) (bool, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// Stats returns graduation totals. The average covers students with a score.
func (r *StudentRepository) Stats(ctx context.Context) (*model.GraduationStats, error) {
	var s model.GraduationStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE graduated),
			COUNT(*) FILTER (WHERE NOT graduated),
			COALESCE(AVG(average_score), 0)::float8
		FROM students
	`).Scan(&s.TotalStudents, &s.Graduated, &s.NotGraduated, &s.AverageScore)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StudentRepository) queryStudent(ctx context.Context, query string, args ...interface{}) (*model.Student, error) {
	s, err := scanStudent(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *StudentRepository) queryStudents(ctx context.Context, query string, args ...interface{}) ([]model.Student, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *s)
	}
	return items, rows.Err()
}

func scanStudent(row pgx.Row) (*model.Student, error) {
	var s model.Student
	if err := row.Scan(
		&s.ID, &s.Name, &s.NISN, &s.Class, &s.Graduated, &s.AverageScore, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
