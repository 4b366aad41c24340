package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sekolah/school-api/internal/apperr"
	"github.com/sekolah/school-api/internal/model"
	"github.com/sekolah/school-api/internal/repository"
)

const (
	defaultStudentLimit = 10
	maxStudentLimit     = 100
	msgStudentNotFound  = "student not found"
	msgNISNTaken        = "NISN already registered"
)

// StudentStore is the persistence used by StudentService
type StudentStore interface {
	Search(ctx context.Context, term string) ([]model.Student, error)
	List(ctx context.Context, filter model.StudentFilter) ([]model.Student, int, error)
	GetByID(ctx context.Context, id int64) (*model.Student, error)
	NISNExists(ctx context.Context, nisn string, excludeID int64) (bool, error)
	Create(ctx context.Context, in model.StudentInput) (*model.Student, error)
	Update(ctx context.Context, id int64, in model.StudentInput) (*model.Student, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Stats(ctx context.Context) (*model.GraduationStats, error)
}

// StudentService handles graduation records
type StudentService struct {
	store    StudentStore
	validate *validator.Validate
	logger   *slog.Logger
}

func NewStudentService(store StudentStore, logger *slog.Logger) *StudentService {
	return &StudentService{store: store, validate: newValidator(), logger: logger}
}

// Check looks up graduation results by name substring or exact NISN
func (s *StudentService) Check(ctx context.Context, term string) ([]model.Student, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, apperr.Validation("search is required", map[string]string{"search": "search is required"})
	}
	students, err := s.store.Search(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("failed to search students: %w", err)
	}
	if len(students) == 0 {
		return nil, apperr.NotFound(msgStudentNotFound)
	}
	return students, nil
}

func (s *StudentService) List(ctx context.Context, filter model.StudentFilter) ([]model.Student, model.Pagination, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Page, filter.Limit = clampPage(filter.Page, filter.Limit, defaultStudentLimit, maxStudentLimit)

	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, model.Pagination{}, fmt.Errorf("failed to list students: %w", err)
	}
	return items, model.Pagination{
		CurrentPage: filter.Page,
		TotalPages:  totalPages(total, filter.Limit),
		TotalCount:  total,
		Limit:       filter.Limit,
	}, nil
}

func (s *StudentService) Create(ctx context.Context, in model.StudentInput) (*model.Student, error) {
	normalizeStudent(&in)
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}
	if err := s.checkNISN(ctx, in.NISN, 0); err != nil {
		return nil, err
	}

	created, err := s.store.Create(ctx, in)
	if errors.Is(err, repository.ErrConflict) {
		return nil, apperr.Conflict(msgNISNTaken, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create student: %w", err)
	}
	s.logger.Info("student created", "id", created.ID)
	return created, nil
}

func (s *StudentService) Update(ctx context.Context, id int64, in model.StudentInput) (*model.Student, error) {
	normalizeStudent(&in)
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}

	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if existing == nil {
		return nil, apperr.NotFound(msgStudentNotFound)
	}
	if err := s.checkNISN(ctx, in.NISN, id); err != nil {
		return nil, err
	}

	updated, err := s.store.Update(ctx, id, in)
	if errors.Is(err, repository.ErrConflict) {
		return nil, apperr.Conflict(msgNISNTaken, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update student: %w", err)
	}
	if updated == nil {
		return nil, apperr.NotFound(msgStudentNotFound)
	}
	return updated, nil
}

func (s *StudentService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	if !deleted {
		return apperr.NotFound(msgStudentNotFound)
	}
	s.logger.Info("student deleted", "id", id)
	return nil
}

// Stats returns graduation totals with the average rounded to two decimals
// and the graduation rate as a whole percentage.
func (s *StudentService) Stats(ctx context.Context) (*model.GraduationStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get student stats: %w", err)
	}
	stats.AverageScore = math.Round(stats.AverageScore*100) / 100
	if stats.TotalStudents > 0 {
		stats.GraduationRate = int(math.Round(float64(stats.Graduated) / float64(stats.TotalStudents) * 100))
	}
	return stats, nil
}

func (s *StudentService) checkNISN(ctx context.Context, nisn string, excludeID int64) error {
	taken, err := s.store.NISNExists(ctx, nisn, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check nisn: %w", err)
	}
	if taken {
		return apperr.Conflict(msgNISNTaken, nil)
	}
	return nil
}

func normalizeStudent(in *model.StudentInput) {
	in.Name = strings.TrimSpace(in.Name)
	in.NISN = strings.TrimSpace(in.NISN)
	in.Class = trimPtr(in.Class)
	in.Notes = trimPtr(in.Notes)
}
