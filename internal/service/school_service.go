package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sekolah/school-api/internal/apperr"
	"github.com/sekolah/school-api/internal/model"
)

// SchoolStore is the persistence used by SchoolService
type SchoolStore interface {
	Get(ctx context.Context) (*model.SchoolInfo, error)
	Upsert(ctx context.Context, in model.SchoolInfoInput) (*model.SchoolInfo, error)
}

// SchoolService handles the school profile
type SchoolService struct {
	store    SchoolStore
	validate *validator.Validate
	logger   *slog.Logger
}

func NewSchoolService(store SchoolStore, logger *slog.Logger) *SchoolService {
	return &SchoolService{store: store, validate: newValidator(), logger: logger}
}

func (s *SchoolService) Get(ctx context.Context) (*model.SchoolInfo, error) {
	info, err := s.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get school info: %w", err)
	}
	if info == nil {
		return nil, apperr.NotFound("school info not found")
	}
	return info, nil
}

func (s *SchoolService) Update(ctx context.Context, in model.SchoolInfoInput) (*model.SchoolInfo, error) {
	in.SchoolName = strings.TrimSpace(in.SchoolName)
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}
	info, err := s.store.Upsert(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to update school info: %w", err)
	}
	s.logger.Info("school info updated", "id", info.ID)
	return info, nil
}
