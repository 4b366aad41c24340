package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah/school-api/internal/apperr"
	"github.com/sekolah/school-api/internal/model"
	"github.com/sekolah/school-api/internal/service/servicetest"
)

func boolp(b bool) *bool { return &b }

func floatp(f float64) *float64 { return &f }

func studentInput(name, nisn string, graduated bool, score float64) model.StudentInput {
	return model.StudentInput{
		Name:         name,
		NISN:         nisn,
		Class:        strp("XII IPA 1"),
		Graduated:    boolp(graduated),
		AverageScore: floatp(score),
	}
}

func newStudentService(t *testing.T) *StudentService {
	t.Helper()
	return NewStudentService(servicetest.NewStudentStore(), discardLogger())
}

func TestStudentCreateAndCheck(t *testing.T) {
	svc := newStudentService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, studentInput(" Budi Santoso ", "0051234567", true, 87.5))
	require.NoError(t, err)
	assert.Equal(t, "Budi Santoso", created.Name)
	assert.True(t, created.Graduated)

	byName, err := svc.Check(ctx, "budi")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, created.ID, byName[0].ID)

	byNISN, err := svc.Check(ctx, "0051234567")
	require.NoError(t, err)
	require.Len(t, byNISN, 1)

	_, err = svc.Check(ctx, "siti")
	requireKind(t, err, apperr.KindNotFound)

	_, err = svc.Check(ctx, "  ")
	requireKind(t, err, apperr.KindValidation)
}

func TestStudentValidation(t *testing.T) {
	svc := newStudentService(t)

	tests := []struct {
		name  string
		in    model.StudentInput
		field string
	}{
		{"digits in name", studentInput("Budi 2", "0051234567", true, 80), "name"},
		{"letters in nisn", studentInput("Budi", "00512345AB", true, 80), "nisn"},
		{"short nisn", studentInput("Budi", "12345", true, 80), "nisn"},
		{"score too high", studentInput("Budi", "0051234567", true, 101), "average_score"},
		{"missing graduated", model.StudentInput{Name: "Budi", NISN: "0051234567"}, "graduated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			e := requireKind(t, err, apperr.KindValidation)
			assert.Contains(t, e.Fields, tt.field)
		})
	}
}

func TestStudentDuplicateNISN(t *testing.T) {
	svc := newStudentService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, studentInput("Budi Santoso", "0051234567", true, 80))
	require.NoError(t, err)
	second, err := svc.Create(ctx, studentInput("Siti Aminah", "0051234568", false, 60))
	require.NoError(t, err)

	_, err = svc.Create(ctx, studentInput("Andi", "0051234567", true, 70))
	e := requireKind(t, err, apperr.KindConflict)
	assert.Equal(t, msgNISNTaken, e.Message)

	_, err = svc.Update(ctx, second.ID, studentInput("Siti Aminah", "0051234567", false, 60))
	requireKind(t, err, apperr.KindConflict)

	// Keeping its own NISN is fine.
	updated, err := svc.Update(ctx, first.ID, studentInput("Budi Santoso", "0051234567", false, 75))
	require.NoError(t, err)
	assert.False(t, updated.Graduated)
	assert.Equal(t, 75.0, *updated.AverageScore)
}

func TestStudentUpdateDelete(t *testing.T) {
	svc := newStudentService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, 42, studentInput("Budi Santoso", "0051234567", true, 80))
	requireKind(t, err, apperr.KindNotFound)

	created, err := svc.Create(ctx, studentInput("Budi Santoso", "0051234567", true, 80))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	requireKind(t, svc.Delete(ctx, created.ID), apperr.KindNotFound)
}

func TestStudentListAndStats(t *testing.T) {
	svc := newStudentService(t)
	ctx := context.Background()

	scores := []float64{90, 80.333, 70, 60}
	for i, score := range scores {
		_, err := svc.Create(ctx, studentInput(fmt.Sprintf("Siswa %c", 'A'+i), fmt.Sprintf("00512345%02d", i), i < 3, score))
		require.NoError(t, err)
	}

	items, page, err := svc.List(ctx, model.StudentFilter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, model.Pagination{CurrentPage: 1, TotalPages: 2, TotalCount: 4, Limit: 3}, page)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalStudents)
	assert.Equal(t, 3, stats.Graduated)
	assert.Equal(t, 1, stats.NotGraduated)
	assert.Equal(t, 75.08, stats.AverageScore)
	assert.Equal(t, 75, stats.GraduationRate)
}
