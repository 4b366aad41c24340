package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sekolah/school-api/internal/model"
)

func TestOrderBy(t *testing.T) {
	tests := []struct {
		name      string
		sortBy    string
		sortOrder string
		want      string
	}{
		{"empty falls back", "", "", "n.created_at DESC, n.id DESC"},
		{"unknown key falls back", "author_name", "ASC", "n.created_at DESC, n.id DESC"},
		{"unknown key ignores order", "content", "DESC", "n.created_at DESC, n.id DESC"},
		{"injection shaped key", "id; DROP TABLE news", "ASC", "n.created_at DESC, n.id DESC"},
		{"injection shaped order", "title", "ASC; DROP TABLE news", "n.title DESC, n.id DESC"},
		{"snake created_at asc", "created_at", "ASC", "n.created_at ASC, n.id ASC"},
		{"camel createdAt desc", "createdAt", "DESC", "n.created_at DESC, n.id DESC"},
		{"snake published_at asc", "published_at", "ASC", "n.published_at ASC NULLS LAST, n.id ASC"},
		{"camel publishedAt desc", "publishedAt", "DESC", "n.published_at DESC NULLS LAST, n.id DESC"},
		{"snake view_count lower asc", "view_count", "asc", "n.view_count ASC, n.id ASC"},
		{"camel viewCount desc", "viewCount", "DESC", "n.view_count DESC, n.id DESC"},
		{"views alias", "views", "ASC", "n.view_count ASC, n.id ASC"},
		{"title asc", "title", "ASC", "n.title ASC, n.id ASC"},
		{"title default order", "title", "", "n.title DESC, n.id DESC"},
		{"keys are case sensitive", "Title", "ASC", "n.created_at DESC, n.id DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderBy(tt.sortBy, tt.sortOrder))
		})
	}
}

func TestBuildNewsWhereAllFilters(t *testing.T) {
	category := "akademik"
	status := model.StatusPublished
	author := "Budi"
	search := "50%_off"
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)
	featured := true

	a := &args{}
	w := buildNewsWhere(a, model.NewsFilter{
		Category:  &category,
		Status:    &status,
		Author:    &author,
		Search:    &search,
		StartDate: &start,
		EndDate:   &end,
		Featured:  &featured,
	})

	assert.Equal(t,
		"WHERE n.category = $1 AND n.status = $2 AND n.author_name ILIKE $3"+
			" AND (n.title ILIKE $4 OR n.content ILIKE $4 OR n.excerpt ILIKE $4)"+
			" AND n.published_at >= $5 AND n.published_at <= $6 AND n.is_featured = $7",
		w.String())
	assert.Equal(t, []interface{}{
		"akademik",
		"published",
		"%Budi%",
		`%50\%\_off%`,
		start,
		end,
		true,
	}, a.list())

	// Pagination placeholders continue after the filters.
	assert.Equal(t, "$8", a.add(10))
}

func TestBuildNewsWhereSubset(t *testing.T) {
	search := "ujian"
	featured := false

	a := &args{}
	w := buildNewsWhere(a, model.NewsFilter{Search: &search, Featured: &featured})

	assert.Equal(t,
		"WHERE (n.title ILIKE $1 OR n.content ILIKE $1 OR n.excerpt ILIKE $1) AND n.is_featured = $2",
		w.String())
	assert.Equal(t, []interface{}{"%ujian%", false}, a.list())

	empty := buildNewsWhere(&args{}, model.NewsFilter{})
	assert.Equal(t, "", empty.String())
}

func TestBuildNewsSet(t *testing.T) {
	t.Run("publish stamps only when unset", func(t *testing.T) {
		status := model.StatusPublished
		now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

		a := &args{}
		s := buildNewsSet(a, model.ArticleUpdate{Status: &status, StampPublished: &now})

		assert.Equal(t, "status = $1, published_at = COALESCE(published_at, $2)", s.String())
		assert.Equal(t, []interface{}{"published", now}, a.list())
	})

	t.Run("fields in column order", func(t *testing.T) {
		title := "Ujian Akhir Semester"
		slug := "ujian-akhir-semester"
		excerpt := "Jadwal ujian"
		featured := true
		var cleared []string

		a := &args{}
		s := buildNewsSet(a, model.ArticleUpdate{
			IsFeatured: &featured,
			Excerpt:    &excerpt,
			Slug:       &slug,
			Title:      &title,
			Tags:       &cleared,
		})

		assert.Equal(t, "title = $1, slug = $2, excerpt = $3, tags = $4, is_featured = $5", s.String())
		assert.Equal(t, []interface{}{title, slug, excerpt, []string{}, true}, a.list())
		assert.Equal(t, "$6", a.add(int64(3)))
	})

	t.Run("empty update", func(t *testing.T) {
		s := buildNewsSet(&args{}, model.ArticleUpdate{})
		assert.True(t, s.empty())
	})
}
