package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sekolah/school-api/internal/model"
)

const (
	articleColumns = `n.id, n.title, n.slug, n.content, n.excerpt, n.featured_image,
		n.author_id, n.author_name, n.category, c.name, c.color, n.tags, n.status,
		n.is_featured, n.view_count, n.published_at, n.created_at, n.updated_at`
	articleJoin = `LEFT JOIN news_categories c ON c.slug = n.category`
)

var sortColumns = map[string]string{
	model.SortCreatedAt:   "n.created_at",
	"createdAt":           "n.created_at",
	model.SortPublishedAt: "n.published_at",
	"publishedAt":         "n.published_at",
	model.SortViewCount:   "n.view_count",
	"viewCount":           "n.view_count",
	"views":               "n.view_count",
	model.SortTitle:       "n.title",
}

// NewsRepository handles read/write operations for news articles
type NewsRepository struct {
	pool *pgxpool.Pool
}

func NewNewsRepository(pool *pgxpool.Pool) *NewsRepository {
	return &NewsRepository{pool: pool}
}

// List returns one page of articles matching filter and the unpaginated total.
// Page and Limit must already be clamped by the caller.
func (r *NewsRepository) List(ctx context.Context, filter model.NewsFilter) ([]model.Article, int, error) {
	a := &args{}
	w := buildNewsWhere(a, filter)

	// Count query
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM news n %s`, w)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, a.list()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Data query with pagination
	offset := (filter.Page - 1) * filter.Limit
	dataQuery := fmt.Sprintf(`
		SELECT %s
		FROM news n %s
		%s
		ORDER BY %s
		LIMIT %s OFFSET %s
	`, articleColumns, articleJoin, w, orderBy(filter.SortBy, filter.SortOrder), a.add(filter.Limit), a.add(offset))

	items, err := r.queryArticles(ctx, dataQuery, a.list()...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func buildNewsWhere(a *args, filter model.NewsFilter) *where {
	w := newWhere(a)
	if filter.Category != nil {
		w.eq("n.category", *filter.Category)
	}
	if filter.Status != nil {
		w.eq("n.status", string(*filter.Status))
	}
	if filter.Author != nil {
		w.cond("n.author_name ILIKE %s", containsPattern(*filter.Author))
	}
	if filter.Search != nil {
		w.cond("(n.title ILIKE %s OR n.content ILIKE %s OR n.excerpt ILIKE %s)", containsPattern(*filter.Search))
	}
	if filter.StartDate != nil {
		w.cond("n.published_at >= %s", *filter.StartDate)
	}
	if filter.EndDate != nil {
		w.cond("n.published_at <= %s", *filter.EndDate)
	}
	if filter.Featured != nil {
		w.eq("n.is_featured", *filter.Featured)
	}
	return w
}

// orderBy resolves a requested sort against the allow-list. Unknown keys fall
// back to newest first.
func orderBy(sortBy, sortOrder string) string {
	col, ok := sortColumns[sortBy]
	if !ok {
		return "n.created_at DESC, n.id DESC"
	}
	dir := "DESC"
	if sortOrder == "ASC" || sortOrder == "asc" {
		dir = "ASC"
	}
	if col == "n.published_at" {
		return fmt.Sprintf("%s %s NULLS LAST, n.id %s", col, dir, dir)
	}
	return fmt.Sprintf("%s %s, n.id %s", col, dir, dir)
}

// GetByID returns an article by ID, or nil if it does not exist
func (r *NewsRepository) GetByID(ctx context.Context, id int64) (*model.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM news n %s WHERE n.id = $1`, articleColumns, articleJoin)
	return r.queryArticle(ctx, query, id)
}

// GetBySlug returns an article by slug, or nil if it does not exist
func (r *NewsRepository) GetBySlug(ctx context.Context, slug string) (*model.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM news n %s WHERE n.slug = $1`, articleColumns, articleJoin)
	return r.queryArticle(ctx, query, slug)
}

// SlugExists reports whether slug is taken by an article other than excludeID.
// Pass 0 to check against all articles.
func (r *NewsRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM news WHERE slug = $1 AND id <> $2)`,
		slug, excludeID,
	).Scan(&exists)
	return exists, err
}

// Insert stores a new article. A slug collision returns ErrConflict.
func (r *NewsRepository) Insert(ctx context.Context, n *model.Article) (*model.Article, error) {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	query := fmt.Sprintf(`
		WITH n AS (
			INSERT INTO news
				(title, slug, content, excerpt, featured_image, author_id, author_name,
				 category, tags, status, is_featured, published_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING *
		)
		SELECT %s FROM n %s
	`, articleColumns, articleJoin)

	created, err := r.queryArticle(ctx, query,
		n.Title, n.Slug, n.Content, n.Excerpt, n.FeaturedImage, n.AuthorID, n.AuthorName,
		n.Category, tags, string(n.Status), n.IsFeatured, n.PublishedAt,
	)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return created, nil
}

// Update applies the non-nil fields of u. It returns nil if the article does
// not exist and ErrConflict on a slug collision.
func (r *NewsRepository) Update(ctx context.Context, id int64, u model.ArticleUpdate) (*model.Article, error) {
	a := &args{}
	s := buildNewsSet(a, u)
	if s.empty() {
		return r.GetByID(ctx, id)
	}

	query := fmt.Sprintf(`
		WITH n AS (
			UPDATE news SET %s
			WHERE id = %s
			RETURNING *
		)
		SELECT %s FROM n %s
	`, s, a.add(id), articleColumns, articleJoin)

	updated, err := r.queryArticle(ctx, query, a.list()...)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return updated, nil
}

// buildNewsSet turns the non-nil fields of u into assignments in a fixed column order
func buildNewsSet(a *args, u model.ArticleUpdate) *set {
	s := newSet(a)
	if u.Title != nil {
		s.add("title", *u.Title)
	}
	if u.Slug != nil {
		s.add("slug", *u.Slug)
	}
	if u.Content != nil {
		s.add("content", *u.Content)
	}
	if u.Excerpt != nil {
		s.add("excerpt", *u.Excerpt)
	}
	if u.FeaturedImage != nil {
		s.add("featured_image", *u.FeaturedImage)
	}
	if u.Category != nil {
		s.add("category", *u.Category)
	}
	if u.Tags != nil {
		tags := *u.Tags
		if tags == nil {
			tags = []string{}
		}
		s.add("tags", tags)
	}
	if u.Status != nil {
		s.add("status", string(*u.Status))
	}
	if u.IsFeatured != nil {
		s.add("is_featured", *u.IsFeatured)
	}
	if u.StampPublished != nil {
		s.raw(fmt.Sprintf("published_at = COALESCE(published_at, %s)", a.add(*u.StampPublished)))
	}
	return s
}

// ToggleFeatured flips is_featured and returns the article, or nil if it does not exist
func (r *NewsRepository) ToggleFeatured(ctx context.Context, id int64) (*model.Article, error) {
	query := fmt.Sprintf(`
		WITH n AS (
			UPDATE news SET is_featured = NOT is_featured
			WHERE id = $1
			RETURNING *
		)
		SELECT %s FROM n %s
	`, articleColumns, articleJoin)
	return r.queryArticle(ctx, query, id)
}

// Delete removes an article and reports whether a row was deleted
func (r *NewsRepository) Delete(ctx context.Context, id int64) (bool, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM news WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// IncrementViews adds one view and returns the stored count. found is false
// when the article does not exist.
func (r *NewsRepository) IncrementViews(ctx context.Context, id int64) (count int, found bool, err error) {
	err = r.pool.QueryRow(ctx,
		`UPDATE news SET view_count = view_count + 1 WHERE id = $1 RETURNING view_count`,
		id,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

// Featured returns published featured articles, newest first
func (r *NewsRepository) Featured(ctx context.Context, limit int) ([]model.Article, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM news n %s
		WHERE n.status = 'published' AND n.is_featured
		ORDER BY n.published_at DESC NULLS LAST, n.created_at DESC
		LIMIT $1
	`, articleColumns, articleJoin)
	return r.queryArticles(ctx, query, limit)
}

// Categories returns all categories with their published article counts
func (r *NewsRepository) Categories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, c.slug, c.description, c.color, c.created_at, COUNT(n.id)
		FROM news_categories c
		LEFT JOIN news n ON n.category = c.slug AND n.status = 'published'
		GROUP BY c.id, c.name, c.slug, c.description, c.color, c.created_at
		ORDER BY c.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Color, &c.CreatedAt, &c.NewsCount); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Stats aggregates counts by status, featured count, total views, and the top
// published articles by views and by recency.
func (r *NewsRepository) Stats(ctx context.Context) (*model.NewsStats, error) {
	var stats model.NewsStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'published'),
			COUNT(*) FILTER (WHERE status = 'draft'),
			COUNT(*) FILTER (WHERE status = 'archived'),
			COUNT(*) FILTER (WHERE is_featured),
			COALESCE(SUM(view_count), 0)
		FROM news
	`).Scan(&stats.TotalNews, &stats.Published, &stats.Draft, &stats.Archived, &stats.Featured, &stats.TotalViews)
	if err != nil {
		return nil, fmt.Errorf("failed to count news: %w", err)
	}

	stats.MostViewed, err = r.queryArticles(ctx, fmt.Sprintf(`
		SELECT %s FROM news n %s
		WHERE n.status = 'published'
		ORDER BY n.view_count DESC, n.id DESC
		LIMIT 5
	`, articleColumns, articleJoin))
	if err != nil {
		return nil, fmt.Errorf("failed to query most viewed: %w", err)
	}

	stats.RecentNews, err = r.queryArticles(ctx, fmt.Sprintf(`
		SELECT %s FROM news n %s
		WHERE n.status = 'published'
		ORDER BY n.published_at DESC NULLS LAST, n.created_at DESC
		LIMIT 5
	`, articleColumns, articleJoin))
	if err != nil {
		return nil, fmt.Errorf("failed to query recent news: %w", err)
	}

	return &stats, nil
}

func (r *NewsRepository) queryArticle(ctx context.Context, query string, args ...interface{}) (*model.Article, error) {
	n, err := scanArticle(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (r *NewsRepository) queryArticles(ctx context.Context, query string, args ...interface{}) ([]model.Article, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.Article{}
	for rows.Next() {
		n, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *n)
	}
	return items, rows.Err()
}

func scanArticle(row pgx.Row) (*model.Article, error) {
	var n model.Article
	var status string
	var publishedAt *time.Time
	err := row.Scan(
		&n.ID, &n.Title, &n.Slug, &n.Content, &n.Excerpt, &n.FeaturedImage,
		&n.AuthorID, &n.AuthorName, &n.Category, &n.CategoryName, &n.CategoryColor, &n.Tags, &status,
		&n.IsFeatured, &n.ViewCount, &publishedAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Status = model.Status(status)
	n.PublishedAt = publishedAt
	return &n, nil
}
