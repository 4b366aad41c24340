package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sekolah/school-api/internal/apperr"
	"github.com/sekolah/school-api/internal/content"
	"github.com/sekolah/school-api/internal/model"
	"github.com/sekolah/school-api/internal/repository"
	"github.com/sekolah/school-api/internal/storage"
)

const (
	defaultNewsLimit  = 10
	maxPublicLimit    = 50
	maxAdminLimit     = 100
	defaultFeatured   = 3
	maxFeatured       = 10
	maxSlugProbes     = 1000
	fallbackSlugBase  = "news"
	msgNewsNotFound   = "news not found"
	msgSlugConflict   = "an article with this slug already exists"
	msgImageStoreFail = "failed to store image"
)

var numericID = regexp.MustCompile(`^\d+$`)

// NewsStore is the persistence used by NewsService
type NewsStore interface {
	List(ctx context.Context, filter model.NewsFilter) ([]model.Article, int, error)
	GetByID(ctx context.Context, id int64) (*model.Article, error)
	GetBySlug(ctx context.Context, slug string) (*model.Article, error)
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	Insert(ctx context.Context, n *model.Article) (*model.Article, error)
	Update(ctx context.Context, id int64, u model.ArticleUpdate) (*model.Article, error)
	ToggleFeatured(ctx context.Context, id int64) (*model.Article, error)
	Delete(ctx context.Context, id int64) (bool, error)
	IncrementViews(ctx context.Context, id int64) (int, bool, error)
	Featured(ctx context.Context, limit int) ([]model.Article, error)
	Categories(ctx context.Context) ([]model.Category, error)
	Stats(ctx context.Context) (*model.NewsStats, error)
}

// ImageStore commits and removes article images
type ImageStore interface {
	Validate(u *storage.Upload) error
	Commit(ctx context.Context, u *storage.Upload) (string, error)
	Remove(ctx context.Context, publicPath string) error
}

// NewsService handles news operations
type NewsService struct {
	store    NewsStore
	images   ImageStore
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

func NewNewsService(store NewsStore, images ImageStore, logger *slog.Logger) *NewsService {
	return &NewsService{
		store:    store,
		images:   images,
		validate: newValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

// List returns a page of articles. Public callers only ever see published
// articles and get a smaller page size cap.
func (s *NewsService) List(ctx context.Context, filter model.NewsFilter, scope model.Scope) ([]model.Article, model.Pagination, error) {
	maxLimit := maxAdminLimit
	if scope == model.ScopePublic {
		maxLimit = maxPublicLimit
		published := model.StatusPublished
		filter.Status = &published
	}
	filter.Page, filter.Limit = clampPage(filter.Page, filter.Limit, defaultNewsLimit, maxLimit)

	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, model.Pagination{}, fmt.Errorf("failed to list news: %w", err)
	}

	return items, model.Pagination{
		CurrentPage: filter.Page,
		TotalPages:  totalPages(total, filter.Limit),
		TotalCount:  total,
		Limit:       filter.Limit,
	}, nil
}

// GetByIdentifier looks an article up by numeric ID or by slug. The public
// variant hides unpublished articles and counts the view.
func (s *NewsService) GetByIdentifier(ctx context.Context, identifier string, scope model.Scope) (*model.Article, error) {
	var (
		n   *model.Article
		err error
	)
	if numericID.MatchString(identifier) {
		id, perr := strconv.ParseInt(identifier, 10, 64)
		if perr != nil {
			return nil, apperr.NotFound(msgNewsNotFound)
		}
		n, err = s.store.GetByID(ctx, id)
	} else {
		n, err = s.store.GetBySlug(ctx, identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get news: %w", err)
	}
	if n == nil {
		return nil, apperr.NotFound(msgNewsNotFound)
	}
	if scope == model.ScopeAdmin {
		return n, nil
	}

	if n.Status != model.StatusPublished {
		return nil, apperr.NotFound(msgNewsNotFound)
	}
	return s.IncrementViewAndFetch(ctx, n.ID)
}

// IncrementViewAndFetch counts one view and returns the article as stored afterwards
func (s *NewsService) IncrementViewAndFetch(ctx context.Context, id int64) (*model.Article, error) {
	_, found, err := s.store.IncrementViews(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to increment views: %w", err)
	}
	if !found {
		return nil, apperr.NotFound(msgNewsNotFound)
	}
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get news: %w", err)
	}
	if n == nil {
		return nil, apperr.NotFound(msgNewsNotFound)
	}
	return n, nil
}

// Create validates and stores a new article. When an image is supplied it is
// committed first and removed again if the article cannot be saved.
func (s *NewsService) Create(ctx context.Context, in model.NewsInput, actor model.Actor, upload *storage.Upload) (*model.Article, error) {
	normalizeInput(&in)
	if in.Status == "" {
		in.Status = model.StatusDraft
	}
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}

	var image *string
	if upload != nil {
		path, err := s.commitImage(ctx, upload)
		if err != nil {
			return nil, err
		}
		image = &path
	}

	created, err := s.insert(ctx, in, actor, image)
	if err != nil {
		if image != nil {
			s.removeImage(ctx, *image, "create failed")
		}
		return nil, err
	}

	s.logger.Info("news created", "id", created.ID, "slug", created.Slug, "author", actor.Username)
	return created, nil
}

func (s *NewsService) insert(ctx context.Context, in model.NewsInput, actor model.Actor, image *string) (*model.Article, error) {
	slug, err := s.uniqueSlug(ctx, in.Title, 0)
	if err != nil {
		return nil, err
	}

	excerpt := content.Excerpt(in.Content)
	if in.Excerpt != nil && *in.Excerpt != "" {
		excerpt = *in.Excerpt
	}

	n := &model.Article{
		Title:         in.Title,
		Slug:          slug,
		Content:       in.Content,
		Excerpt:       &excerpt,
		FeaturedImage: image,
		Category:      in.Category,
		Tags:          in.Tags,
		Status:        in.Status,
		IsFeatured:    in.IsFeatured,
	}
	if actor.ID != 0 {
		n.AuthorID = &actor.ID
	}
	if actor.Username != "" {
		n.AuthorName = &actor.Username
	}
	if in.Status == model.StatusPublished {
		now := s.now()
		n.PublishedAt = &now
	}

	created, err := s.store.Insert(ctx, n)
	if errors.Is(err, repository.ErrConflict) {
		// Lost a race on the slug; probe again and retry once.
		s.logger.Warn("slug conflict on insert, retrying", "slug", n.Slug)
		if n.Slug, err = s.uniqueSlug(ctx, in.Title, 0); err != nil {
			return nil, err
		}
		created, err = s.store.Insert(ctx, n)
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict(msgSlugConflict, err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create news: %w", err)
	}
	return created, nil
}

// Update applies a partial update. A newly supplied image replaces the old one
// only after the row has been updated; on failure the new image is removed.
func (s *NewsService) Update(ctx context.Context, id int64, patch model.NewsPatch, upload *storage.Upload) (*model.Article, error) {
	normalizePatch(&patch)
	if err := validateStruct(s.validate, patch); err != nil {
		return nil, err
	}

	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get news: %w", err)
	}
	if existing == nil {
		return nil, apperr.NotFound(msgNewsNotFound)
	}
	if patch.Empty() && upload == nil {
		return existing, nil
	}

	u, err := s.resolveUpdate(ctx, existing, patch)
	if err != nil {
		return nil, err
	}

	if upload != nil {
		path, err := s.commitImage(ctx, upload)
		if err != nil {
			return nil, err
		}
		u.FeaturedImage = &path
	}

	updated, err := s.applyUpdate(ctx, id, u)
	if err != nil {
		if u.FeaturedImage != nil {
			s.removeImage(ctx, *u.FeaturedImage, "update failed")
		}
		return nil, err
	}

	if u.FeaturedImage != nil && existing.FeaturedImage != nil && *existing.FeaturedImage != *u.FeaturedImage {
		s.removeImage(ctx, *existing.FeaturedImage, "replaced")
	}
	return updated, nil
}

// resolveUpdate turns a patch into column changes against the current row
func (s *NewsService) resolveUpdate(ctx context.Context, existing *model.Article, patch model.NewsPatch) (model.ArticleUpdate, error) {
	u := model.ArticleUpdate{
		Category:   patch.Category,
		Tags:       patch.Tags,
		Status:     patch.Status,
		IsFeatured: patch.IsFeatured,
	}

	if patch.Title != nil && *patch.Title != existing.Title {
		slug, err := s.uniqueSlug(ctx, *patch.Title, existing.ID)
		if err != nil {
			return u, err
		}
		u.Title = patch.Title
		u.Slug = &slug
	}

	body := existing.Content
	if patch.Content != nil {
		u.Content = patch.Content
		body = *patch.Content
	}
	switch {
	case patch.Excerpt != nil && *patch.Excerpt != "":
		u.Excerpt = patch.Excerpt
	case patch.Excerpt != nil || patch.Content != nil:
		excerpt := content.Excerpt(body)
		u.Excerpt = &excerpt
	}

	if patch.Status != nil && *patch.Status == model.StatusPublished {
		now := s.now()
		u.StampPublished = &now
	}
	return u, nil
}

func (s *NewsService) applyUpdate(ctx context.Context, id int64, u model.ArticleUpdate) (*model.Article, error) {
	updated, err := s.store.Update(ctx, id, u)
	if errors.Is(err, repository.ErrConflict) && u.Title != nil {
		s.logger.Warn("slug conflict on update, retrying", "id", id, "slug", *u.Slug)
		slug, perr := s.uniqueSlug(ctx, *u.Title, id)
		if perr != nil {
			return nil, perr
		}
		u.Slug = &slug
		updated, err = s.store.Update(ctx, id, u)
	}
	if errors.Is(err, repository.ErrConflict) {
		return nil, apperr.Conflict(msgSlugConflict, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update news %d: %w", id, err)
	}
	if updated == nil {
		return nil, apperr.NotFound(msgNewsNotFound)
	}
	return updated, nil
}

// Publish moves an article to published, stamping published_at on first publication
func (s *NewsService) Publish(ctx context.Context, id int64) (*model.Article, error) {
	status := model.StatusPublished
	now := s.now()
	return s.setStatus(ctx, id, model.ArticleUpdate{Status: &status, StampPublished: &now})
}

// Unpublish moves an article back to draft. published_at is kept.
func (s *NewsService) Unpublish(ctx context.Context, id int64) (*model.Article, error) {
	status := model.StatusDraft
	return s.setStatus(ctx, id, model.ArticleUpdate{Status: &status})
}

func (s *NewsService) setStatus(ctx context.Context, id int64, u model.ArticleUpdate) (*model.Article, error) {
	n, err := s.store.Update(ctx, id, u)
	if err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	if n == nil {
		return nil, apperr.NotFound(msgNewsNotFound)
	}
	s.logger.Info("news status changed", "id", id, "status", n.Status)
	return n, nil
}

func (s *NewsService) ToggleFeatured(ctx context.Context, id int64) (*model.Article, error) {
	n, err := s.store.ToggleFeatured(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle featured: %w", err)
	}
	if n == nil {
		return nil, apperr.NotFound(msgNewsNotFound)
	}
	return n, nil
}

// Delete removes the article, then its image. A failed file removal is logged
// and does not undo the row deletion.
func (s *NewsService) Delete(ctx context.Context, id int64) (bool, error) {
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to get news: %w", err)
	}
	if existing == nil {
		return false, apperr.NotFound(msgNewsNotFound)
	}

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete news: %w", err)
	}
	if !deleted {
		return false, apperr.NotFound(msgNewsNotFound)
	}

	if existing.FeaturedImage != nil {
		s.removeImage(ctx, *existing.FeaturedImage, "deleted")
	}
	s.logger.Info("news deleted", "id", id)
	return true, nil
}

// Featured returns up to limit published featured articles
func (s *NewsService) Featured(ctx context.Context, limit int) ([]model.Article, error) {
	_, limit = clampPage(1, limit, defaultFeatured, maxFeatured)
	items, err := s.store.Featured(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get featured news: %w", err)
	}
	return items, nil
}

func (s *NewsService) Categories(ctx context.Context) ([]model.Category, error) {
	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	return categories, nil
}

func (s *NewsService) Statistics(ctx context.Context) (*model.NewsStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get news stats: %w", err)
	}
	return stats, nil
}

// UploadImage validates and commits a standalone image and returns its public path
func (s *NewsService) UploadImage(ctx context.Context, upload *storage.Upload) (string, error) {
	if upload == nil {
		return "", apperr.Validation("no image uploaded", map[string]string{"image": "image is required"})
	}
	return s.commitImage(ctx, upload)
}

// uniqueSlug derives a slug from title and appends -1, -2, ... until it is free.
// excludeID lets an article keep its own slug.
func (s *NewsService) uniqueSlug(ctx context.Context, title string, excludeID int64) (string, error) {
	base := content.Slugify(title)
	if base == "" {
		base = fallbackSlugBase
	}
	candidate := base
	for i := 1; i <= maxSlugProbes; i++ {
		exists, err := s.store.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", apperr.Conflict(msgSlugConflict, fmt.Errorf("no free slug for %q", base))
}

func (s *NewsService) commitImage(ctx context.Context, upload *storage.Upload) (string, error) {
	if err := s.images.Validate(upload); err != nil {
		if errors.Is(err, storage.ErrInvalidImage) {
			msg := strings.TrimPrefix(err.Error(), storage.ErrInvalidImage.Error()+": ")
			return "", apperr.Validation(msg, map[string]string{"image": msg})
		}
		return "", apperr.Storage(msgImageStoreFail, err)
	}
	path, err := s.images.Commit(ctx, upload)
	if err != nil {
		return "", apperr.Storage(msgImageStoreFail, err)
	}
	return path, nil
}

func (s *NewsService) removeImage(ctx context.Context, path, reason string) {
	if err := s.images.Remove(ctx, path); err != nil {
		s.logger.Error("failed to remove image", "path", path, "reason", reason, "error", err)
	}
}

func normalizeInput(in *model.NewsInput) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Category = strings.TrimSpace(in.Category)
	in.Excerpt = trimPtr(in.Excerpt)
	in.Tags = normalizeTags(in.Tags)
}

func normalizePatch(p *model.NewsPatch) {
	p.Title = trimPtr(p.Title)
	p.Content = trimPtr(p.Content)
	p.Category = trimPtr(p.Category)
	p.Excerpt = trimPtr(p.Excerpt)
	if p.Tags != nil {
		tags := normalizeTags(*p.Tags)
		p.Tags = &tags
	}
}

// normalizeTags trims tags and drops empty ones, keeping order
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
