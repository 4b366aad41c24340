// Package servicetest provides in-memory stores for exercising services and handlers.
package servicetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sekolah/school-api/internal/model"
	"github.com/sekolah/school-api/internal/repository"
	"github.com/sekolah/school-api/internal/storage"
)

// NewsStore mimics repository.NewsRepository, including the unique slug constraint
type NewsStore struct {
	mu       sync.Mutex
	articles map[int64]*model.Article
	nextID   int64
	clock    time.Time

	CategoryList []model.Category

	// InsertConflicts makes the next n inserts fail with ErrConflict before touching data.
	InsertConflicts int
	UpdateConflicts int
	InsertErr       error
	UpdateErr       error
	DeleteErr       error

	// SlugProbes records every slug checked by SlugExists, in order.
	SlugProbes []string
}

func NewNewsStore() *NewsStore {
	return &NewsStore{
		articles: make(map[int64]*model.Article),
		clock:    time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC),
	}
}

// Seed stores n as-is, assigning an ID and timestamps when missing
func (s *NewsStore) Seed(n model.Article) *model.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(n)
}

// Get returns a copy of the stored article or nil
func (s *NewsStore) Get(id int64) *model.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.articles[id]; ok {
		c := clone(*n)
		return &c
	}
	return nil
}

func (s *NewsStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.articles)
}

func (s *NewsStore) put(n model.Article) *model.Article {
	if n.ID == 0 {
		s.nextID++
		n.ID = s.nextID
	} else if n.ID > s.nextID {
		s.nextID = n.ID
	}
	s.clock = s.clock.Add(time.Minute)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.clock
	}
	n.UpdatedAt = s.clock
	if n.Tags == nil {
		n.Tags = []string{}
	}
	if n.Status == "" {
		n.Status = model.StatusDraft
	}
	stored := clone(n)
	s.articles[n.ID] = &stored
	out := clone(n)
	return &out
}

func (s *NewsStore) List(ctx context.Context, f model.NewsFilter) ([]model.Article, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []model.Article
	for _, n := range s.articles {
		if matches(n, f) {
			matched = append(matched, clone(*n))
		}
	}
	sortArticles(matched, f.SortBy, f.SortOrder)

	total := len(matched)
	start := (f.Page - 1) * f.Limit
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func matches(n *model.Article, f model.NewsFilter) bool {
	if f.Category != nil && n.Category != *f.Category {
		return false
	}
	if f.Status != nil && n.Status != *f.Status {
		return false
	}
	if f.Author != nil && (n.AuthorName == nil || !containsFold(*n.AuthorName, *f.Author)) {
		return false
	}
	if f.Search != nil {
		excerpt := ""
		if n.Excerpt != nil {
			excerpt = *n.Excerpt
		}
		if !containsFold(n.Title, *f.Search) && !containsFold(n.Content, *f.Search) && !containsFold(excerpt, *f.Search) {
			return false
		}
	}
	if f.StartDate != nil && (n.PublishedAt == nil || n.PublishedAt.Before(*f.StartDate)) {
		return false
	}
	if f.EndDate != nil && (n.PublishedAt == nil || n.PublishedAt.After(*f.EndDate)) {
		return false
	}
	if f.Featured != nil && n.IsFeatured != *f.Featured {
		return false
	}
	return true
}

// sortArticles mirrors the repository's ORDER BY: unknown keys sort newest
// first, published_at puts NULLs last and ties break on ID.
func sortArticles(items []model.Article, sortBy, order string) {
	asc := order == "ASC" || order == "asc"
	var cmp func(a, b model.Article) int
	switch sortBy {
	case "title":
		cmp = func(a, b model.Article) int { return strings.Compare(a.Title, b.Title) }
	case "view_count", "viewCount", "views":
		cmp = func(a, b model.Article) int { return a.ViewCount - b.ViewCount }
	case "published_at", "publishedAt":
		cmp = func(a, b model.Article) int { return comparePublished(a, b, asc) }
	case "created_at", "createdAt":
		cmp = func(a, b model.Article) int { return a.CreatedAt.Compare(b.CreatedAt) }
	default:
		asc = false
		cmp = func(a, b model.Article) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		c := cmp(a, b)
		if c == 0 {
			c = int(a.ID - b.ID)
		}
		if asc {
			return c < 0
		}
		return c > 0
	})
}

// comparePublished orders NULL published_at after every timestamp in either direction
func comparePublished(a, b model.Article, asc bool) int {
	last := 1
	if !asc {
		last = -1
	}
	switch {
	case a.PublishedAt == nil && b.PublishedAt == nil:
		return 0
	case a.PublishedAt == nil:
		return last
	case b.PublishedAt == nil:
		return -last
	}
	return a.PublishedAt.Compare(*b.PublishedAt)
}

func (s *NewsStore) GetByID(ctx context.Context, id int64) (*model.Article, error) {
	return s.Get(id), nil
}

func (s *NewsStore) GetBySlug(ctx context.Context, slug string) (*model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.articles {
		if n.Slug == slug {
			c := clone(*n)
			return &c, nil
		}
	}
	return nil, nil
}

func (s *NewsStore) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SlugProbes = append(s.SlugProbes, slug)
	return s.slugTaken(slug, excludeID), nil
}

func (s *NewsStore) slugTaken(slug string, excludeID int64) bool {
	for id, n := range s.articles {
		if n.Slug == slug && id != excludeID {
			return true
		}
	}
	return false
}

func (s *NewsStore) Insert(ctx context.Context, n *model.Article) (*model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return nil, s.InsertErr
	}
	if s.InsertConflicts > 0 {
		s.InsertConflicts--
		return nil, fmt.Errorf("%w: news_slug_key", repository.ErrConflict)
	}
	if s.slugTaken(n.Slug, 0) {
		return nil, fmt.Errorf("%w: news_slug_key", repository.ErrConflict)
	}
	c := clone(*n)
	c.ID = 0
	c.ViewCount = 0
	return s.put(c), nil
}

func (s *NewsStore) Update(ctx context.Context, id int64, u model.ArticleUpdate) (*model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateErr != nil {
		return nil, s.UpdateErr
	}
	if s.UpdateConflicts > 0 {
		s.UpdateConflicts--
		return nil, fmt.Errorf("%w: news_slug_key", repository.ErrConflict)
	}
	existing, ok := s.articles[id]
	if !ok {
		return nil, nil
	}
	if u.Slug != nil && s.slugTaken(*u.Slug, id) {
		return nil, fmt.Errorf("%w: news_slug_key", repository.ErrConflict)
	}

	n := clone(*existing)
	if u.Title != nil {
		n.Title = *u.Title
	}
	if u.Slug != nil {
		n.Slug = *u.Slug
	}
	if u.Content != nil {
		n.Content = *u.Content
	}
	if u.Excerpt != nil {
		n.Excerpt = strPtr(*u.Excerpt)
	}
	if u.FeaturedImage != nil {
		n.FeaturedImage = strPtr(*u.FeaturedImage)
	}
	if u.Category != nil {
		n.Category = *u.Category
	}
	if u.Tags != nil {
		n.Tags = append([]string{}, (*u.Tags)...)
	}
	if u.Status != nil {
		n.Status = *u.Status
	}
	if u.IsFeatured != nil {
		n.IsFeatured = *u.IsFeatured
	}
	if u.StampPublished != nil && n.PublishedAt == nil {
		t := *u.StampPublished
		n.PublishedAt = &t
	}
	return s.put(n), nil
}

func (s *NewsStore) ToggleFeatured(ctx context.Context, id int64) (*model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.articles[id]
	if !ok {
		return nil, nil
	}
	n := clone(*existing)
	n.IsFeatured = !n.IsFeatured
	return s.put(n), nil
}

func (s *NewsStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return false, s.DeleteErr
	}
	if _, ok := s.articles[id]; !ok {
		return false, nil
	}
	delete(s.articles, id)
	return true, nil
}

func (s *NewsStore) IncrementViews(ctx context.Context, id int64) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.articles[id]
	if !ok {
		return 0, false, nil
	}
	n.ViewCount++
	return n.ViewCount, true, nil
}

func (s *NewsStore) Featured(ctx context.Context, limit int) ([]model.Article, error) {
	published := model.StatusPublished
	featured := true
	items, _, err := s.List(ctx, model.NewsFilter{Status: &published, Featured: &featured, Page: 1, Limit: limit})
	return items, err
}

func (s *NewsStore) Categories(ctx context.Context) ([]model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Category, 0, len(s.CategoryList))
	for _, c := range s.CategoryList {
		c.NewsCount = 0
		for _, n := range s.articles {
			if n.Category == c.Slug && n.Status == model.StatusPublished {
				c.NewsCount++
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *NewsStore) Stats(ctx context.Context) (*model.NewsStats, error) {
	s.mu.Lock()
	var stats model.NewsStats
	for _, n := range s.articles {
		stats.TotalNews++
		switch n.Status {
		case model.StatusPublished:
			stats.Published++
		case model.StatusDraft:
			stats.Draft++
		case model.StatusArchived:
			stats.Archived++
		}
		if n.IsFeatured {
			stats.Featured++
		}
		stats.TotalViews += n.ViewCount
	}
	s.mu.Unlock()

	published := model.StatusPublished
	var err error
	stats.MostViewed, _, err = s.List(context.Background(), model.NewsFilter{Status: &published, Page: 1, Limit: 5, SortBy: "view_count"})
	if err != nil {
		return nil, err
	}
	stats.RecentNews, _, err = s.List(context.Background(), model.NewsFilter{Status: &published, Page: 1, Limit: 5})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ImageStore records image commits and removals without touching disk
type ImageStore struct {
	mu        sync.Mutex
	seq       int
	Committed []string
	Removed   []string

	ValidateErr error
	CommitErr   error
	RemoveErr   error
}

func (s *ImageStore) Validate(u *storage.Upload) error {
	if s.ValidateErr != nil {
		return s.ValidateErr
	}
	if u.Size > 5<<20 {
		return fmt.Errorf("%w: file size too large", storage.ErrInvalidImage)
	}
	return nil
}

func (s *ImageStore) Commit(ctx context.Context, u *storage.Upload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CommitErr != nil {
		return "", s.CommitErr
	}
	s.seq++
	path := fmt.Sprintf("/api/news/images/img-%d%s", s.seq, extOf(u.OriginalName))
	s.Committed = append(s.Committed, path)
	return path, nil
}

func (s *ImageStore) Remove(ctx context.Context, publicPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Removed = append(s.Removed, publicPath)
	return s.RemoveErr
}

// Live returns committed paths that have not been removed
func (s *ImageStore) Live() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := make(map[string]bool, len(s.Removed))
	for _, p := range s.Removed {
		removed[p] = true
	}
	var live []string
	for _, p := range s.Committed {
		if !removed[p] {
			live = append(live, p)
		}
	}
	return live
}

// ErrBoom is a generic failure for injecting errors
var ErrBoom = errors.New("boom")

func extOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return strings.ToLower(name[i:])
	}
	return ""
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func clone(n model.Article) model.Article {
	if n.Tags != nil {
		n.Tags = append([]string{}, n.Tags...)
	}
	return n
}

func strPtr(s string) *string {
	return &s
}
