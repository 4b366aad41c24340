package model

import "time"

// Status is the editorial state of an article
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Article is a news record
type Article struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Content       string     `json:"content"`
	Excerpt       *string    `json:"excerpt"`
	FeaturedImage *string    `json:"featured_image"`
	AuthorID      *int64     `json:"author_id"`
	AuthorName    *string    `json:"author_name"`
	Category      string     `json:"category"`
	CategoryName  *string    `json:"category_name,omitempty"`
	CategoryColor *string    `json:"category_color,omitempty"`
	Tags          []string   `json:"tags"`
	Status        Status     `json:"status"`
	IsFeatured    bool       `json:"is_featured"`
	ViewCount     int        `json:"view_count"`
	PublishedAt   *time.Time `json:"published_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Category is a news category with the number of published articles in it
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	Color       string    `json:"color"`
	NewsCount   int       `json:"news_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Sort keys accepted by the listing
const (
	SortCreatedAt   = "created_at"
	SortPublishedAt = "published_at"
	SortViewCount   = "view_count"
	SortTitle       = "title"
)

// NewsFilter represents query parameters for news listing
type NewsFilter struct {
	Category  *string
	Status    *Status
	Author    *string
	Search    *string
	StartDate *time.Time
	EndDate   *time.Time
	Featured  *bool
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// Scope selects the public or admin variant of read operations
type Scope int

const (
	ScopePublic Scope = iota
	ScopeAdmin
)

// Pagination represents pagination info in response
type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalCount  int `json:"totalCount"`
	Limit       int `json:"limit"`
}

// NewsStats is the dashboard summary
type NewsStats struct {
	TotalNews  int       `json:"total_news"`
	Published  int       `json:"published"`
	Draft      int       `json:"draft"`
	Archived   int       `json:"archived"`
	Featured   int       `json:"featured"`
	TotalViews int       `json:"total_views"`
	MostViewed []Article `json:"most_viewed"`
	RecentNews []Article `json:"recent_news"`
}

// NewsInput is the payload for creating an article
type NewsInput struct {
	Title      string   `json:"title" validate:"required,min=5,max=255,excludesall=<>'\""`
	Content    string   `json:"content" validate:"required,min=10"`
	Excerpt    *string  `json:"excerpt" validate:"omitempty,max=500"`
	Category   string   `json:"category" validate:"required,max=100"`
	Tags       []string `json:"tags" validate:"max=10,dive,max=50"`
	Status     Status   `json:"status" validate:"omitempty,oneof=draft published archived"`
	IsFeatured bool     `json:"is_featured"`
}

// NewsPatch is a partial update. Nil fields are left untouched.
type NewsPatch struct {
	Title      *string   `json:"title" validate:"omitnil,min=5,max=255,excludesall=<>'\""`
	Content    *string   `json:"content" validate:"omitnil,min=10"`
	Excerpt    *string   `json:"excerpt" validate:"omitempty,max=500"`
	Category   *string   `json:"category" validate:"omitnil,min=1,max=100"`
	Tags       *[]string `json:"tags" validate:"omitnil,max=10,dive,max=50"`
	Status     *Status   `json:"status" validate:"omitnil,oneof=draft published archived"`
	IsFeatured *bool     `json:"is_featured"`
}

// Empty reports whether the patch carries no field at all
func (p NewsPatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Excerpt == nil && p.Category == nil &&
		p.Tags == nil && p.Status == nil && p.IsFeatured == nil
}

// Actor is the authenticated caller performing a write
type Actor struct {
	ID       int64
	Username string
}

// ArticleUpdate is the resolved set of column changes for one article. Only
// non-nil fields are written.
type ArticleUpdate struct {
	Title         *string
	Slug          *string
	Content       *string
	Excerpt       *string
	FeaturedImage *string
	Category      *string
	Tags          *[]string
	Status        *Status
	IsFeatured    *bool
	// StampPublished sets published_at to this time only when it is still NULL.
	StampPublished *time.Time
}
