package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sekolah/school-api/internal/apperr"
	"github.com/sekolah/school-api/internal/model"
	"github.com/sekolah/school-api/internal/storage"
)

const (
	imageField       = "image"
	multipartMemory  = 8 << 20
	imageCacheMaxAge = "public, max-age=31536000"
	dateLayout       = "2006-01-02"
)

// listNews godoc
// @Summary      List news
// @Description  Paginated news list. Anonymous callers only see published articles.
// @Tags         news
// @Produce      json
// @Param        category   query     string  false  "Category slug"
// @Param        search     query     string  false  "Search in title, content and excerpt"
// @Param        status     query     string  false  "draft, published or archived (admin only)"
// @Param        author     query     string  false  "Author name substring"
// @Param        featured   query     bool    false  "Featured flag"
// @Param        startDate  query     string  false  "Published on or after (YYYY-MM-DD or RFC3339)"
// @Param        endDate    query     string  false  "Published on or before (YYYY-MM-DD or RFC3339)"
// @Param        sortBy     query     string  false  "created_at, published_at, view_count or title"
// @Param        sortOrder  query     string  false  "ASC or DESC"
// @Param        page       query     int     false  "Page number (default: 1)"
// @Param        limit      query     int     false  "Items per page (default: 10)"
// @Success      200  {object}  Response
// @Failure      400  {object}  Response
// @Router       /api/news [get]
func (h *Handler) listNews(w http.ResponseWriter, r *http.Request) {
	filter, err := parseNewsFilter(r.URL.Query())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	items, page, err := h.news.List(r.Context(), filter, scopeOf(r.Context()))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if items == nil {
		items = []model.Article{}
	}
	h.respondJSON(w, http.StatusOK, Response{Success: true, Data: items, Pagination: &page})
}

func parseNewsFilter(q url.Values) (model.NewsFilter, error) {
	var filter model.NewsFilter
	fields := map[string]string{}

	if v := strings.TrimSpace(q.Get("category")); v != "" {
		filter.Category = &v
	}
	if v := strings.TrimSpace(q.Get("search")); v != "" {
		filter.Search = &v
	}
	if v := strings.TrimSpace(q.Get("author")); v != "" {
		filter.Author = &v
	}
	if v := q.Get("status"); v != "" {
		s := model.Status(v)
		if !s.Valid() {
			fields["status"] = "status must be one of: draft, published, archived"
		}
		filter.Status = &s
	}
	if v := q.Get("featured"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			fields["featured"] = "featured must be true or false"
		}
		filter.Featured = &b
	}
	if v := q.Get("startDate"); v != "" {
		t, err := parseDate(v, false)
		if err != nil {
			fields["startDate"] = "startDate must be YYYY-MM-DD or RFC3339"
		}
		filter.StartDate = &t
	}
	if v := q.Get("endDate"); v != "" {
		t, err := parseDate(v, true)
		if err != nil {
			fields["endDate"] = "endDate must be YYYY-MM-DD or RFC3339"
		}
		filter.EndDate = &t
	}
	if v := q.Get("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			fields["page"] = "page must be a number"
		}
		filter.Page = p
	}
	if v := q.Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			fields["limit"] = "limit must be a number"
		}
		filter.Limit = l
	}
	filter.SortBy = q.Get("sortBy")
	filter.SortOrder = strings.ToUpper(q.Get("sortOrder"))

	if len(fields) > 0 {
		return filter, apperr.Validation("invalid query parameters", fields)
	}
	return filter, nil
}

// parseDate accepts a calendar date or an RFC3339 timestamp. A bare date used
// as an upper bound covers the whole day.
func parseDate(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// getNews godoc
// @Summary      Get news
// @Description  Get one article by numeric ID or slug. Anonymous reads count a view.
// @Tags         news
// @Produce      json
// @Param        id   path      string  true  "Article ID or slug"
// @Success      200  {object}  Response
// @Failure      404  {object}  Response
// @Router       /api/news/{id} [get]
func (h *Handler) getNews(w http.ResponseWriter, r *http.Request) {
	// The segment is either a numeric ID or a slug.
	identifier := chi.URLParam(r, "id")
	n, err := h.news.GetByIdentifier(r.Context(), identifier, scopeOf(r.Context()))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "", n)
}

// createNews godoc
// @Summary      Create news
// @Description  Create an article from JSON or multipart form data with an optional image
// @Tags         news
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        image  formData  file  false  "Featured image (JPEG, PNG, GIF or WebP, max 5MB)"
// @Success      201  {object}  Response
// @Failure      400  {object}  Response
// @Failure      401  {object}  Response
// @Router       /api/news [post]
func (h *Handler) createNews(w http.ResponseWriter, r *http.Request) {
	var (
		in     model.NewsInput
		upload *storage.Upload
	)
	if isMultipart(r) {
		form, u, err := h.parseMultipart(r)
		defer h.images.Discard(u)
		if err != nil {
			h.respondErr(w, r, err)
			return
		}
		upload = u
		if in, err = newsInputFromForm(form); err != nil {
			h.respondErr(w, r, err)
			return
		}
	} else if err := h.decodeJSON(r, &in); err != nil {
		h.respondErr(w, r, err)
		return
	}

	n, err := h.news.Create(r.Context(), in, actorFrom(r.Context()), upload)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondOK(w, http.StatusCreated, "news created successfully", n)
}

// updateNews godoc
// @Summary      Update news
// @Description  Partially update an article. Only supplied fields change.
// @Tags         news
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      int   true   "Article ID"
// @Param        image  formData  file  false  "Replacement image"
// @Success      200  {object}  Response
// @Failure      400  {object}  Response
// @Failure      404  {object}  Response
// @Router       /api/news/{id} [put]
func (h *Handler) updateNews(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	var (
		patch  model.NewsPatch
		upload *storage.Upload
	)
	if isMultipart(r) {
		form, u, err := h.parseMultipart(r)
		defer h.images.Discard(u)
		if err != nil {
			h.respondErr(w, r, err)
			return
		}
		upload = u
		if patch, err = newsPatchFromForm(form); err != nil {
			h.respondErr(w, r, err)
			return
		}
	} else if err := h.decodeJSON(r, &patch); err != nil {
		h.respondErr(w, r, err)
		return
	}

	n, err := h.news.Update(r.Context(), id, patch, upload)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "news updated successfully", n)
}

// publishNews godoc
// @Summary      Publish news
// @Description  Set status to published. published_at is stamped the first time only.
// @Tags         news
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Article ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  Response
// @Router       /api/news/{id}/publish [patch]
func (h *Handler) publishNews(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) (interface{}, error) {
		return h.news.Publish(r.Context(), id)
	}, "news published successfully")
}

// unpublishNews godoc
// @Summary      Unpublish news
// @Description  Move the article back to draft
// @Tags         news
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Article ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  Response
// @Router       /api/news/{id}/unpublish [patch]
func (h *Handler) unpublishNews(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) (interface{}, error) {
		return h.news.Unpublish(r.Context(), id)
	}, "news unpublished successfully")
}

// toggleFeatured godoc
// @Summary      Toggle featured
// @Tags         news
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Article ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  Response
// @Router       /api/news/{id}/toggle-featured [patch]
func (h *Handler) toggleFeatured(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) (interface{}, error) {
		return h.news.ToggleFeatured(r.Context(), id)
	}, "featured status updated successfully")
}

// deleteNews godoc
// @Summary      Delete news
// @Tags         news
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  int  true  "Article ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  Response
// @Router       /api/news/{id} [delete]
func (h *Handler) deleteNews(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if _, err := h.news.Delete(r.Context(), id); err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "news deleted successfully", nil)
}

// featuredNews godoc
// @Summary      Featured news
// @Tags         news
// @Produce      json
// @Param        limit  query     int  false  "Number of articles (default: 3, max: 10)"
// @Success      200    {object}  Response
// @Router       /api/news/featured [get]
func (h *Handler) featuredNews(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.news.Featured(r.Context(), limit)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if items == nil {
		items = []model.Article{}
	}
	h.respondOK(w, http.StatusOK, "", items)
}

// listCategories godoc
// @Summary      List categories
// @Description  Categories with their published article counts
// @Tags         news
// @Produce      json
// @Success      200  {object}  Response
// @Router       /api/news/categories [get]
func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.news.Categories(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	h.respondOK(w, http.StatusOK, "", categories)
}

// newsStats godoc
// @Summary      News statistics
// @Tags         news
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Response
// @Failure      401  {object}  Response
// @Router       /api/news/stats [get]
func (h *Handler) newsStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.news.Statistics(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "", stats)
}

type uploadResult struct {
	URL          string `json:"url"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
}

// uploadImage godoc
// @Summary      Upload image
// @Description  Store a standalone image, e.g. for the rich text editor
// @Tags         news
// @Accept       mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        image  formData  file  true  "Image (JPEG, PNG, GIF or WebP, max 5MB)"
// @Success      200  {object}  Response
// @Failure      400  {object}  Response
// @Router       /api/news/upload [post]
func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		h.respondError(w, http.StatusBadRequest, "no image uploaded")
		return
	}
	_, upload, err := h.parseMultipart(r)
	defer h.images.Discard(upload)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	publicPath, err := h.news.UploadImage(r.Context(), upload)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "image uploaded successfully", uploadResult{
		URL:          publicPath,
		Filename:     h.images.NameOf(publicPath),
		OriginalName: upload.OriginalName,
		Size:         upload.Size,
	})
}

// serveImage streams a stored image. Names with path components are rejected.
// serveImage godoc
// @Summary      News image
// @Tags         news
// @Produce      image/jpeg,image/png,image/gif,image/webp
// @Param        filename  path  string  true  "Stored file name"
// @Success      200
// @Failure      400  {object}  Response
// @Failure      404  {object}  Response
// @Router       /api/news/images/{filename} [get]
func (h *Handler) serveImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if !storage.SafeName(name) {
		h.respondError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	ok, err := h.images.Exists(name)
	switch {
	case errors.Is(err, storage.ErrUnsafePath):
		h.respondError(w, http.StatusBadRequest, "invalid filename")
		return
	case err != nil:
		h.respondErr(w, r, err)
		return
	case !ok:
		h.respondError(w, http.StatusNotFound, "image not found")
		return
	}

	f, info, err := h.images.Open(name)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "image not found")
		return
	}
	defer f.Close()

	if ct := mime.TypeByExtension(strings.ToLower(nameExt(name))); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", imageCacheMaxAge)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (h *Handler) withID(w http.ResponseWriter, r *http.Request, fn func(id int64) (interface{}, error), message string) {
	id, err := idParam(r)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	data, err := fn(id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, message, data)
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Validation("invalid id", map[string]string{"id": "id must be a positive integer"})
	}
	return id, nil
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// parseMultipart reads form values and stages the optional image. The caller
// must Discard the returned upload.
func (h *Handler) parseMultipart(r *http.Request) (url.Values, *storage.Upload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, apperr.Validation("request body too large", nil)
		}
		return nil, nil, apperr.Validation("invalid multipart form", nil)
	}
	form := url.Values(r.MultipartForm.Value)

	files := r.MultipartForm.File[imageField]
	if len(files) == 0 {
		return form, nil, nil
	}
	upload, err := h.images.Stage(files[0])
	if err != nil {
		return form, nil, apperr.Storage("failed to store image", err)
	}
	return form, upload, nil
}

func newsInputFromForm(form url.Values) (model.NewsInput, error) {
	in := model.NewsInput{
		Title:    form.Get("title"),
		Content:  form.Get("content"),
		Category: form.Get("category"),
		Status:   model.Status(form.Get("status")),
	}
	if _, ok := form["excerpt"]; ok {
		v := form.Get("excerpt")
		in.Excerpt = &v
	}
	tags, err := parseTags(form["tags"])
	if err != nil {
		return in, err
	}
	in.Tags = tags
	if v := form.Get("is_featured"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return in, featuredError()
		}
		in.IsFeatured = b
	}
	return in, nil
}

func newsPatchFromForm(form url.Values) (model.NewsPatch, error) {
	var patch model.NewsPatch
	str := func(key string) *string {
		if _, ok := form[key]; !ok {
			return nil
		}
		v := form.Get(key)
		return &v
	}
	patch.Title = str("title")
	patch.Content = str("content")
	patch.Excerpt = str("excerpt")
	patch.Category = str("category")
	if v := str("status"); v != nil {
		s := model.Status(*v)
		patch.Status = &s
	}
	if values, ok := form["tags"]; ok {
		tags, err := parseTags(values)
		if err != nil {
			return patch, err
		}
		patch.Tags = &tags
	}
	if v := str("is_featured"); v != nil {
		b, err := strconv.ParseBool(*v)
		if err != nil {
			return patch, featuredError()
		}
		patch.IsFeatured = &b
	}
	return patch, nil
}

// parseTags accepts a JSON array, a comma separated list or repeated form values
func parseTags(values []string) ([]string, error) {
	var tags []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") {
			var list []string
			if err := json.Unmarshal([]byte(v), &list); err != nil {
				return nil, apperr.Validation("validation failed", map[string]string{"tags": "tags must be a JSON array of strings"})
			}
			tags = append(tags, list...)
			continue
		}
		tags = append(tags, strings.Split(v, ",")...)
	}
	return tags, nil
}

func featuredError() error {
	return apperr.Validation("validation failed", map[string]string{"is_featured": "is_featured must be true or false"})
}

func nameExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}
