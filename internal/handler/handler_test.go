package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/sekolah/school-api/docs"
	"github.com/sekolah/school-api/internal/auth"
	"github.com/sekolah/school-api/internal/config"
	"github.com/sekolah/school-api/internal/model"
	"github.com/sekolah/school-api/internal/service"
	"github.com/sekolah/school-api/internal/service/servicetest"
	"github.com/sekolah/school-api/internal/storage"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

const longContent = "Ujian akhir semester ganjil akan dilaksanakan mulai tanggal 2 Desember untuk seluruh kelas."

type fakeDB struct{ err error }

func (f fakeDB) HealthCheck(ctx context.Context) error { return f.err }

type testEnv struct {
	router   http.Handler
	news     *servicetest.NewsStore
	imageDir string
	token    string
}

type envelope struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Errors     map[string]string `json:"errors"`
}

func newTestEnv(t *testing.T, db fakeDB) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dir := t.TempDir()
	imageDir := filepath.Join(dir, "news")
	store, err := storage.NewLocalStore(imageDir, logger)
	require.NoError(t, err)
	images, err := storage.NewImageManager(store, filepath.Join(dir, "temp"), 5<<20, "/api/news/images/")
	require.NoError(t, err)

	newsStore := servicetest.NewNewsStore()
	newsStore.CategoryList = []model.Category{{ID: 1, Name: "Akademik", Slug: "akademik", Color: "#3b82f6"}}

	authSvc := service.NewAuthService(servicetest.NewUserStore(), auth.NewTokenManager("test-secret", time.Hour), logger)
	require.NoError(t, authSvc.EnsureAdmin(context.Background(), "admin", "admin@school.local", "admin123"))

	h := New(Services{
		News:     service.NewNewsService(newsStore, images, logger),
		Auth:     authSvc,
		Students: service.NewStudentService(servicetest.NewStudentStore(), logger),
		School:   service.NewSchoolService(&servicetest.SchoolStore{}, logger),
	}, images, db, config.ServerConfig{MaxBodyBytes: 10 << 20}, logger)

	env := &testEnv{router: h.Router(), news: newsStore, imageDir: imageDir}
	env.token = env.login(t)
	return env
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"admin123"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp model.LoginResponse
	decodeData(t, w, &resp)
	return resp.Token
}

func (e *testEnv) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doForm(t *testing.T, method, target string, fields map[string]string, filename string, image []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
		hdr.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	env := decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, fakeDB{})
	w := env.do(t, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeEnvelope(t, w).Success)

	down := newTestEnv(t, fakeDB{err: errors.New("connection refused")})
	w = down.do(t, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, decodeEnvelope(t, w).Success)
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, fakeDB{})

	w := env.doForm(t, http.MethodPost, "/api/news/upload", nil, "header.png", pngBytes)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res uploadResult
	decodeData(t, w, &res)

	for _, target := range []string{"/api/health", res.URL, "/api/nope"} {
		w := env.do(t, http.MethodGet, target, "", "")
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"), target)
		assert.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"), target)
		assert.Equal(t, "cross-origin", w.Header().Get("Cross-Origin-Resource-Policy"), target)
		assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"), target)
		assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=", target)
	}

	w = env.do(t, http.MethodGet, "/api/health", "", "")
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'self'")

	w = env.do(t, http.MethodGet, "/docs", "", "")
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Empty(t, w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestCORSAllowsConfiguredOrigins(t *testing.T) {
	env := newTestEnv(t, fakeDB{})

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/news", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		return w
	}

	w := preflight("http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = preflight("https://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSwaggerDocCoversRoutes(t *testing.T) {
	env := newTestEnv(t, fakeDB{})

	w := env.do(t, http.MethodGet, "/docs/doc.json", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))

	routes, ok := env.router.(chi.Routes)
	require.True(t, ok)
	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if strings.HasPrefix(route, "/docs") {
			return nil
		}
		if len(route) > 1 {
			route = strings.TrimSuffix(route, "/")
		}
		_, documented := doc.Paths[route][strings.ToLower(method)]
		assert.True(t, documented, "%s %s is not documented", method, route)
		return nil
	})
	require.NoError(t, err)
}

func TestNotFoundIsJSON(t *testing.T) {
	env := newTestEnv(t, fakeDB{})
	w := env.do(t, http.MethodGet, "/api/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "endpoint not found", decodeEnvelope(t, w).Message)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, fakeDB{})

	w := env.do(t, http.MethodGet, "/api/news/stats", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/news/stats", "", "garbage")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/auth/verify", "", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		User model.UserInfo `json:"user"`
	}
	decodeData(t, w, &data)
	assert.Equal(t, "admin", data.User.Username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t, fakeDB{})

	w := env.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/login", `{not json`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNewsLifecycle(t *testing.T) {
	env := newTestEnv(t, fakeDB{})

	// Create a published article with an image.
	w := env.doForm(t, http.MethodPost, "/api/news", map[string]string{
		"title":    "Ujian Akhir Semester",
		"content":  longContent,
		"category": "akademik",
		"status":   "published",
		"tags":     "ujian, semester",
	}, "jadwal.png", pngBytes)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created model.Article
	decodeData(t, w, &created)
	assert.Equal(t, "ujian-akhir-semester", created.Slug)
	assert.Equal(t, model.StatusPublished, created.Status)
	assert.NotNil(t, created.PublishedAt)
	assert.Equal(t, []string{"ujian", "semester"}, created.Tags)
	require.NotNil(t, created.AuthorName)
	assert.Equal(t, "admin", *created.AuthorName)
	require.NotNil(t, created.FeaturedImage)
	require.True(t, strings.HasPrefix(*created.FeaturedImage, "/api/news/images/"))
	oldFile := filepath.Join(env.imageDir, filepath.Base(*created.FeaturedImage))
	assert.FileExists(t, oldFile)

	// The image is served with a long cache lifetime.
	w = env.do(t, http.MethodGet, *created.FeaturedImage, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, imageCacheMaxAge, w.Header().Get("Cache-Control"))
	assert.Equal(t, pngBytes, w.Body.Bytes())

	// Anonymous reads count views, admin reads do not.
	for i := 1; i <= 2; i++ {
		w = env.do(t, http.MethodGet, "/api/news/ujian-akhir-semester", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		var got model.Article
		decodeData(t, w, &got)
		assert.Equal(t, i, got.ViewCount)
	}
	w = env.do(t, http.MethodGet, "/api/news/ujian-akhir-semester", "", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, env.news.Get(created.ID).ViewCount)

	// Same title again gets a suffixed slug.
	w = env.do(t, http.MethodPost, "/api/news",
		`{"title":"Ujian Akhir Semester","content":"`+longContent+`","category":"akademik"}`, env.token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var second model.Article
	decodeData(t, w, &second)
	assert.Equal(t, "ujian-akhir-semester-1", second.Slug)
	assert.Equal(t, model.StatusDraft, second.Status)

	// Replacing the image removes the old file only after the update.
	w = env.doForm(t, http.MethodPut, "/api/news/"+itoa(created.ID), map[string]string{
		"category": "pengumuman",
	}, "baru.png", pngBytes)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated model.Article
	decodeData(t, w, &updated)
	assert.Equal(t, "pengumuman", updated.Category)
	assert.Equal(t, created.Slug, updated.Slug)
	require.NotNil(t, updated.FeaturedImage)
	assert.NotEqual(t, *created.FeaturedImage, *updated.FeaturedImage)
	assert.NoFileExists(t, oldFile)
	newFile := filepath.Join(env.imageDir, filepath.Base(*updated.FeaturedImage))
	assert.FileExists(t, newFile)

	// Delete removes the row and the file.
	w = env.do(t, http.MethodDelete, "/api/news/"+itoa(created.ID), "", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NoFileExists(t, newFile)

	w = env.do(t, http.MethodGet, "/api/news/ujian-akhir-semester", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodDelete, "/api/news/"+itoa(created.ID), "", env.token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateNewsRejectsBadImage(t *testing.T) {
	env := newTestEnv(t, fakeDB{})

	w := env.doForm(t, http.MethodPost, "/api/news", map[string]string{
		"title":    "Berita Dengan Gambar",
		"content":  longContent,
		"category": "akademik",
	}, "evil.png", []byte("<html><script>alert(1)</script></html>"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeEnvelope(t, w)
	assert.Contains(t, resp.Errors, "image")
	assert.Equal(t, 0, env.news.Len())

	entries, err := os.ReadDir(env.imageDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateNewsValidation(t *testing.T) {
	env := newTestEnv(t, fakeDB{})

	w := env.do(t, http.MethodPost, "/api/news", `{"title":"Hi","content":"short"}`, env.token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeEnvelope(t, w)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Errors, "title")
	assert.Contains(t, resp.Errors, "content")
	assert.Contains(t, resp.Errors, "category")
}

func TestListNewsScopes(t *testing.T) {
	env := newTestEnv(t, fakeDB{})
	for i, status := range []model.Status{model.StatusPublished, model.StatusPublished, model.StatusDraft} {
		env.news.Seed(model.Article{
			Title:    "Berita " + itoa(int64(i)),
			Slug:     "berita-" + itoa(int64(i)),
			Content:  longContent,
			Category: "akademik",
			Status:   status,
		})
	}

	w := env.do(t, http.MethodGet, "/api/news?status=draft&limit=1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Pagination)
	assert.Equal(t, model.Pagination{CurrentPage: 1, TotalPages: 2, TotalCount: 2, Limit: 1}, *resp.Pagination)

	w = env.do(t, http.MethodGet, "/api/news?status=draft", "", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decodeEnvelope(t, w).Pagination.TotalCount)

	w = env.do(t, http.MethodGet, "/api/news?category=olahraga", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", string(decodeEnvelope(t, w).Data))

	w = env.do(t, http.MethodGet, "/api/news?page=abc&startDate=yesterday", "", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp = decodeEnvelope(t, w)
	assert.Contains(t, resp.Errors, "page")
	assert.Contains(t, resp.Errors, "startDate")
}

func TestPublishFlow(t *testing.T) {
	env := newTestEnv(t, fakeDB{})
	n := env.news.Seed(model.Article{Title: "Draft Article", Slug: "draft-article", Content: longContent, Category: "akademik"})

	w := env.do(t, http.MethodGet, "/api/news/draft-article", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPatch, "/api/news/"+itoa(n.ID)+"/publish", "", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	var published model.Article
	decodeData(t, w, &published)
	assert.Equal(t, model.StatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)

	w = env.do(t, http.MethodGet, "/api/news/draft-article", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPatch, "/api/news/"+itoa(n.ID)+"/toggle-featured", "", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/api/news/featured", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var featured []model.Article
	decodeData(t, w, &featured)
	require.Len(t, featured, 1)
	assert.Equal(t, n.ID, featured[0].ID)

	w = env.do(t, http.MethodPatch, "/api/news/"+itoa(n.ID)+"/unpublish", "", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	var draft model.Article
	decodeData(t, w, &draft)
	assert.Equal(t, model.StatusDraft, draft.Status)

	w = env.do(t, http.MethodPatch, "/api/news/abc/publish", "", env.token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPatch, "/api/news/9999/publish", "", env.token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServeImageRejectsTraversal(t *testing.T) {
	env := newTestEnv(t, fakeDB{})

	w := env.do(t, http.MethodGet, "/api/news/images/..%5Cconfig.go", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/news/images/missing.png", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Only regular files are served.
	require.NoError(t, os.Mkdir(filepath.Join(env.imageDir, "folder.png"), 0o755))
	w = env.do(t, http.MethodGet, "/api/news/images/folder.png", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadImage(t *testing.T) {
	env := newTestEnv(t, fakeDB{})

	w := env.doForm(t, http.MethodPost, "/api/news/upload", nil, "editor.png", pngBytes)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res uploadResult
	decodeData(t, w, &res)
	assert.Equal(t, "editor.png", res.OriginalName)
	assert.Equal(t, int64(len(pngBytes)), res.Size)
	assert.Equal(t, "/api/news/images/"+res.Filename, res.URL)
	assert.FileExists(t, filepath.Join(env.imageDir, res.Filename))

	w = env.doForm(t, http.MethodPost, "/api/news/upload", map[string]string{"note": "x"}, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudentsAndSchool(t *testing.T) {
	env := newTestEnv(t, fakeDB{})

	w := env.do(t, http.MethodPost, "/api/students",
		`{"name":"Budi Santoso","nisn":"0051234567","class":"XII IPA 1","graduated":true,"average_score":88.5}`, env.token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/students",
		`{"name":"Andi","nisn":"0051234567","graduated":false}`, env.token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/students/check?search=budi", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var found []model.Student
	decodeData(t, w, &found)
	require.Len(t, found, 1)
	assert.True(t, found[0].Graduated)

	w = env.do(t, http.MethodGet, "/api/students/check", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodGet, "/api/students/check?search=zzz", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/students/stats", "", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	var stats model.GraduationStats
	decodeData(t, w, &stats)
	assert.Equal(t, 100, stats.GraduationRate)

	w = env.do(t, http.MethodGet, "/api/school/info", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodPut, "/api/school/info", `{"school_name":"SMA Negeri 1"}`, env.token)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/api/school/info", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info model.SchoolInfo
	decodeData(t, w, &info)
	assert.Equal(t, "SMA Negeri 1", info.SchoolName)
}

func TestParseTags(t *testing.T) {
	tags, err := parseTags([]string{`["a","b"]`, "c, d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", " d"}, tags)

	_, err = parseTags([]string{`["a",`})
	assert.Error(t, err)
}

func TestParseDateEndOfDay(t *testing.T) {
	start, err := parseDate("2024-08-17", false)
	require.NoError(t, err)
	end, err := parseDate("2024-08-17", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 8, 17, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 8, 17, 23, 59, 59, 999999999, time.UTC), end)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
