package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/sekolah/school-api/internal/config"
	"github.com/sekolah/school-api/internal/service"
	"github.com/sekolah/school-api/internal/storage"
)

// Images under /api/news/images are embedded by the frontend on another
// origin, so resources are shared cross-origin.
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "SAMEORIGIN"},
	{"Cross-Origin-Resource-Policy", "cross-origin"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Origin-Agent-Cluster", "?1"},
	{"Referrer-Policy", "no-referrer"},
	{"Strict-Transport-Security", "max-age=15552000; includeSubDomains"},
	{"X-DNS-Prefetch-Control", "off"},
	{"X-Download-Options", "noopen"},
	{"X-Permitted-Cross-Domain-Policies", "none"},
	{"X-XSS-Protection", "0"},
}

// The swagger UI under /docs needs inline scripts, so the policy only covers /api.
const apiContentSecurityPolicy = "default-src 'self'; frame-ancestors 'self'; object-src 'none'; base-uri 'self'"

// HealthChecker reports whether the database is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Services groups the services the handler dispatches to
type Services struct {
	News     *service.NewsService
	Auth     *service.AuthService
	Students *service.StudentService
	School   *service.SchoolService
}

// Handler handles HTTP requests
type Handler struct {
	news     *service.NewsService
	auth     *service.AuthService
	students *service.StudentService
	school   *service.SchoolService
	images   *storage.ImageManager
	db       HealthChecker
	cfg      config.ServerConfig
	logger   *slog.Logger
	now      func() time.Time
}

func New(svc Services, images *storage.ImageManager, db HealthChecker, cfg config.ServerConfig, logger *slog.Logger) *Handler {
	return &Handler{
		news:     svc.News,
		auth:     svc.Auth,
		students: svc.Students,
		school:   svc.School,
		images:   images,
		db:       db,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Router returns the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(h.corsOptions()))
	for _, hdr := range securityHeaders {
		r.Use(middleware.SetHeader(hdr[0], hdr[1]))
	}
	if h.cfg.RateLimit > 0 {
		r.Use(h.rateLimit(h.cfg.RateLimit, "too many requests from this IP, please try again later"))
	}
	r.Use(h.limitBody)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.respondError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Swagger docs
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/index.html", http.StatusMovedPermanently)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Security-Policy", apiContentSecurityPolicy))
		r.Get("/health", h.healthCheck)

		r.Route("/auth", func(r chi.Router) {
			if h.cfg.AuthRateLimit > 0 {
				r.Use(h.rateLimit(h.cfg.AuthRateLimit, "too many login attempts, please try again in 15 minutes"))
			}
			r.Post("/login", h.login)
			r.With(h.requireAuth).Get("/verify", h.verifyToken)
			r.With(h.requireAuth).Post("/change-password", h.changePassword)
		})

		r.Route("/news", func(r chi.Router) {
			r.With(h.optionalAuth).Get("/", h.listNews)
			r.Get("/categories", h.listCategories)
			r.Get("/featured", h.featuredNews)
			r.Get("/images/{filename}", h.serveImage)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAuth)
				r.Get("/stats", h.newsStats)
				r.Post("/", h.createNews)
				r.Post("/upload", h.uploadImage)
				r.Put("/{id}", h.updateNews)
				r.Patch("/{id}/publish", h.publishNews)
				r.Patch("/{id}/unpublish", h.unpublishNews)
				r.Patch("/{id}/toggle-featured", h.toggleFeatured)
				r.Delete("/{id}", h.deleteNews)
			})

			r.With(h.optionalAuth).Get("/{id}", h.getNews)
		})

		r.Route("/students", func(r chi.Router) {
			r.Get("/check", h.checkGraduation)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAuth)
				r.Get("/", h.listStudents)
				r.Get("/stats", h.studentStats)
				r.Post("/", h.createStudent)
				r.Put("/{id}", h.updateStudent)
				r.Delete("/{id}", h.deleteStudent)
			})
		})

		r.Route("/school", func(r chi.Router) {
			r.Get("/info", h.getSchoolInfo)
			r.With(h.requireAuth).Put("/info", h.updateSchoolInfo)
		})
	})

	return r
}

func (h *Handler) corsOptions() cors.Options {
	origins := h.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = config.DefaultCORSOrigins("")
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func (h *Handler) rateLimit(limit int, message string) func(http.Handler) http.Handler {
	return httprate.Limit(limit, h.cfg.RateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			h.respondError(w, http.StatusTooManyRequests, message)
		}),
	)
}

// healthCheck godoc
// @Summary      Health check
// @Description  Check service health status
// @Tags         health
// @Produce      json
// @Success      200  {object}  Response
// @Failure      503  {object}  Response
// @Router       /api/health [get]
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.db.HealthCheck(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "service unhealthy")
		return
	}
	h.respondOK(w, http.StatusOK, "server is running", map[string]string{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
