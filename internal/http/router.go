// Package httpapi wires Gin to the submission and admin services. It owns
// middleware ordering, CORS and security posture, docs and metrics routes.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/review-insights-backend/docs" // swagger document

	"github.com/tbourn/review-insights-backend/internal/config"
	"github.com/tbourn/review-insights-backend/internal/domain"
	"github.com/tbourn/review-insights-backend/internal/http/handlers"
	"github.com/tbourn/review-insights-backend/internal/http/middleware"
	"github.com/tbourn/review-insights-backend/internal/repo"
	"github.com/tbourn/review-insights-backend/internal/services"
)

const (
	minBodyBytes = 1 << 20
	swaggerIndex = "/swagger/index.html"
)

// Authenticator issues and verifies admin tokens.
type Authenticator interface {
	handlers.AuthService
	middleware.TokenVerifier
}

// submissionRepoShim adapts the repo free functions to services.SubmissionRepo.
type submissionRepoShim struct{}

func (submissionRepoShim) InsertSubmission(ctx context.Context, db *gorm.DB, rating int, review string) (*domain.Submission, error) {
	return repo.InsertSubmission(ctx, db, rating, review)
}

func (submissionRepoShim) GetSubmission(ctx context.Context, db *gorm.DB, id string) (*domain.Submission, error) {
	return repo.GetSubmission(ctx, db, id)
}

func (submissionRepoShim) CountSubmissions(ctx context.Context, db *gorm.DB, f repo.SubmissionFilter) (int64, error) {
	return repo.CountSubmissions(ctx, db, f)
}

func (submissionRepoShim) ListSubmissionsPage(ctx context.Context, db *gorm.DB, f repo.SubmissionFilter, offset, limit int) ([]domain.Submission, error) {
	return repo.ListSubmissionsPage(ctx, db, f, offset, limit)
}

func (submissionRepoShim) CountsByRating(ctx context.Context, db *gorm.DB) (map[int]int64, error) {
	return repo.CountsByRating(ctx, db)
}

func (submissionRepoShim) CountsByStatus(ctx context.Context, db *gorm.DB) (map[domain.SubmissionStatus]int64, error) {
	return repo.CountsByStatus(ctx, db)
}

func (submissionRepoShim) SubmissionsPerDay(ctx context.Context, db *gorm.DB, now time.Time, days int) ([]repo.DayCount, error) {
	return repo.SubmissionsPerDay(ctx, db, now, days)
}

func (submissionRepoShim) GetIdempotency(ctx context.Context, db *gorm.DB, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, scope, key, now)
}

func (submissionRepoShim) CreateIdempotency(ctx context.Context, db *gorm.DB, scope, key, submissionID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, scope, key, submissionID, status, ttl)
}

// NewSubmissionService builds the service the routes use, with the limits
// from cfg.
func NewSubmissionService(db *gorm.DB, proc services.Trigger, cfg config.Config) *services.SubmissionService {
	svc := services.NewSubmissionService(db, submissionRepoShim{}, proc)
	if cfg.MaxReviewChars > 0 {
		svc.MaxReviewChars = cfg.MaxReviewChars
	}
	if cfg.IdempotencyTTL > 0 {
		svc.IdempotencyTTL = cfg.IdempotencyTTL
	}
	return svc
}

// RegisterRoutes installs middleware and every endpoint on r.
//
// Global order:
//  1. otelgin
//  2. RequestID
//  3. AccessLog (redacted)
//  4. Recovery
//  5. body limit, Metrics, gzip
//  6. CORS, security headers
//
// Intake and login additionally pass IdempotencyKey (intake only) and the
// rate limiter; the admin group requires a bearer token.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, proc services.Trigger, auth Authenticator, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(middleware.AccessLogOptions{Redactor: middleware.NewRedactor()}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(bodyLimit(cfg)))
	r.Use(middleware.Metrics())
	if cfg.GzipEnabled {
		r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	}
	r.Use(corsMiddleware(cfg.CORS))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	docs := ""
	if cfg.SwaggerEnabled {
		docs = swaggerIndex
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	r.GET("/", handlers.Root(docs))
	r.GET("/health", handlers.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handlers.New(NewSubmissionService(db, proc, cfg), auth)
	limiter := middleware.NewLimiter(cfg.RateRPS, cfg.RateBurst, middleware.ByAdminOrIP)
	idem := middleware.IdempotencyKey(middleware.IdempotencyOptions{}, idempotencyLookup(db))

	api := groupWithPrefix(r, cfg.APIBasePath)
	if api.BasePath() != "/" {
		api.GET("/health", handlers.Health)
	}
	{
		api.POST("/submissions", idem, limiter.Handler(), h.CreateSubmission)
		api.GET("/submissions/:id", h.GetSubmission)
		api.POST("/admin/login", limiter.Handler(), h.Login)
	}

	admin := api.Group("/admin",
		middleware.RequireAdmin(auth),
		middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}),
	)
	{
		admin.GET("/submissions", h.ListSubmissions)
		admin.GET("/analytics", h.Analytics)
	}
}

// idempotencyLookup tells the middleware whether a key is already bound to a
// live submission.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, services.IdempotencyScope, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
}

// corsMiddleware allows the configured origins, or every origin without
// credentials when none are configured.
func corsMiddleware(c config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey, "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
		cc.AllowCredentials = true
	}
	return cors.New(cc)
}

// bodyLimit leaves room for a review of MaxReviewChars runes at four bytes
// each plus the JSON envelope, so over-long reviews still reach truncation.
func bodyLimit(cfg config.Config) int64 {
	return max(minBodyBytes, int64(cfg.MaxReviewChars)*4+1<<10)
}

// limitBody caps request bodies; reads past the cap fail with 413.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
