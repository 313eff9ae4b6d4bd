package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/review-insights-backend/internal/domain"
	"github.com/tbourn/review-insights-backend/internal/llm"
	"github.com/tbourn/review-insights-backend/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func migrated(t *testing.T) *gorm.DB {
	return newSvcDB(t, &domain.Submission{}, &domain.Idempotency{})
}

// repoFuncs forwards SubmissionRepo to the repo package.
type repoFuncs struct{}

func (repoFuncs) InsertSubmission(ctx context.Context, db *gorm.DB, rating int, review string) (*domain.Submission, error) {
	return repo.InsertSubmission(ctx, db, rating, review)
}
func (repoFuncs) GetSubmission(ctx context.Context, db *gorm.DB, id string) (*domain.Submission, error) {
	return repo.GetSubmission(ctx, db, id)
}
func (repoFuncs) CountSubmissions(ctx context.Context, db *gorm.DB, f repo.SubmissionFilter) (int64, error) {
	return repo.CountSubmissions(ctx, db, f)
}
func (repoFuncs) ListSubmissionsPage(ctx context.Context, db *gorm.DB, f repo.SubmissionFilter, offset, limit int) ([]domain.Submission, error) {
	return repo.ListSubmissionsPage(ctx, db, f, offset, limit)
}
func (repoFuncs) CountsByRating(ctx context.Context, db *gorm.DB) (map[int]int64, error) {
	return repo.CountsByRating(ctx, db)
}
func (repoFuncs) CountsByStatus(ctx context.Context, db *gorm.DB) (map[domain.SubmissionStatus]int64, error) {
	return repo.CountsByStatus(ctx, db)
}
func (repoFuncs) SubmissionsPerDay(ctx context.Context, db *gorm.DB, now time.Time, days int) ([]repo.DayCount, error) {
	return repo.SubmissionsPerDay(ctx, db, now, days)
}
func (repoFuncs) GetIdempotency(ctx context.Context, db *gorm.DB, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, scope, key, now)
}
func (repoFuncs) CreateIdempotency(ctx context.Context, db *gorm.DB, scope, key, submissionID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, scope, key, submissionID, status, ttl)
}

// recordingTrigger remembers every triggered id.
type recordingTrigger struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingTrigger) Trigger(_ context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *recordingTrigger) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

// stubModel is a ModelClient driven by a func field.
type stubModel struct {
	GenerateFn func(ctx context.Context, review string, rating int) (*llm.ModelOutput, error)
}

func (s stubModel) Generate(ctx context.Context, review string, rating int) (*llm.ModelOutput, error) {
	return s.GenerateFn(ctx, review, rating)
}

func okModel() stubModel {
	return stubModel{GenerateFn: func(context.Context, string, int) (*llm.ModelOutput, error) {
		return &llm.ModelOutput{
			UserAIResponse:     "Thanks for the feedback!",
			AdminSummary:       "Customer liked the food",
			RecommendedActions: []string{"Thank the chef", "Keep the menu"},
		}, nil
	}}
}

func failingModel(err error) stubModel {
	return stubModel{GenerateFn: func(context.Context, string, int) (*llm.ModelOutput, error) {
		return nil, err
	}}
}
