// Package services – SubmissionService
//
// This file implements intake and read-side operations for review
// submissions. Create validates and normalizes input, persists a PENDING row
// (optionally under an Idempotency-Key) and hands the id to the background
// processor. Get, List and Analytics serve the public status endpoint and the
// admin dashboard.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/review-insights-backend/internal/domain"
	"github.com/tbourn/review-insights-backend/internal/repo"
	"github.com/tbourn/review-insights-backend/internal/utils"
)

// IdempotencyScope namespaces Idempotency-Key records written by Create.
const IdempotencyScope = "submissions"

// AnalyticsDays is the length of the per-day window returned by Analytics.
const AnalyticsDays = 7

// SubmissionRepo defines the persistence contract required by SubmissionService.
type SubmissionRepo interface {
	InsertSubmission(ctx context.Context, db *gorm.DB, rating int, review string) (*domain.Submission, error)
	GetSubmission(ctx context.Context, db *gorm.DB, id string) (*domain.Submission, error)
	CountSubmissions(ctx context.Context, db *gorm.DB, f repo.SubmissionFilter) (int64, error)
	ListSubmissionsPage(ctx context.Context, db *gorm.DB, f repo.SubmissionFilter, offset, limit int) ([]domain.Submission, error)

	CountsByRating(ctx context.Context, db *gorm.DB) (map[int]int64, error)
	CountsByStatus(ctx context.Context, db *gorm.DB) (map[domain.SubmissionStatus]int64, error)
	SubmissionsPerDay(ctx context.Context, db *gorm.DB, now time.Time, days int) ([]repo.DayCount, error)

	GetIdempotency(ctx context.Context, db *gorm.DB, scope, key string, now time.Time) (*domain.Idempotency, error)
	CreateIdempotency(ctx context.Context, db *gorm.DB, scope, key, submissionID string, status int, ttl time.Duration) (*domain.Idempotency, error)
}

// Trigger schedules background processing of one submission.
type Trigger interface {
	Trigger(ctx context.Context, id string)
}

// SubmissionService coordinates submission intake and queries.
type SubmissionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the submission repository.
	Repo SubmissionRepo
	// Processor is notified once per newly created submission. May be nil.
	Processor Trigger

	// MaxReviewChars caps stored reviews by rune length.
	MaxReviewChars int
	// IdempotencyTTL is how long an Idempotency-Key replays its submission.
	IdempotencyTTL time.Duration
	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// NewSubmissionService constructs a SubmissionService with default limits.
func NewSubmissionService(db *gorm.DB, r SubmissionRepo, p Trigger) *SubmissionService {
	return &SubmissionService{
		DB:             db,
		Repo:           r,
		Processor:      p,
		MaxReviewChars: 4000,
		IdempotencyTTL: 24 * time.Hour,
		Now:            time.Now,
	}
}

type createInput struct {
	Rating int    `validate:"min=1,max=5"`
	Review string `validate:"required"`
}

var inputValidator = validator.New(validator.WithRequiredStructEnabled())

// Create validates the input, stores a PENDING submission and triggers its
// processing. Reviews longer than MaxReviewChars are truncated.
//
// With a non-empty idemKey, a repeated call within IdempotencyTTL returns the
// originally created submission with replayed=true and triggers nothing.
func (s *SubmissionService) Create(ctx context.Context, rating int, review, idemKey string) (sub *domain.Submission, replayed bool, err error) {
	tr := otel.Tracer("services/SubmissionService")
	ctx, span := tr.Start(ctx, "Create", trace.WithAttributes(attribute.Int("review.rating", rating)))
	defer span.End()

	in := createInput{Rating: rating, Review: strings.TrimSpace(review)}
	if err := validateCreate(in); err != nil {
		return nil, false, err
	}
	if s.MaxReviewChars > 0 {
		in.Review = utils.TruncateRunes(in.Review, s.MaxReviewChars)
	}

	idemKey = strings.TrimSpace(idemKey)
	if idemKey == "" {
		sub, err = s.Repo.InsertSubmission(ctx, s.DB, in.Rating, in.Review)
	} else {
		sub, replayed, err = s.createIdempotent(ctx, in, idemKey)
	}
	if err != nil {
		return nil, false, err
	}

	span.SetAttributes(attribute.String("submission.id", sub.ID), attribute.Bool("idempotent.replay", replayed))
	if !replayed && s.Processor != nil {
		s.Processor.Trigger(ctx, sub.ID)
	}
	return sub, replayed, nil
}

// createIdempotent inserts the submission and its key in one transaction, or
// returns the submission an earlier request created under the same key.
func (s *SubmissionService) createIdempotent(ctx context.Context, in createInput, key string) (*domain.Submission, bool, error) {
	var (
		sub      *domain.Submission
		replayed bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.Repo.GetIdempotency(ctx, tx, IdempotencyScope, key, s.Now())
		switch {
		case err == nil:
			sub, err = s.Repo.GetSubmission(ctx, tx, rec.SubmissionID)
			replayed = true
			return err
		case !errors.Is(err, repo.ErrNotFound):
			return err
		}

		sub, err = s.Repo.InsertSubmission(ctx, tx, in.Rating, in.Review)
		if err != nil {
			return err
		}
		_, err = s.Repo.CreateIdempotency(ctx, tx, IdempotencyScope, key, sub.ID, http.StatusCreated, s.IdempotencyTTL)
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent request won the race for this key.
		rec, gerr := s.Repo.GetIdempotency(ctx, s.DB, IdempotencyScope, key, s.Now())
		if gerr != nil {
			return nil, false, gerr
		}
		sub, gerr = s.Repo.GetSubmission(ctx, s.DB, rec.SubmissionID)
		return sub, true, gerr
	}
	if err != nil {
		return nil, false, err
	}
	return sub, replayed, nil
}

func validateCreate(in createInput) error {
	err := inputValidator.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Rating":
			return invalid("rating", "must be between 1 and 5")
		case "Review":
			return invalid("review", "must not be empty")
		}
	}
	return invalid("body", err.Error())
}

// Get returns the submission with the given id. Malformed ids are reported
// as ErrSubmissionNotFound.
func (s *SubmissionService) Get(ctx context.Context, id string) (*domain.Submission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSubmissionNotFound
	}
	sub, err := s.Repo.GetSubmission(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrSubmissionNotFound
	}
	return sub, err
}

// ListParams holds admin list filters. Zero values mean "no filter".
type ListParams struct {
	Rating int
	Status string
	Query  string
	Limit  int
	Offset int
}

// Page is one page of submissions plus the total match count.
type Page struct {
	Items  []domain.Submission
	Total  int64
	Limit  int
	Offset int
}

// List validates p and returns the matching page, newest first.
func (s *SubmissionService) List(ctx context.Context, p ListParams) (*Page, error) {
	if p.Limit < 1 || p.Limit > 100 {
		return nil, invalid("limit", "must be between 1 and 100")
	}
	if p.Offset < 0 {
		return nil, invalid("offset", "must be >= 0")
	}
	if p.Rating != 0 && (p.Rating < 1 || p.Rating > 5) {
		return nil, invalid("rating", "must be between 1 and 5")
	}
	status, err := ParseStatus(p.Status)
	if err != nil {
		return nil, err
	}

	f := repo.SubmissionFilter{Rating: p.Rating, Status: status, Query: p.Query}
	total, err := s.Repo.CountSubmissions(ctx, s.DB, f)
	if err != nil {
		return nil, err
	}
	items, err := s.Repo.ListSubmissionsPage(ctx, s.DB, f, p.Offset, p.Limit)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total, Limit: p.Limit, Offset: p.Offset}, nil
}

// ParseStatus maps a case-insensitive status name to a SubmissionStatus.
// The empty string yields the empty status (no filter).
func ParseStatus(raw string) (domain.SubmissionStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	st := domain.SubmissionStatus(cases.Upper(language.Und).String(raw))
	if !st.Valid() {
		return "", invalid("status", "must be one of PENDING, COMPLETED, FAILED")
	}
	return st, nil
}

// Analytics is the admin dashboard aggregate.
type Analytics struct {
	CountsByRating    map[int]int64
	CountsByStatus    map[domain.SubmissionStatus]int64
	SubmissionsPerDay []repo.DayCount
}

// Analytics returns counts by rating (1..5) and status, each zero-filled,
// plus per-day counts for the last AnalyticsDays UTC days.
func (s *SubmissionService) Analytics(ctx context.Context) (*Analytics, error) {
	byRating, err := s.Repo.CountsByRating(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.Repo.CountsByStatus(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	perDay, err := s.Repo.SubmissionsPerDay(ctx, s.DB, s.Now(), AnalyticsDays)
	if err != nil {
		return nil, err
	}

	out := &Analytics{
		CountsByRating:    make(map[int]int64, 5),
		CountsByStatus:    make(map[domain.SubmissionStatus]int64, len(domain.Statuses)),
		SubmissionsPerDay: perDay,
	}
	for r := 1; r <= 5; r++ {
		out.CountsByRating[r] = byRating[r]
	}
	for _, st := range domain.Statuses {
		out.CountsByStatus[st] = byStatus[st]
	}
	return out, nil
}
