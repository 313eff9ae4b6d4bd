// Package repo implements the data persistence layer for submissions,
// backed by GORM. This file provides the Submission store.
//
// All functions are context-aware and accept a *gorm.DB handle, so they work
// on a plain connection or inside a transaction. They hold no business logic
// beyond the status-transition guard enforced at the update boundary.
//
// Error semantics:
//   - Missing rows yield ErrNotFound (an alias of gorm.ErrRecordNotFound).
//   - A status write that the lifecycle forbids yields ErrInvalidTransition.
//   - Any other database error is returned as-is.
package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/review-insights-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrInvalidTransition is returned when an update would move a submission
// into a status that is not reachable from its current one.
var ErrInvalidTransition = errors.New("invalid status transition")

// SubmissionFilter narrows admin listings. Zero values mean "no filter".
type SubmissionFilter struct {
	Rating int
	Status domain.SubmissionStatus
	// Query matches review text case-insensitively as a substring.
	Query string
}

// likeEscaper makes LIKE wildcards in a search term literal.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (f SubmissionFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Rating != 0 {
		q = q.Where("rating = ?", f.Rating)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		q = q.Where("LOWER(review) LIKE ? ESCAPE '!'", "%"+likeEscaper.Replace(cases.Lower(language.Und).String(s))+"%")
	}
	return q
}

// InsertSubmission stores a new PENDING submission with a fresh UUID.
func InsertSubmission(ctx context.Context, db *gorm.DB, rating int, review string) (*domain.Submission, error) {
	now := time.Now().UTC()
	s := &domain.Submission{
		ID:        uuid.NewString(),
		Rating:    rating,
		Review:    review,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSubmission fetches a submission by id, or ErrNotFound.
func GetSubmission(ctx context.Context, db *gorm.DB, id string) (*domain.Submission, error) {
	var s domain.Submission
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSubmission applies the supplied fields of upd in a single UPDATE.
//
// When upd carries a status, the statement only matches rows whose current
// status is a legal predecessor, so two racing writers cannot both finalize
// the same row. If nothing matched, the row is probed to tell ErrNotFound
// apart from ErrInvalidTransition.
func UpdateSubmission(ctx context.Context, db *gorm.DB, id string, upd domain.SubmissionUpdate) error {
	cols := upd.Columns()
	cols["updated_at"] = time.Now().UTC()

	q := db.WithContext(ctx).Model(&domain.Submission{}).Where("id = ?", id)
	if upd.Status != nil {
		preds := domain.Predecessors(*upd.Status)
		if len(preds) == 0 {
			if err := submissionExists(ctx, db, id); err != nil {
				return err
			}
			return fmt.Errorf("%w: to %s", ErrInvalidTransition, *upd.Status)
		}
		q = q.Where("status IN ?", preds)
	}

	res := q.Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if err := submissionExists(ctx, db, id); err != nil {
		return err
	}
	if upd.Status != nil {
		return fmt.Errorf("%w: to %s", ErrInvalidTransition, *upd.Status)
	}
	return nil
}

func submissionExists(ctx context.Context, db *gorm.DB, id string) error {
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Submission{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountSubmissions returns how many submissions match f.
func CountSubmissions(ctx context.Context, db *gorm.DB, f SubmissionFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Submission{})).Count(&total).Error
	return total, err
}

// ListSubmissionsPage returns a page of submissions matching f, newest first.
func ListSubmissionsPage(ctx context.Context, db *gorm.DB, f SubmissionFilter, offset, limit int) ([]domain.Submission, error) {
	var out []domain.Submission
	err := f.apply(db.WithContext(ctx)).
		Order("created_at desc").
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
