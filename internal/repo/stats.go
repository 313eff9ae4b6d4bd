// Package repo implements the data persistence layer for submissions,
// backed by GORM. This file provides the aggregate queries behind the admin
// analytics endpoint.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/review-insights-backend/internal/domain"
)

// DayCount is the number of submissions created on one UTC calendar day.
type DayCount struct {
	Date  string `json:"date" example:"2025-01-31"`
	Count int64  `json:"count" example:"12"`
}

// CountsByRating returns submission totals keyed by rating. Ratings with no
// submissions are absent.
func CountsByRating(ctx context.Context, db *gorm.DB) (map[int]int64, error) {
	var rows []struct {
		Rating int
		N      int64
	}
	err := db.WithContext(ctx).Model(&domain.Submission{}).
		Select("rating, COUNT(*) AS n").
		Group("rating").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int]int64, len(rows))
	for _, r := range rows {
		out[r.Rating] = r.N
	}
	return out, nil
}

// CountsByStatus returns submission totals keyed by status. Statuses with no
// submissions are absent.
func CountsByStatus(ctx context.Context, db *gorm.DB) (map[domain.SubmissionStatus]int64, error) {
	var rows []struct {
		Status domain.SubmissionStatus
		N      int64
	}
	err := db.WithContext(ctx).Model(&domain.Submission{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.SubmissionStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// SubmissionsPerDay returns one entry per UTC day for the `days` calendar
// days ending on now's date, oldest first, including days with zero
// submissions.
//
// Bucketing happens in Go rather than with DATE(created_at): SQLite stores
// timestamps as TEXT and the date functions differ per dialect.
func SubmissionsPerDay(ctx context.Context, db *gorm.DB, now time.Time, days int) ([]DayCount, error) {
	if days <= 0 {
		return []DayCount{}, nil
	}
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -(days - 1))

	var rows []struct {
		CreatedAt time.Time
	}
	err := db.WithContext(ctx).Model(&domain.Submission{}).
		Select("created_at").
		Where("created_at >= ?", start).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, days)
	for _, r := range rows {
		counts[r.CreatedAt.UTC().Format(time.DateOnly)]++
	}

	out := make([]DayCount, 0, days)
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		out = append(out, DayCount{Date: key, Count: counts[key]})
	}
	return out, nil
}
