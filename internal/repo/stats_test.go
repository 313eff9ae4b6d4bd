package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/review-insights-backend/internal/domain"
)

func TestCountsByRatingAndStatus(t *testing.T) {
	db := newTestDB(t, &domain.Submission{})
	ctx := context.Background()
	now := time.Now()

	seed(t, db, 5, "a", domain.StatusCompleted, now)
	seed(t, db, 5, "b", domain.StatusFailed, now)
	seed(t, db, 2, "c", domain.StatusPending, now)

	byRating, err := CountsByRating(ctx, db)
	if err != nil {
		t.Fatalf("CountsByRating: %v", err)
	}
	if byRating[5] != 2 || byRating[2] != 1 || len(byRating) != 2 {
		t.Fatalf("byRating = %v", byRating)
	}

	byStatus, err := CountsByStatus(ctx, db)
	if err != nil {
		t.Fatalf("CountsByStatus: %v", err)
	}
	if byStatus[domain.StatusCompleted] != 1 || byStatus[domain.StatusFailed] != 1 || byStatus[domain.StatusPending] != 1 {
		t.Fatalf("byStatus = %v", byStatus)
	}
}

func TestCounts_Error_NoTable(t *testing.T) {
	db := newTestDB(t)
	if _, err := CountsByRating(context.Background(), db); err == nil {
		t.Fatalf("expected error due to missing table")
	}
	if _, err := CountsByStatus(context.Background(), db); err == nil {
		t.Fatalf("expected error due to missing table")
	}
}

func TestSubmissionsPerDay_ZeroFilledWindow(t *testing.T) {
	db := newTestDB(t, &domain.Submission{})
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	seed(t, db, 4, "today", domain.StatusPending, now.Add(-time.Hour))
	seed(t, db, 4, "today too", domain.StatusPending, now.Add(-2*time.Hour))
	seed(t, db, 3, "two days ago", domain.StatusPending, now.AddDate(0, 0, -2))
	seed(t, db, 3, "outside window", domain.StatusPending, now.AddDate(0, 0, -7))

	days, err := SubmissionsPerDay(ctx, db, now, 7)
	if err != nil {
		t.Fatalf("SubmissionsPerDay: %v", err)
	}
	if len(days) != 7 {
		t.Fatalf("expected 7 buckets, got %d: %v", len(days), days)
	}
	if days[0].Date != "2025-03-04" || days[6].Date != "2025-03-10" {
		t.Fatalf("unexpected window: %v", days)
	}
	if days[6].Count != 2 || days[4].Count != 1 || days[5].Count != 0 {
		t.Fatalf("unexpected counts: %v", days)
	}
	var total int64
	for _, d := range days {
		total += d.Count
	}
	if total != 3 {
		t.Fatalf("row outside the window was counted: %v", days)
	}
}

func TestSubmissionsPerDay_EmptyAndError(t *testing.T) {
	db := newTestDB(t, &domain.Submission{})
	got, err := SubmissionsPerDay(context.Background(), db, time.Now(), 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("days=0: got %v err=%v", got, err)
	}

	if err := db.Exec(`ALTER TABLE submissions RENAME COLUMN created_at TO created_at_old`).Error; err != nil {
		t.Fatalf("rename column: %v", err)
	}
	if _, err := SubmissionsPerDay(context.Background(), db, time.Now(), 7); err == nil {
		t.Fatalf("expected error after created_at column rename")
	}
}
