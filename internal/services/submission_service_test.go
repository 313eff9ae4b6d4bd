package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/review-insights-backend/internal/domain"
	"github.com/tbourn/review-insights-backend/internal/repo"
)

func newSubmissionSvc(t *testing.T) (*SubmissionService, *recordingTrigger) {
	t.Helper()
	trig := &recordingTrigger{}
	return NewSubmissionService(migrated(t), repoFuncs{}, trig), trig
}

// ---------- Create() ----------

func TestSubmissionService_Create_PendingAndTriggered(t *testing.T) {
	s, trig := newSubmissionSvc(t)

	sub, replayed, err := s.Create(context.Background(), 4, "  Great pizza  ", "")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if replayed {
		t.Fatalf("first create must not be a replay")
	}
	if sub.Status != domain.StatusPending || sub.Review != "Great pizza" || sub.Rating != 4 {
		t.Fatalf("unexpected submission: %+v", sub)
	}
	if _, err := uuid.Parse(sub.ID); err != nil {
		t.Fatalf("id is not a uuid: %q", sub.ID)
	}
	if got := trig.got(); len(got) != 1 || got[0] != sub.ID {
		t.Fatalf("triggered = %v; want [%s]", got, sub.ID)
	}

	stored, err := repo.GetSubmission(context.Background(), s.DB, sub.ID)
	if err != nil || stored.Review != "Great pizza" || stored.UserAIResponse != nil || stored.ErrorMessage != nil {
		t.Fatalf("stored = %+v, err = %v", stored, err)
	}
}

func TestSubmissionService_Create_UniqueIDs(t *testing.T) {
	s, _ := newSubmissionSvc(t)
	seen := map[string]bool{}
	for i := 1; i <= 5; i++ {
		sub, _, err := s.Create(context.Background(), i, "review", "")
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		if seen[sub.ID] {
			t.Fatalf("duplicate id %s", sub.ID)
		}
		seen[sub.ID] = true
	}
}

func TestSubmissionService_Create_TruncatesByRunes(t *testing.T) {
	s, _ := newSubmissionSvc(t)
	s.MaxReviewChars = 5

	sub, _, err := s.Create(context.Background(), 2, "héllo wörld", "")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if sub.Review != "héllo" {
		t.Fatalf("review = %q; want %q", sub.Review, "héllo")
	}

	short, _, _ := s.Create(context.Background(), 2, "abc", "")
	if short.Review != "abc" {
		t.Fatalf("short review changed: %q", short.Review)
	}
}

func TestSubmissionService_Create_Validation(t *testing.T) {
	s, trig := newSubmissionSvc(t)
	cases := []struct {
		rating int
		review string
		field  string
	}{
		{0, "ok", "rating"},
		{6, "ok", "rating"},
		{-1, "ok", "rating"},
		{3, "", "review"},
		{3, " \n\t ", "review"},
	}
	for _, tc := range cases {
		_, _, err := s.Create(context.Background(), tc.rating, tc.review, "")
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("Create(%d, %q) err = %v; want ErrValidation", tc.rating, tc.review, err)
		}
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != tc.field {
			t.Fatalf("Create(%d, %q) field = %v; want %s", tc.rating, tc.review, err, tc.field)
		}
	}
	if len(trig.got()) != 0 {
		t.Fatalf("invalid input must not trigger processing")
	}
}

func TestSubmissionService_Create_Idempotent(t *testing.T) {
	s, trig := newSubmissionSvc(t)
	ctx := context.Background()

	first, replayed, err := s.Create(ctx, 5, "Lovely", "key-1")
	if err != nil || replayed {
		t.Fatalf("first create: replayed=%v err=%v", replayed, err)
	}
	again, replayed, err := s.Create(ctx, 5, "Lovely", "key-1")
	if err != nil || !replayed {
		t.Fatalf("second create: replayed=%v err=%v", replayed, err)
	}
	if again.ID != first.ID {
		t.Fatalf("replay returned %s; want %s", again.ID, first.ID)
	}
	other, replayed, err := s.Create(ctx, 5, "Lovely", "key-2")
	if err != nil || replayed || other.ID == first.ID {
		t.Fatalf("different key should create a new submission: %+v %v %v", other, replayed, err)
	}

	if got := trig.got(); len(got) != 2 {
		t.Fatalf("triggered %d times; want 2", len(got))
	}
	var n int64
	s.DB.Model(&domain.Submission{}).Count(&n)
	if n != 2 {
		t.Fatalf("stored %d submissions; want 2", n)
	}
}

func TestSubmissionService_Create_IdempotencyKeyExpires(t *testing.T) {
	s, _ := newSubmissionSvc(t)
	s.IdempotencyTTL = time.Millisecond
	ctx := context.Background()

	first, _, err := s.Create(ctx, 3, "meh", "k")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	second, replayed, err := s.Create(ctx, 3, "meh", "k")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if replayed || second.ID == first.ID {
		t.Fatalf("expired key must not replay")
	}
}

func TestSubmissionService_Create_DBError(t *testing.T) {
	s := NewSubmissionService(newSvcDB(t /* no tables */), repoFuncs{}, nil)
	if _, _, err := s.Create(context.Background(), 3, "x", ""); err == nil {
		t.Fatalf("expected error without tables")
	}
	if _, _, err := s.Create(context.Background(), 3, "x", "k"); err == nil {
		t.Fatalf("expected error without tables on idempotent path")
	}
}

// ---------- Get() ----------

func TestSubmissionService_Get(t *testing.T) {
	s, _ := newSubmissionSvc(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "not-a-uuid"); !errors.Is(err, ErrSubmissionNotFound) {
		t.Fatalf("malformed id err = %v", err)
	}
	if _, err := s.Get(ctx, uuid.NewString()); !errors.Is(err, ErrSubmissionNotFound) {
		t.Fatalf("unknown id err = %v", err)
	}

	sub, _, _ := s.Create(ctx, 1, "Cold food", "")
	a, err := s.Get(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	b, err := s.Get(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("repeated Get differs:\n%+v\n%+v", a, b)
	}
}

// ---------- List() ----------

func TestSubmissionService_List_Validation(t *testing.T) {
	s, _ := newSubmissionSvc(t)
	bad := []ListParams{
		{Limit: 0},
		{Limit: 101},
		{Limit: 10, Offset: -1},
		{Limit: 10, Rating: 6},
		{Limit: 10, Rating: -2},
		{Limit: 10, Status: "archived"},
	}
	for _, p := range bad {
		if _, err := s.List(context.Background(), p); !errors.Is(err, ErrValidation) {
			t.Fatalf("List(%+v) err = %v; want ErrValidation", p, err)
		}
	}
}

func TestSubmissionService_List_FiltersAndPages(t *testing.T) {
	s, _ := newSubmissionSvc(t)
	ctx := context.Background()

	var ids []string
	for i, r := range []int{5, 5, 1, 3} {
		sub, _, err := s.Create(ctx, r, "Review number "+strings.Repeat("x", i), "")
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		ids = append(ids, sub.ID)
	}
	if err := repo.UpdateSubmission(ctx, s.DB, ids[0], domain.Completed("a", "b", []string{"c"})); err != nil {
		t.Fatalf("complete: %v", err)
	}

	page, err := s.List(ctx, ListParams{Limit: 10, Status: " completed "})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != ids[0] {
		t.Fatalf("status filter page = %+v", page)
	}

	page, err = s.List(ctx, ListParams{Limit: 1, Offset: 1, Rating: 5})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 1 || page.Limit != 1 || page.Offset != 1 {
		t.Fatalf("rating page = %+v", page)
	}

	page, err = s.List(ctx, ListParams{Limit: 20, Query: "NUMBER"})
	if err != nil || page.Total != 4 {
		t.Fatalf("query page total = %v, err = %v", page, err)
	}
}

func TestSubmissionService_List_DBError(t *testing.T) {
	s := NewSubmissionService(newSvcDB(t), repoFuncs{}, nil)
	if _, err := s.List(context.Background(), ListParams{Limit: 10}); err == nil {
		t.Fatalf("expected error without tables")
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]domain.SubmissionStatus{
		"":          "",
		"  ":        "",
		"pending":   domain.StatusPending,
		"Completed": domain.StatusCompleted,
		" FAILED ":  domain.StatusFailed,
	}
	for in, want := range cases {
		got, err := ParseStatus(in)
		if err != nil || got != want {
			t.Fatalf("ParseStatus(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseStatus("done"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseStatus(done) err = %v", err)
	}
}

// ---------- Analytics() ----------

func TestSubmissionService_Analytics_ZeroFilled(t *testing.T) {
	s, _ := newSubmissionSvc(t)
	ctx := context.Background()
	now := time.Now().UTC()
	s.Now = func() time.Time { return now }

	a, _, _ := s.Create(ctx, 5, "great", "")
	_, _, _ = s.Create(ctx, 5, "great again", "")
	b, _, _ := s.Create(ctx, 2, "bad", "")
	_ = repo.UpdateSubmission(ctx, s.DB, a.ID, domain.Completed("x", "y", []string{"z"}))
	_ = repo.UpdateSubmission(ctx, s.DB, b.ID, domain.Failed("boom"))

	got, err := s.Analytics(ctx)
	if err != nil {
		t.Fatalf("Analytics error: %v", err)
	}
	wantRating := map[int]int64{1: 0, 2: 1, 3: 0, 4: 0, 5: 2}
	if !reflect.DeepEqual(got.CountsByRating, wantRating) {
		t.Fatalf("by rating = %v; want %v", got.CountsByRating, wantRating)
	}
	wantStatus := map[domain.SubmissionStatus]int64{
		domain.StatusPending: 1, domain.StatusCompleted: 1, domain.StatusFailed: 1,
	}
	if !reflect.DeepEqual(got.CountsByStatus, wantStatus) {
		t.Fatalf("by status = %v; want %v", got.CountsByStatus, wantStatus)
	}
	if len(got.SubmissionsPerDay) != AnalyticsDays {
		t.Fatalf("per-day len = %d", len(got.SubmissionsPerDay))
	}
	if last := got.SubmissionsPerDay[AnalyticsDays-1]; last.Count != 3 {
		t.Fatalf("today count = %d; want 3", last.Count)
	}
}

func TestSubmissionService_Analytics_DBError(t *testing.T) {
	s := NewSubmissionService(newSvcDB(t), repoFuncs{}, nil)
	if _, err := s.Analytics(context.Background()); err == nil {
		t.Fatalf("expected error without tables")
	}
}
