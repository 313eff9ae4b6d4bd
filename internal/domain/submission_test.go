package domain

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to SubmissionStatus
		want     bool
	}{
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusPending, false},
		{StatusCompleted, StatusPending, false},
		{StatusFailed, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusCompleted, false},
		{StatusPending, SubmissionStatus("DONE"), false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v; want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestPredecessors(t *testing.T) {
	if got := Predecessors(StatusCompleted); len(got) != 1 || got[0] != StatusPending {
		t.Fatalf("Predecessors(COMPLETED) = %v", got)
	}
	if got := Predecessors(StatusPending); len(got) != 0 {
		t.Fatalf("Predecessors(PENDING) should be empty, got %v", got)
	}
}

func TestStatus_ValidAndTerminal(t *testing.T) {
	for _, s := range Statuses {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
	}
	if SubmissionStatus("pending").Valid() {
		t.Fatalf("lowercase status must not be valid")
	}
	if StatusPending.IsTerminal() || !StatusFailed.IsTerminal() || !StatusCompleted.IsTerminal() {
		t.Fatalf("unexpected terminal flags")
	}
}

func TestSubmissionUpdate_Columns(t *testing.T) {
	cols := Completed("hi", "sum", []string{"a"}).Columns()
	if cols["status"] != StatusCompleted || cols["user_ai_response"] != "hi" || cols["admin_summary"] != "sum" {
		t.Fatalf("completed columns: %#v", cols)
	}
	if v, ok := cols["error_message"]; !ok || v != nil {
		t.Fatalf("completed must clear error_message, got %#v", cols)
	}

	cols = Failed("boom").Columns()
	if cols["status"] != StatusFailed || cols["error_message"] != "boom" {
		t.Fatalf("failed columns: %#v", cols)
	}
	for _, k := range []string{"user_ai_response", "admin_summary", "recommended_actions"} {
		if _, ok := cols[k]; ok {
			t.Fatalf("failed update must not touch %s", k)
		}
	}
}

func TestSubmission_RoundTripJSONColumn(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	s := &Submission{
		ID:                 "11111111-1111-1111-1111-111111111111",
		Rating:             4,
		Review:             "good",
		Status:             StatusCompleted,
		RecommendedActions: []string{"x", "y"},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	var got Submission
	if err := db.First(&got, "id = ?", s.ID).Error; err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got.RecommendedActions) != 2 || got.RecommendedActions[1] != "y" {
		t.Fatalf("actions = %v", got.RecommendedActions)
	}
	if got.UserAIResponse != nil || got.ErrorMessage != nil {
		t.Fatalf("nullable fields should stay nil: %+v", got)
	}

	if err := db.Create(&Submission{ID: "22222222-2222-2222-2222-222222222222", Rating: 9, Review: "x", Status: StatusPending, CreatedAt: now, UpdatedAt: now}).Error; err == nil {
		t.Fatalf("expected rating check constraint to reject 9")
	}
}
