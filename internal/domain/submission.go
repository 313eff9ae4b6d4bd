// Package domain defines the persistence models for review submissions and
// the lifecycle rules that govern them. These types are mapped with GORM and
// shared by the repository, service and HTTP layers.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// SubmissionStatus is the closed set of lifecycle states of a Submission.
type SubmissionStatus string

const (
	StatusPending   SubmissionStatus = "PENDING"
	StatusCompleted SubmissionStatus = "COMPLETED"
	StatusFailed    SubmissionStatus = "FAILED"
)

// Statuses lists every valid status in display order.
var Statuses = []SubmissionStatus{StatusPending, StatusCompleted, StatusFailed}

// Valid reports whether s is one of the known statuses.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed out of s.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a submission may move from -> to.
// The only legal moves are PENDING -> COMPLETED and PENDING -> FAILED.
func CanTransition(from, to SubmissionStatus) bool {
	return from == StatusPending && to.IsTerminal()
}

// Predecessors returns the states from which a transition into to is legal.
// It is empty for PENDING and for unknown statuses.
func Predecessors(to SubmissionStatus) []SubmissionStatus {
	var out []SubmissionStatus
	for _, from := range Statuses {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// Submission is a stored rating and review plus its model-derived analysis.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Rating: 1..5, indexed for admin filtering.
//   - Review: trimmed review text, already truncated to the configured maximum.
//   - Status: lifecycle state, indexed.
//   - UserAIResponse / AdminSummary / RecommendedActions: set only when COMPLETED.
//   - ErrorMessage: internal failure detail, set only when FAILED.
//   - CreatedAt / UpdatedAt: UTC timestamps; CreatedAt is indexed.
type Submission struct {
	ID                 string                      `json:"id"                            gorm:"type:char(36);primaryKey"`
	Rating             int                         `json:"rating"                        gorm:"not null;index:idx_rating;check:rating BETWEEN 1 AND 5"`
	Review             string                      `json:"review"                        gorm:"type:text;not null"`
	Status             SubmissionStatus            `json:"status"                        gorm:"type:varchar(16);not null;default:'PENDING';index:idx_status"`
	UserAIResponse     *string                     `json:"user_ai_response,omitempty"    gorm:"type:text"`
	AdminSummary       *string                     `json:"admin_summary,omitempty"       gorm:"type:text"`
	RecommendedActions datatypes.JSONSlice[string] `json:"recommended_actions,omitempty"`
	ErrorMessage       *string                     `json:"error_message,omitempty"       gorm:"type:text"`
	CreatedAt          time.Time                   `json:"created_at"                    gorm:"not null;index:idx_created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"                    gorm:"not null"`
}

// TableName returns the database table name for Submission.
func (Submission) TableName() string { return "submissions" }

// SubmissionUpdate is a partial update. Nil fields are left untouched.
// ClearError writes NULL into error_message.
type SubmissionUpdate struct {
	Status             *SubmissionStatus
	UserAIResponse     *string
	AdminSummary       *string
	RecommendedActions []string
	ErrorMessage       *string
	ClearError         bool
}

// Completed builds the update that finalizes a submission with model output.
func Completed(userResponse, adminSummary string, actions []string) SubmissionUpdate {
	st := StatusCompleted
	return SubmissionUpdate{
		Status:             &st,
		UserAIResponse:     &userResponse,
		AdminSummary:       &adminSummary,
		RecommendedActions: actions,
		ClearError:         true,
	}
}

// Failed builds the update that marks a submission as failed with msg.
func Failed(msg string) SubmissionUpdate {
	st := StatusFailed
	return SubmissionUpdate{Status: &st, ErrorMessage: &msg}
}

// Columns converts the update into a column map for a single UPDATE statement.
func (u SubmissionUpdate) Columns() map[string]any {
	cols := make(map[string]any, 6)
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.UserAIResponse != nil {
		cols["user_ai_response"] = *u.UserAIResponse
	}
	if u.AdminSummary != nil {
		cols["admin_summary"] = *u.AdminSummary
	}
	if u.RecommendedActions != nil {
		cols["recommended_actions"] = datatypes.JSONSlice[string](u.RecommendedActions)
	}
	if u.ClearError {
		cols["error_message"] = nil
	} else if u.ErrorMessage != nil {
		cols["error_message"] = *u.ErrorMessage
	}
	return cols
}
