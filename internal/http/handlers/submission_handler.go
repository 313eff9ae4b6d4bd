// Public submission endpoints:
//   - POST /submissions      accept a rating and review
//   - GET  /submissions/{id} poll status and the generated reply
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/review-insights-backend/internal/domain"
	"github.com/tbourn/review-insights-backend/internal/http/middleware"
	"github.com/tbourn/review-insights-backend/internal/services"
)

// PublicFailureMessage replaces the internal error detail on public reads.
const PublicFailureMessage = "We encountered an issue processing your submission. Please try again later."

// SubmissionService is the submission surface used by the handlers.
// Implementations must be safe for concurrent use.
type SubmissionService interface {
	Create(ctx context.Context, rating int, review, idemKey string) (*domain.Submission, bool, error)
	Get(ctx context.Context, id string) (*domain.Submission, error)
	List(ctx context.Context, p services.ListParams) (*services.Page, error)
	Analytics(ctx context.Context) (*services.Analytics, error)
}

// AuthService issues admin tokens.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*services.Token, error)
}

// Handlers groups the public and admin endpoints.
type Handlers struct {
	subs SubmissionService
	auth AuthService
	now  func() time.Time
}

// New binds the handlers to their services.
func New(subs SubmissionService, auth AuthService) *Handlers {
	return &Handlers{subs: subs, auth: auth, now: time.Now}
}

// CreateSubmissionRequest is the intake payload.
type CreateSubmissionRequest struct {
	// 1..5
	Rating int `json:"rating" example:"4"`
	// Free text; trimmed and truncated server-side
	Review string `json:"review" example:"Great food, slow service."`
}

// CreateSubmissionResponse acknowledges a stored submission.
type CreateSubmissionResponse struct {
	SubmissionID string                  `json:"submission_id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	Status       domain.SubmissionStatus `json:"status" example:"PENDING"`
}

// SubmissionStatusResponse is the public view of a submission.
type SubmissionStatusResponse struct {
	ID        string                  `json:"id"`
	Rating    int                     `json:"rating"`
	Review    string                  `json:"review"`
	Status    domain.SubmissionStatus `json:"status" example:"COMPLETED"`
	CreatedAt time.Time               `json:"created_at"`
	// Present only when COMPLETED
	UserAIResponse *string `json:"user_ai_response,omitempty"`
	// Present only when FAILED; always a generic message
	ErrorMessage *string `json:"error_message,omitempty"`
}

func publicView(s *domain.Submission) SubmissionStatusResponse {
	out := SubmissionStatusResponse{
		ID:        s.ID,
		Rating:    s.Rating,
		Review:    s.Review,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
	}
	switch s.Status {
	case domain.StatusCompleted:
		out.UserAIResponse = s.UserAIResponse
	case domain.StatusFailed:
		msg := PublicFailureMessage
		out.ErrorMessage = &msg
	}
	return out
}

// CreateSubmission godoc
// @ID          createSubmission
// @Summary     Submit a rating and review
// @Description Stores the submission as PENDING and starts background analysis.
// @Description A repeated Idempotency-Key returns the original submission with 200.
// @Tags        Submissions
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false  "Client retry key"  example(7f6c1f0e-retry-1)
// @Param       body  body  handlers.CreateSubmissionRequest  true  "Submission"
// @Success     201  {object}  handlers.CreateSubmissionResponse
// @Success     200  {object}  handlers.CreateSubmissionResponse  "Idempotent replay"
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed JSON"
// @Failure     413  {object}  handlers.ErrorResponse  "Body too large"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failed or wrong field type"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /submissions [post]
func (h *Handlers) CreateSubmission(c *gin.Context) {
	var req CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	key, _ := middleware.IdempotencyKeyFrom(c)

	sub, replayed, err := h.subs.Create(c.Request.Context(), req.Rating, req.Review, key)
	if err != nil {
		failErr(c, err, ErrCodeCreateFailed)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
		c.Header("Idempotent-Replay", "true")
	}
	ok(c, status, CreateSubmissionResponse{SubmissionID: sub.ID, Status: sub.Status})
}

// bindFail answers a body that is valid JSON but carries a field of the wrong
// type with 422, an oversized body with 413 and anything else with 400.
func bindFail(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation,
			fmt.Sprintf("%s: expected %s, got %s", typeErr.Field, typeErr.Type.Kind(), typeErr.Value))
		return
	}
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
}

// GetSubmission godoc
// @ID          getSubmission
// @Summary     Get submission status
// @Description Returns the submission, the generated reply once COMPLETED, or a generic error once FAILED.
// @Tags        Submissions
// @Produce     json
// @Param       id  path  string  true  "Submission ID (UUID)"  format(uuid)
// @Success     200  {object}  handlers.SubmissionStatusResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /submissions/{id} [get]
func (h *Handlers) GetSubmission(c *gin.Context) {
	sub, err := h.subs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err, ErrCodeLookupFailed)
		return
	}
	ok(c, http.StatusOK, publicView(sub))
}
