// Admin endpoints:
//   - POST /admin/login        exchange credentials for a bearer token
//   - GET  /admin/submissions  filtered, paginated list
//   - GET  /admin/analytics    dashboard aggregates
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/review-insights-backend/internal/domain"
	"github.com/tbourn/review-insights-backend/internal/repo"
	"github.com/tbourn/review-insights-backend/internal/services"
	"github.com/tbourn/review-insights-backend/internal/utils"
)

const (
	defaultListLimit   = 20
	reviewPreviewRunes = 200
)

// LoginRequest carries admin credentials.
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"admin"`
	Password string `json:"password" binding:"required" example:"change-me"`
}

// TokenResponse is an issued bearer token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type" example:"bearer"`
	// Seconds until expiry
	ExpiresIn int64 `json:"expires_in" example:"86400"`
}

// ListQuery binds the admin list query string. Range checks live in the
// service so every caller gets the same messages.
type ListQuery struct {
	Rating int    `form:"rating"`
	Status string `form:"status"`
	Q      string `form:"q"`
	Limit  *int   `form:"limit"`
	Offset int    `form:"offset"`
}

// AdminSubmission is one row of the admin list.
type AdminSubmission struct {
	ID                 string                  `json:"id"`
	Rating             int                     `json:"rating"`
	Status             domain.SubmissionStatus `json:"status"`
	CreatedAt          time.Time               `json:"created_at"`
	ReviewPreview      string                  `json:"review_preview"`
	AdminSummary       *string                 `json:"admin_summary"`
	RecommendedActions []string                `json:"recommended_actions"`
	ErrorMessage       *string                 `json:"error_message"`
}

// AdminSubmissionList is a page of submissions.
type AdminSubmissionList struct {
	Items  []AdminSubmission `json:"items"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// AnalyticsResponse feeds the admin dashboard.
type AnalyticsResponse struct {
	CountsByRating    map[string]int64 `json:"counts_by_rating"`
	CountsByStatus    map[string]int64 `json:"counts_by_status"`
	SubmissionsPerDay []repo.DayCount  `json:"submissions_per_day"`
}

// Login godoc
// @ID          adminLogin
// @Summary     Admin login
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
// @Success     200  {object}  handlers.TokenResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed body"
// @Failure     401  {object}  handlers.ErrorResponse  "Wrong credentials"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Router      /admin/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username and password are required")
		return
	}
	tok, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		failErr(c, err, ErrCodeLoginFailed)
		return
	}
	ok(c, http.StatusOK, TokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(tok.ExpiresAt.Sub(h.now()).Round(time.Second) / time.Second),
	})
}

// ListSubmissions godoc
// @ID          adminListSubmissions
// @Summary     List submissions
// @Description Newest first. q matches review text case-insensitively.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       rating  query  int     false  "Rating filter"  minimum(1) maximum(5)
// @Param       status  query  string  false  "Status filter"  Enums(PENDING, COMPLETED, FAILED)
// @Param       q       query  string  false  "Review text search"
// @Param       limit   query  int     false  "Page size"  minimum(1) maximum(100) default(20)
// @Param       offset  query  int     false  "Offset"     minimum(0) default(0)
// @Success     200  {object}  handlers.AdminSubmissionList
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     422  {object}  handlers.ErrorResponse  "Invalid filter"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/submissions [get]
func (h *Handlers) ListSubmissions(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "query parameters must be integers where numeric")
		return
	}
	limit := defaultListLimit
	if q.Limit != nil {
		limit = *q.Limit
	}

	page, err := h.subs.List(c.Request.Context(), services.ListParams{
		Rating: q.Rating,
		Status: q.Status,
		Query:  q.Q,
		Limit:  limit,
		Offset: q.Offset,
	})
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}

	items := make([]AdminSubmission, 0, len(page.Items))
	for _, s := range page.Items {
		items = append(items, AdminSubmission{
			ID:                 s.ID,
			Rating:             s.Rating,
			Status:             s.Status,
			CreatedAt:          s.CreatedAt,
			ReviewPreview:      utils.TruncateRunes(s.Review, reviewPreviewRunes),
			AdminSummary:       s.AdminSummary,
			RecommendedActions: s.RecommendedActions,
			ErrorMessage:       s.ErrorMessage,
		})
	}
	ok(c, http.StatusOK, AdminSubmissionList{Items: items, Total: page.Total, Limit: page.Limit, Offset: page.Offset})
}

// Analytics godoc
// @ID          adminAnalytics
// @Summary     Submission analytics
// @Description Counts by rating and status plus per-day counts for the last 7 UTC days.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.AnalyticsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/analytics [get]
func (h *Handlers) Analytics(c *gin.Context) {
	a, err := h.subs.Analytics(c.Request.Context())
	if err != nil {
		failErr(c, err, ErrCodeAnalyticsFailed)
		return
	}
	resp := AnalyticsResponse{
		CountsByRating:    make(map[string]int64, len(a.CountsByRating)),
		CountsByStatus:    make(map[string]int64, len(a.CountsByStatus)),
		SubmissionsPerDay: a.SubmissionsPerDay,
	}
	for r, n := range a.CountsByRating {
		resp.CountsByRating[strconv.Itoa(r)] = n
	}
	for st, n := range a.CountsByStatus {
		resp.CountsByStatus[string(st)] = n
	}
	ok(c, http.StatusOK, resp)
}
