package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/review-insights-backend/internal/domain"
	"github.com/tbourn/review-insights-backend/internal/services"
)

func init() { gin.SetMode(gin.TestMode) }

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return er
}

// ---------- stubs ----------

type stubSubs struct {
	CreateFn    func(ctx context.Context, rating int, review, key string) (*domain.Submission, bool, error)
	GetFn       func(ctx context.Context, id string) (*domain.Submission, error)
	ListFn      func(ctx context.Context, p services.ListParams) (*services.Page, error)
	AnalyticsFn func(ctx context.Context) (*services.Analytics, error)
}

func (s stubSubs) Create(ctx context.Context, rating int, review, key string) (*domain.Submission, bool, error) {
	if s.CreateFn == nil {
		return &domain.Submission{ID: "sub-1", Rating: rating, Review: review, Status: domain.StatusPending}, false, nil
	}
	return s.CreateFn(ctx, rating, review, key)
}

func (s stubSubs) Get(ctx context.Context, id string) (*domain.Submission, error) {
	if s.GetFn == nil {
		return nil, services.ErrSubmissionNotFound
	}
	return s.GetFn(ctx, id)
}

func (s stubSubs) List(ctx context.Context, p services.ListParams) (*services.Page, error) {
	if s.ListFn == nil {
		return &services.Page{Limit: p.Limit, Offset: p.Offset}, nil
	}
	return s.ListFn(ctx, p)
}

func (s stubSubs) Analytics(ctx context.Context) (*services.Analytics, error) {
	if s.AnalyticsFn == nil {
		return &services.Analytics{}, nil
	}
	return s.AnalyticsFn(ctx)
}

type stubAuth struct {
	LoginFn func(ctx context.Context, user, pass string) (*services.Token, error)
}

func (s stubAuth) Login(ctx context.Context, user, pass string) (*services.Token, error) {
	return s.LoginFn(ctx, user, pass)
}
