package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/review-insights-backend/internal/http/middleware"
	"github.com/tbourn/review-insights-backend/internal/services"
)

func TestFail_EnvelopeAndServerErrorLog(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.AccessLog(middleware.AccessLogOptions{Base: &base}))
	r.GET("/boom", func(c *gin.Context) { fail(c, http.StatusInternalServerError, ErrCodeInternal, "kaboom") })
	r.GET("/missing", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "nope") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("X-Request-ID", "rid-500")
	w := do(r, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	if er := decodeErr(t, w); er.RequestID != "rid-500" || er.Code != ErrCodeInternal || er.Message != "kaboom" {
		t.Fatalf("unexpected body: %+v", er)
	}
	if !strings.Contains(buf.String(), `"message":"api error"`) {
		t.Fatalf("expected api error log, got %s", buf.String())
	}

	buf.Reset()
	w = do(r, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if w.Code != http.StatusNotFound || decodeErr(t, w).Code != ErrCodeNotFound {
		t.Fatalf("404 path: %d %s", w.Code, w.Body.String())
	}
	if strings.Contains(buf.String(), "api error") {
		t.Fatalf("4xx must not log as api error: %s", buf.String())
	}
}

func TestFailErr_Mapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&services.ValidationError{Field: "rating", Reason: "must be between 1 and 5"}, http.StatusUnprocessableEntity, ErrCodeValidation},
		{fmt.Errorf("wrapped: %w", services.ErrSubmissionNotFound), http.StatusNotFound, ErrCodeNotFound},
		{services.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized},
		{services.ErrInvalidToken, http.StatusUnauthorized, ErrCodeUnauthorized},
		{errors.New("db exploded"), http.StatusInternalServerError, "some_failed"},
	}
	for _, tc := range cases {
		r := gin.New()
		r.GET("/", func(c *gin.Context) { failErr(c, tc.err, "some_failed") })
		w := do(r, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != tc.status {
			t.Fatalf("%v: status %d; want %d", tc.err, w.Code, tc.status)
		}
		er := decodeErr(t, w)
		if er.Code != tc.code {
			t.Fatalf("%v: code %q; want %q", tc.err, er.Code, tc.code)
		}
		if tc.status == http.StatusInternalServerError && strings.Contains(er.Message, "exploded") {
			t.Fatalf("internal detail leaked: %q", er.Message)
		}
	}
}

func TestRootAndHealth(t *testing.T) {
	r := gin.New()
	r.GET("/", Root("/swagger/index.html"))
	r.GET("/bare", Root(""))
	r.GET("/health", Health)

	var body map[string]string
	w := do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["message"] != "Review Insights API" || body["version"] != Version || body["docs"] != "/swagger/index.html" {
		t.Fatalf("root body = %v", body)
	}

	body = nil
	w = do(r, httptest.NewRequest(http.MethodGet, "/bare", nil))
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if _, has := body["docs"]; has {
		t.Fatalf("docs link without swagger: %v", body)
	}

	w = do(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"status":"ok"}` {
		t.Fatalf("health = %d %s", w.Code, w.Body.String())
	}
}
