package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRoot_DocsLinkOnlyWhenEnabled(t *testing.T) {
	for _, docs := range []string{"", "/swagger/index.html"} {
		r := gin.New()
		r.GET("/", Root(docs))
		w := do(r, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["message"] != "Review Insights API" || body["version"] != Version {
			t.Fatalf("body = %v", body)
		}
		if _, has := body["docs"]; has != (docs != "") || body["docs"] != docs {
			t.Fatalf("docs=%q: body = %v", docs, body)
		}
	}
}

func TestHealth(t *testing.T) {
	r := gin.New()
	r.GET("/health", Health)
	w := do(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || w.Body.String() != `{"status":"ok"}` {
		t.Fatalf("health = %d %s", w.Code, w.Body.String())
	}
}
