package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type idemSeen struct {
	key    string
	hasKey bool
	replay bool
}

func idemRouter(opts IdempotencyOptions, lookup IdempotencyLookup, seen *idemSeen) *gin.Engine {
	r := gin.New()
	r.Use(IdempotencyKey(opts, lookup))
	r.POST("/submissions", func(c *gin.Context) {
		seen.key, seen.hasKey = IdempotencyKeyFrom(c)
		seen.replay = IsReplay(c)
		c.Status(http.StatusCreated)
	})
	return r
}

func postWithKey(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/submissions", nil)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	return req
}

func TestIdempotencyKey_AbsentHeader(t *testing.T) {
	called := false
	var seen idemSeen
	r := idemRouter(IdempotencyOptions{}, func(context.Context, string, time.Time) (bool, error) {
		called = true
		return true, nil
	}, &seen)

	if w := serve(r, postWithKey("")); w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	if called || seen.hasKey || seen.replay {
		t.Fatalf("no-header request annotated: called=%v seen=%+v", called, seen)
	}
}

func TestIdempotencyKey_Invalid(t *testing.T) {
	var seen idemSeen
	r := idemRouter(IdempotencyOptions{MaxLen: 10}, nil, &seen)
	for _, key := range []string{"has space", "semi;colon", strings.Repeat("a", 11)} {
		w := serve(r, postWithKey(key))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("key %q: status %d", key, w.Code)
		}
		if e := decodeEnvelope(t, w); e.Code != "bad_request" {
			t.Fatalf("envelope = %+v", e)
		}
	}
}

func TestIdempotencyKey_LookupMarksReplay(t *testing.T) {
	fixed := time.Date(2025, 5, 1, 10, 0, 0, 0, time.FixedZone("X", 3600))
	var gotKey string
	var gotNow time.Time
	lookup := func(_ context.Context, key string, now time.Time) (bool, error) {
		gotKey, gotNow = key, now
		return key == "seen-1", nil
	}
	var seen idemSeen
	r := idemRouter(IdempotencyOptions{Now: func() time.Time { return fixed }}, lookup, &seen)

	serve(r, postWithKey(" seen-1 "))
	if gotKey != "seen-1" || !gotNow.Equal(fixed) || gotNow.Location() != time.UTC {
		t.Fatalf("lookup got (%q, %v)", gotKey, gotNow)
	}
	if !seen.hasKey || seen.key != "seen-1" || !seen.replay {
		t.Fatalf("seen = %+v", seen)
	}

	serve(r, postWithKey("new-2"))
	if seen.key != "new-2" || seen.replay {
		t.Fatalf("fresh key marked as replay: %+v", seen)
	}
}

func TestIdempotencyKey_LookupErrorIsNotReplay(t *testing.T) {
	var seen idemSeen
	r := idemRouter(IdempotencyOptions{Pattern: regexp.MustCompile(`^[a-z]+$`)},
		func(context.Context, string, time.Time) (bool, error) { return true, errors.New("db down") }, &seen)

	if w := serve(r, postWithKey("abc")); w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	if seen.replay || seen.key != "abc" {
		t.Fatalf("seen = %+v", seen)
	}
}
