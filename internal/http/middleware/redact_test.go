package middleware

import (
	"net/http"
	"strings"
	"testing"
)

func TestRedactor_Scrub(t *testing.T) {
	r := NewRedactor()
	cases := map[string]string{
		"":                                          "",
		"q=hello":                                   "q=hello",
		"email=jane.doe@example.co.uk":              "email=[REDACTED:email]",
		"call 212-555-1212 now":                     "call [REDACTED:phone] now",
		"id=7d3c2a1e-1b2c-4d5e-8f90-123456789abc":   "id=[REDACTED:id]",
		"a=7d3c2a1e-1b2c-4d5e-8f90-123456789abc&b=x": "a=[REDACTED:id]&b=x",
	}
	for in, want := range cases {
		if got := r.Scrub(in); got != want {
			t.Fatalf("Scrub(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestRedactor_Headers(t *testing.T) {
	r := NewRedactor(" X-Admin-Key ", "")
	h := http.Header{}
	h.Set("Authorization", "Bearer abc")
	h.Set("Cookie", "session=1")
	h.Set("X-Admin-Key", "k")
	h.Add("X-Forwarded-For", "bob@example.com")
	h.Add("X-Forwarded-For", "10.0.0.1")

	got := r.Headers(h)
	for _, k := range []string{"Authorization", "Cookie", "X-Admin-Key"} {
		if got[k] != "[REDACTED]" {
			t.Fatalf("%s = %q", k, got[k])
		}
	}
	if xff := got["X-Forwarded-For"]; strings.Contains(xff, "bob@") || !strings.Contains(xff, ", ") {
		t.Fatalf("X-Forwarded-For = %q", xff)
	}
}
