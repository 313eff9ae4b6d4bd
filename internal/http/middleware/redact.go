package middleware

import (
	"net/http"
	"regexp"
	"strings"
)

var (
	// Order matters: ids first, then emails, then phones (the loosest pattern
	// would otherwise eat the digit groups of a UUID).
	idPattern    = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-8][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// Redactor scrubs identifiers and credentials from values that end up in
// access logs. Request and response bodies are never logged.
type Redactor struct {
	masked map[string]struct{}
}

// NewRedactor masks Authorization, Cookie, Set-Cookie and any extra headers.
func NewRedactor(extraHeaders ...string) *Redactor {
	r := &Redactor{masked: map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}}
	for _, h := range extraHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			r.masked[h] = struct{}{}
		}
	}
	return r
}

// Scrub replaces ids, emails and phone numbers in s with placeholders.
func (r *Redactor) Scrub(s string) string {
	if s == "" {
		return s
	}
	s = idPattern.ReplaceAllString(s, "[REDACTED:id]")
	s = emailPattern.ReplaceAllString(s, "[REDACTED:email]")
	return phonePattern.ReplaceAllString(s, "[REDACTED:phone]")
}

// Headers returns a loggable copy of h.
func (r *Redactor) Headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := r.masked[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = r.Scrub(strings.Join(vv, ", "))
	}
	return out
}
