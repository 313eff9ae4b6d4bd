// Package middleware – Idempotency-Key
//
// IdempotencyKey validates the optional Idempotency-Key header on submission
// intake and stashes it for the handler. When a lookup is supplied and the
// key already maps to a stored submission, the request is marked as a replay
// so the rate limiter lets it through. The service layer is still the one that
// resolves the replay; this middleware only classifies the request.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	idemKeyKey    = "idem.key"
	idemReplayKey = "idem.replay"

	defaultIdemMaxLen = 200
)

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyLookup reports whether key is already bound to a live record.
// Errors are treated as "not a replay".
type IdempotencyLookup func(ctx context.Context, key string, now time.Time) (bool, error)

// IdempotencyOptions bounds accepted keys. Zero values select a 200-byte cap
// and a token-safe character set.
type IdempotencyOptions struct {
	MaxLen  int
	Pattern *regexp.Regexp
	Now     func() time.Time
}

// IdempotencyKey rejects malformed keys with 400 and otherwise passes the
// request on, annotated with the key and the replay flag.
func IdempotencyKey(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	if opts.MaxLen <= 0 {
		opts.MaxLen = defaultIdemMaxLen
	}
	if opts.Pattern == nil {
		opts.Pattern = defaultIdemPattern
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > opts.MaxLen || !opts.Pattern.MatchString(key) {
			abort(c, http.StatusBadRequest, "bad_request", "invalid Idempotency-Key header")
			return
		}
		c.Set(idemKeyKey, key)

		if lookup != nil {
			if found, err := lookup(c.Request.Context(), key, opts.Now().UTC()); err == nil && found {
				c.Set(idemReplayKey, true)
			} else if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			}
		}
		c.Next()
	}
}

// IdempotencyKeyFrom returns the validated key, if the request carried one.
func IdempotencyKeyFrom(c *gin.Context) (string, bool) {
	key, _ := c.Get(idemKeyKey)
	s, _ := key.(string)
	return s, s != ""
}

// IsReplay reports whether IdempotencyKey found an existing record for the key.
func IsReplay(c *gin.Context) bool {
	v, _ := c.Get(idemReplayKey)
	b, _ := v.(bool)
	return b
}
