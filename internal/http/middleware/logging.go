// Package middleware contains the Gin middleware shared by every route.
//
// This file wires request correlation and access logging:
//   - RequestID reuses or mints X-Request-ID and stores it on the context.
//   - AccessLog attaches a request-scoped zerolog.Logger and emits one
//     scrubbed line per request, leveled by outcome.
//   - Recovery turns panics into the standard 500 envelope.
//
// Install them in that order so panics and errors carry the request id.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	// UserIDKey holds the authenticated admin subject (set by RequireAdmin).
	UserIDKey = "userID"

	maxLoggedQuery = 2048
)

// RequestID propagates the caller's X-Request-ID or generates a UUID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// AccessLogOptions configures AccessLog.
type AccessLogOptions struct {
	// Base is the parent logger; the zero value uses the global logger.
	Base *zerolog.Logger
	// Redactor scrubs the query string and headers. Nil disables header logging.
	Redactor *Redactor
}

// AccessLog emits one structured line per request: error for 5xx or gin
// errors, warn for 4xx, info otherwise. Handlers reach the request-scoped
// logger through LoggerFrom.
func AccessLog(opts AccessLogOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		base := log.Logger
		if opts.Base != nil {
			base = *opts.Base
		}

		query := c.Request.URL.RawQuery
		if len(query) > maxLoggedQuery {
			query = query[:maxLoggedQuery] + "…"
		}
		if opts.Redactor != nil {
			query = opts.Redactor.Scrub(query)
		}

		rid, _ := c.Get(requestIDKey)
		lg := base.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", route(c)).
			Str("remote_ip", c.ClientIP()).
			Logger()
		c.Set(loggerKey, &lg)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case len(c.Errors) > 0:
			ev = lg.Error().Str("errors", c.Errors.String())
		case status >= http.StatusInternalServerError:
			ev = lg.Error()
		case status >= http.StatusBadRequest:
			ev = lg.Warn()
		default:
			ev = lg.Info()
		}
		if uid, ok := c.Get(UserIDKey); ok {
			ev = ev.Str("user_id", asString(uid))
		}
		if opts.Redactor != nil {
			ev = ev.Interface("headers", opts.Redactor.Headers(c.Request.Header))
		}
		ev.Str("query", query).
			Int("status", status).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Msg("http_request")
	}
}

// Recovery logs the panic with its stack and answers 500 when nothing was
// written yet.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			abort(c, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// AccessLog did not run.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	lg := log.With().Logger()
	return &lg
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
