// Package middleware – admin authentication
//
// RequireAdmin guards the admin routes with an HS256 bearer token issued by
// the login endpoint. Verification itself lives in the auth service; this
// middleware only parses the header and maps failures to 401.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenVerifier returns the subject of a valid token.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// RequireAdmin aborts with 401 unless the request carries
// "Authorization: Bearer <token>" that v accepts. The subject is stored
// under UserIDKey.
func RequireAdmin(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="admin"`)
			abort(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		sub, err := v.Verify(token)
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer realm="admin", error="invalid_token"`)
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		c.Set(UserIDKey, sub)
		c.Next()
	}
}

// bearerToken extracts the token from an Authorization header value. The
// scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
