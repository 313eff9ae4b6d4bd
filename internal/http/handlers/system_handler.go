package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Version is reported by the root endpoint; overridden at build time with
// -ldflags "-X .../handlers.Version=...".
var Version = "dev"

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// Root godoc
// @ID       root
// @Summary  Service banner
// @Tags     System
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   / [get]
func Root(docsPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"message": "Review Insights API", "version": Version}
		if docsPath != "" {
			body["docs"] = docsPath
		}
		ok(c, http.StatusOK, body)
	}
}

// Health godoc
// @ID       health
// @Summary  Liveness probe
// @Tags     System
// @Produce  json
// @Success  200  {object}  handlers.HealthResponse
// @Router   /health [get]
func Health(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{Status: "ok"})
}
