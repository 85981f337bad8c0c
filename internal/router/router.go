package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/openwifi/scan-server/internal/handler"
	"github.com/openwifi/scan-server/internal/middleware"
)

// RegisterRoutes registers the health probe used by load balancers.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
}

// RegisterScanResults mounts submission and sync.  Every route learns the
// calling client from X-Client-ID; only submission resolves the bearer token
// and is rate limited.
func RegisterScanResults(e *echo.Echo, h *handler.ScanResultHandler, auth, rateLimit echo.MiddlewareFunc) {
	g := e.Group("/api/scan-results", middleware.ClientIdentity())
	g.POST("/", h.Post, rateLimit, auth)
	g.GET("/:last_id/:limit/", h.Sync)
}

// RegisterInfo mounts the client-facing info and connectivity probe.
func RegisterInfo(e *echo.Echo, h *handler.InfoHandler) {
	e.GET("/api/info/", h.Info)
	e.GET("/api/check/", h.Check)
}

// RegisterStats mounts the statistics endpoints behind the response cache.
func RegisterStats(e *echo.Echo, h *handler.StatsHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/api/stats", cache)
	g.GET("/", h.All)
	g.GET("/:name/", h.One)
}
