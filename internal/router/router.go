package router // package router registers the HTTP routes of the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/carefinder-api/internal/handler"
	"github.com/iliyamo/carefinder-api/internal/middleware"
	"github.com/iliyamo/carefinder-api/internal/utils"
)

// RegisterRoutes registers the unversioned operational endpoints: the
// health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// API returns the group every resource lives under, /api/<version>.
func API(e *echo.Echo, version string) *echo.Group {
	return e.Group("/api/" + version)
}

// RegisterAuth registers /auth. Login and refresh are rate limited; logout
// only needs the refresh token in the body.
func RegisterAuth(api *echo.Group, a *handler.AuthHandler, tm *utils.TokenManager, limit echo.MiddlewareFunc) {
	g := api.Group("/auth")
	g.POST("/login", a.Login, limit)
	g.POST("/refresh", a.Refresh, limit)
	g.POST("/logout", a.Logout)
	g.GET("/me", a.Me, middleware.JWTAuth(tm))
}
