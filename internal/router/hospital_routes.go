package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/carefinder-api/internal/handler"
	"github.com/iliyamo/carefinder-api/internal/middleware"
	"github.com/iliyamo/carefinder-api/internal/utils"
)

// RegisterHospitals registers /hospitals. Reads are public and only the list
// goes through the response cache. Every mutation needs an access token.
func RegisterHospitals(api *echo.Group, h *handler.HospitalHandler, tm *utils.TokenManager, cache echo.MiddlewareFunc) {
	g := api.Group("/hospitals")
	g.GET("", h.List, cache)
	g.GET("/:id", h.Get)

	guard := middleware.JWTAuth(tm)
	g.POST("", h.Create, guard)
	g.PUT("/:id", h.Put, guard)
	g.PATCH("/:id", h.Patch, guard)
	g.DELETE("/:id", h.Delete, guard)
}
