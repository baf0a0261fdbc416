package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/carefinder-api/internal/handler"
	"github.com/iliyamo/carefinder-api/internal/middleware"
	"github.com/iliyamo/carefinder-api/internal/utils"
)

// RegisterUsers registers /users. Registration and reads are public;
// replace, modify and delete need an access token.
func RegisterUsers(api *echo.Group, u *handler.UserHandler, tm *utils.TokenManager) {
	g := api.Group("/users")
	g.POST("", u.Create)
	g.GET("", u.Read)

	guard := middleware.JWTAuth(tm)
	g.PUT("", u.Replace, guard)
	g.PATCH("", u.Modify, guard)
	g.DELETE("", u.Delete, guard)
}
