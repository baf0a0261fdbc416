package middleware

import "github.com/labstack/echo/v4"

// UserKey is the context key JWTAuth stores the authenticated username
// under.
const UserKey = "user"

// CurrentUser returns the authenticated username, or "" when the request
// did not pass through JWTAuth.
func CurrentUser(c echo.Context) string {
	if s, ok := c.Get(UserKey).(string); ok {
		return s
	}
	return ""
}
