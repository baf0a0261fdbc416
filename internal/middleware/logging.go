package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/carefinder-api/internal/apperror"
)

// RequestLogger writes one line per request. Bodies and headers are never
// logged since they carry passwords and tokens.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let the error handler write the response first so the
				// logged status is the one the client saw
				c.Error(err)
			}

			res := c.Response()
			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", res.Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
			}
			if u := CurrentUser(c); u != "" {
				fields = append(fields, zap.String("user", u))
			}
			if res.Status >= 500 {
				log.Error("http_request", fields...)
			} else {
				log.Info("http_request", fields...)
			}
			return nil
		}
	}
}

// Recover turns a panic into a 500 and reports it to Sentry together with
// the stack.
func Recover(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				stack := string(debug.Stack())
				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetExtra("panic", fmt.Sprint(rec))
					scope.SetExtra("stack", stack)
					scope.SetTag("path", c.Path())
					sentry.CaptureMessage("panic in request")
				})
				log.Error("panic_recovered",
					zap.String("method", c.Request().Method),
					zap.String("path", c.Request().URL.Path),
					zap.Any("panic", rec),
					zap.String("stack", stack))
				err = apperror.Internal(fmt.Errorf("panic: %v", rec))
			}()
			return next(c)
		}
	}
}
