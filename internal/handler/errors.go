package handler

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/carefinder-api/internal/apperror"
)

type errorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Error   any    `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// ErrorHandler renders every error as {error:{status, message, [error],
// [data]}}. Unknown errors become a 500 and are reported to Sentry; their
// text never reaches the client.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		body := toErrorBody(err)

		if body.Status >= http.StatusInternalServerError {
			if ae, ok := apperror.As(err); !ok || ae.Kind == apperror.KindInternal {
				sentry.CaptureException(err)
			}
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Error(err))
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(body.Status)
		} else {
			werr = c.JSON(body.Status, errorEnvelope{Error: body})
		}
		if werr != nil {
			log.Warn("write error response", zap.Error(werr))
		}
	}
}

func toErrorBody(err error) errorBody {
	if ae, ok := apperror.As(err); ok {
		return errorBody{Status: ae.Status, Message: ae.Message, Error: ae.Detail, Data: ae.Data}
	}

	if he, ok := err.(*echo.HTTPError); ok {
		switch he.Code {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			return errorBody{Status: http.StatusNotFound, Message: apperror.MsgInvalidRoute}
		}
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return errorBody{Status: he.Code, Message: msg}
	}

	return errorBody{Status: http.StatusInternalServerError, Message: apperror.MsgInternal}
}
