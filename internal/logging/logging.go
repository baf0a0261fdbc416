// Package logging builds the process logger and the optional Sentry client.
package logging

import (
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// New returns a JSON production logger in prod and a console development
// logger everywhere else.
func New(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// InitSentry enables error reporting. An empty dsn leaves it off.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

// FlushSentry waits briefly for buffered events before exit.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
