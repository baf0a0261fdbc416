// Package queue carries auth events from the API to the auditor over
// RabbitMQ.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// AuthEventsQueue is the durable queue both sides declare.
const AuthEventsQueue = "auth.events"

// Event types published by the auth flows.
const (
	EventLoginSucceeded = "login.succeeded"
	EventLoginFailed    = "login.failed"
	EventRefreshIssued  = "refresh.issued"
	EventRefreshRevoked = "refresh.revoked"
	EventLogout         = "logout"
)

// AuthEvent is one audit record. Reason is set on failures and revocations.
// It never contains passwords or token values.
type AuthEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Username   string    `json:"username"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewAuthEvent stamps an event with a fresh id and the current time.
func NewAuthEvent(typ, username, reason string) AuthEvent {
	return AuthEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		Username:   username,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
