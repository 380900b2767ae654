// Package events publishes security events to the event stream
package events

import (
	"context"
	"time"
)

// Event types emitted by the login security state machine
const (
	TypeLoginSucceeded   = "login.succeeded"
	TypeAccountLocked    = "account.locked"
	TypePasswordReset    = "password.reset"
	TypeUserRegistered   = "user.registered"
	TypeTwoFactorChanged = "two_factor.changed"
)

// Event is a security-relevant state change
type Event struct {
	Type       string            `json:"type"`
	UserID     string            `json:"user_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Data       map[string]string `json:"data,omitempty"`
}

// Publisher sends events to a stream
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
