// Package testutil provides utilities for testing
package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"medqueue/internal/auth"
	"medqueue/internal/events"
	"medqueue/internal/models"
	"medqueue/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var setupOnce sync.Once

// SetupGin puts gin in test mode and registers the custom validators once per binary
func SetupGin() {
	setupOnce.Do(func() {
		gin.SetMode(gin.TestMode)
		validation.Initialize()
	})
}

// ErrMailDown is returned by a MockMailer with Fail set
var ErrMailDown = errors.New("smtp unavailable")

// SentMail is one message recorded by MockMailer
type SentMail struct {
	Template string
	To       string
	Username string
	Code     string
	UnlockAt time.Time
}

// MockMailer records emails instead of sending them
type MockMailer struct {
	mu   sync.Mutex
	Fail bool
	Sent []SentMail
}

func (m *MockMailer) record(mail SentMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return ErrMailDown
	}
	m.Sent = append(m.Sent, mail)
	return nil
}

func (m *MockMailer) SendVerificationCode(_ context.Context, to, username, code string, _ time.Duration) error {
	return m.record(SentMail{Template: "verification_code", To: to, Username: username, Code: code})
}

func (m *MockMailer) SendAccountLocked(_ context.Context, to, username string, unlockAt time.Time) error {
	return m.record(SentMail{Template: "account_locked", To: to, Username: username, UnlockAt: unlockAt})
}

func (m *MockMailer) SendPasswordResetCode(_ context.Context, to, username, code string, _ time.Duration) error {
	return m.record(SentMail{Template: "password_reset", To: to, Username: username, Code: code})
}

// Last returns the most recent message, or false when nothing was sent
func (m *MockMailer) Last() (SentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return SentMail{}, false
	}
	return m.Sent[len(m.Sent)-1], true
}

// Count returns how many messages used the template
func (m *MockMailer) Count(template string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.Sent {
		if s.Template == template {
			n++
		}
	}
	return n
}

// InlineDispatcher runs jobs synchronously and keeps their errors
type InlineDispatcher struct {
	mu     sync.Mutex
	Jobs   []string
	Errors []error
}

func (d *InlineDispatcher) Dispatch(name string, job func(ctx context.Context) error) {
	err := job(context.Background())
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Jobs = append(d.Jobs, name)
	if err != nil {
		d.Errors = append(d.Errors, err)
	}
}

// RecordingPublisher keeps published events in memory
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []events.Event
}

func (p *RecordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, event)
	return nil
}

func (p *RecordingPublisher) Close() error { return nil }

// Types lists the published event types in order
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Events))
	for i, e := range p.Events {
		out[i] = e.Type
	}
	return out
}

// Clock is a manually advanced time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock stopped at t
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// CreateUser stores an account with a hashed password directly in the store
func CreateUser(t *testing.T, store *MemoryStore, username, password string, role models.Role, twoFactor bool) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err, "Failed to hash password")

	user := &models.User{
		Username:         username,
		Password:         hash,
		Role:             role,
		Email:            username + "@example.com",
		TwoFactorEnabled: twoFactor,
	}
	require.NoError(t, store.Users().Create(context.Background(), user), "Failed to create test user")
	return user
}

// CreateDoctor stores a doctor profile
func CreateDoctor(t *testing.T, store *MemoryStore, name string, owner *models.User) *models.Doctor {
	t.Helper()
	doctor := &models.Doctor{Name: name, Specialization: "General"}
	if owner != nil {
		doctor.UserID = &owner.ID
	}
	require.NoError(t, store.Doctors().Create(context.Background(), doctor), "Failed to create test doctor")
	return doctor
}

// CreatePatient stores a patient profile
func CreatePatient(t *testing.T, store *MemoryStore, name string, owner *models.User) *models.Patient {
	t.Helper()
	patient := &models.Patient{Name: name}
	if owner != nil {
		patient.UserID = &owner.ID
	}
	require.NoError(t, store.Patients().Create(context.Background(), patient), "Failed to create test patient")
	return patient
}
