package auth

import (
	"time"

	"medqueue/internal/models"
)

// OutcomeKind names the result of a login security operation
type OutcomeKind string

const (
	OutcomeAuthenticated      OutcomeKind = "authenticated"
	OutcomeTwoFactorRequired  OutcomeKind = "two_factor_required"
	OutcomeInvalidCredentials OutcomeKind = "invalid_credentials"
	OutcomeAccountLocked      OutcomeKind = "account_locked"
	OutcomeInvalidUser        OutcomeKind = "invalid_user"
	OutcomeCodeSent           OutcomeKind = "code_sent"
	OutcomeResetRequested     OutcomeKind = "reset_requested"
)

// Outcome is the result of a credential or code check. Failed checks are
// outcomes rather than errors; errors are reserved for store failures.
type Outcome struct {
	Kind OutcomeKind
	// User is set once the account is known. It is nil for lookups that
	// must not reveal whether the account exists.
	User *models.User
	// AttemptsRemaining is meaningful for OutcomeInvalidCredentials with a known user
	AttemptsRemaining int
	// UnlockAt is set for OutcomeAccountLocked
	UnlockAt time.Time
	// MaskedEmail is where a code was sent
	MaskedEmail string
	// DevCode carries the code when delivery failed or development mode is on
	DevCode string
}
