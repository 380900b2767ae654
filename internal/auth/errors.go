package auth

import "errors"

var (
	// ErrInvalidToken indicates the token is invalid
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidOrExpiredCode is returned when no account holds a live reset code
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	// ErrWeakPassword is returned when a new password is too short
	ErrWeakPassword = errors.New("password does not meet the minimum length")

	// ErrForbidden is returned by Authorize when the caller's role is not allowed
	ErrForbidden = errors.New("forbidden")

	ErrRegistrationClosed = errors.New("registration is disabled")
	ErrAdminRequired      = errors.New("only an admin can create admin accounts")
)
