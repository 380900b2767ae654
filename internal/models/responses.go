package models

import "time"

// LoginResponse is returned once login completes
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
}

// TwoFactorChallengeResponse is returned when a login code was issued
type TwoFactorChallengeResponse struct {
	Message     string `json:"message" example:"verification code sent"`
	UserID      string `json:"user_id" example:"USER0001"`
	MaskedEmail string `json:"masked_email" example:"j***@example.com"`
	DevCode     string `json:"dev_code,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error             string     `json:"error"`
	AttemptsRemaining *int       `json:"attempts_remaining,omitempty"`
	LockedUntil       *time.Time `json:"locked_until,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
	DevCode string `json:"dev_code,omitempty"`
}

// VerifyResetCodeResponse reports whether a reset code is live
type VerifyResetCodeResponse struct {
	Valid    bool   `json:"valid"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}
