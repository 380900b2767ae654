package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the fixed access level of an account
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// User represents an account and its authentication state
type User struct {
	ID                      uuid.UUID  `json:"id"`
	UserID                  string     `json:"user_id" example:"USER0001"`
	Username                string     `json:"username"`
	Password                string     `json:"-"`
	Role                    Role       `json:"role"`
	Email                   string     `json:"email"`
	TwoFactorEnabled        bool       `json:"two_factor_enabled"`
	VerificationCode        *string    `json:"-"`
	VerificationCodeExpires *time.Time `json:"-"`
	FailedLoginAttempts     int        `json:"-"`
	LockedUntil             *time.Time `json:"locked_until,omitempty"`
	PasswordResetCode       *string    `json:"-"`
	PasswordResetExpires    *time.Time `json:"-"`
	LastLoginAt             *time.Time `json:"last_login_at"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// IsLocked reports whether the account is locked at the given instant
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// SetVerificationCode stores a pending code together with its expiry
func (u *User) SetVerificationCode(code string, expires time.Time) {
	u.VerificationCode = &code
	u.VerificationCodeExpires = &expires
}

// ClearVerificationCode drops the pending code and its expiry together
func (u *User) ClearVerificationCode() {
	u.VerificationCode = nil
	u.VerificationCodeExpires = nil
}

// SetResetCode stores a password reset code together with its expiry
func (u *User) SetResetCode(code string, expires time.Time) {
	u.PasswordResetCode = &code
	u.PasswordResetExpires = &expires
}

// ClearResetCode drops the reset code and its expiry together
func (u *User) ClearResetCode() {
	u.PasswordResetCode = nil
	u.PasswordResetExpires = nil
}

// IsAdmin returns true if the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// RegisterRequest represents the request to create a new account
type RegisterRequest struct {
	Username       string `json:"username" binding:"required,min=3,max=50,nospaces" example:"janedoe"`
	Password       string `json:"password" binding:"required,min=6,max=72" example:"secret1"`
	Email          string `json:"email" binding:"required,email" example:"jane@example.com"`
	Role           Role   `json:"role" binding:"omitempty,oneof=patient doctor admin" example:"patient"`
	Name           string `json:"name" binding:"omitempty,max=100" example:"Jane Doe"`
	Phone          string `json:"phone" binding:"omitempty,max=20"`
	Specialization string `json:"specialization" binding:"omitempty,max=100"`
}

// TwoFactorSettingRequest toggles two-factor login for the caller
type TwoFactorSettingRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}
