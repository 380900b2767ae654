package models

// LoginRequest represents a login request keyed by the external user id
type LoginRequest struct {
	UserID   string `json:"user_id" binding:"required,max=50" example:"USER0001"`
	Password string `json:"password" binding:"required"`
}

// VerifyTwoFactorRequest carries the emailed login code
type VerifyTwoFactorRequest struct {
	UserID string `json:"user_id" binding:"required,max=50" example:"USER0001"`
	Code   string `json:"code" binding:"required,len=6,numeric" example:"004217"`
}

// ResendCodeRequest asks for a fresh login code
type ResendCodeRequest struct {
	UserID string `json:"user_id" binding:"required,max=50" example:"USER0001"`
}

// ForgotPasswordRequest starts the reset flow. Identifier is an email or external user id.
type ForgotPasswordRequest struct {
	Identifier string `json:"identifier" binding:"required,max=255" example:"jane@example.com"`
}

// VerifyResetCodeRequest checks a reset code without consuming it
type VerifyResetCodeRequest struct {
	Code string `json:"code" binding:"required,max=12"`
}

// ResetPasswordRequest completes the reset flow
type ResetPasswordRequest struct {
	Code        string `json:"code" binding:"required,max=12"`
	NewPassword string `json:"new_password" binding:"required,max=72"`
}
