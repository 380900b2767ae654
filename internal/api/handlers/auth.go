package handlers

import (
	"errors"
	"net/http"

	"medqueue/internal/auth"
	"medqueue/internal/models"
	"medqueue/internal/ratelimit"
	"medqueue/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler exposes registration and the login security flows
type AuthHandler struct {
	service   *auth.Service
	registrar *auth.Registrar
	tokens    *auth.TokenService
	limiter   ratelimit.Limiter
	audit     auditWriter
	log       *zap.Logger
}

// NewAuthHandler creates a new authentication handler with the given dependencies
func NewAuthHandler(
	service *auth.Service,
	registrar *auth.Registrar,
	tokens *auth.TokenService,
	limiter ratelimit.Limiter,
	auditRepo repository.AuditLogRepository,
	log *zap.Logger,
) *AuthHandler {
	if limiter == nil {
		limiter = ratelimit.Nop{}
	}
	return &AuthHandler{
		service:   service,
		registrar: registrar,
		tokens:    tokens,
		limiter:   limiter,
		audit:     auditWriter{repo: auditRepo, log: log},
		log:       log,
	}
}

// Register godoc
// @Summary Register a new account
// @Description Creates an account with a patient or doctor profile. The first account becomes admin; creating admins requires an admin token.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.RegisterRequest true "Account details"
// @Success 201 {object} models.User
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 403 {object} models.ErrorResponse "Registration closed or admin required"
// @Failure 409 {object} models.ErrorResponse "Username or email taken"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	caller := auth.GetUserFromContext(c)
	user, err := h.registrar.Register(c.Request.Context(), req, caller)
	switch {
	case errors.Is(err, auth.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, auth.ErrRegistrationClosed), errors.Is(err, auth.ErrAdminRequired):
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, repository.ErrUsernameExists), errors.Is(err, repository.ErrEmailExists):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		internalError(c, h.log, "failed to register user", err)
		return
	}

	h.audit.record(c, userIDPtr(caller), models.AuditActionRegister, "user", user.ID.String(),
		"Account "+user.UserID+" registered", map[string]any{"role": user.Role})
	c.JSON(http.StatusCreated, user)
}

// Login godoc
// @Summary Log in with user id and password
// @Description Checks the password. Accounts with two-factor enabled receive an emailed code instead of a token.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.LoginResponse "Login successful"
// @Success 202 {object} models.TwoFactorChallengeResponse "Verification code sent"
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 401 {object} models.ErrorResponse "Invalid credentials"
// @Failure 423 {object} models.ErrorResponse "Account locked"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	out, err := h.service.AttemptLogin(c.Request.Context(), req.UserID, req.Password)
	if err != nil {
		internalError(c, h.log, "failed to process login", err)
		return
	}
	h.respond(c, out)
}

// VerifyTwoFactor godoc
// @Summary Submit the emailed login code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.VerifyTwoFactorRequest true "Verification code"
// @Success 200 {object} models.LoginResponse "Login successful"
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 401 {object} models.ErrorResponse "Invalid code or user"
// @Failure 423 {object} models.ErrorResponse "Account locked"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/verify-2fa [post]
func (h *AuthHandler) VerifyTwoFactor(c *gin.Context) {
	var req models.VerifyTwoFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	out, err := h.service.VerifyTwoFactor(c.Request.Context(), req.UserID, req.Code)
	if err != nil {
		internalError(c, h.log, "failed to verify code", err)
		return
	}
	h.respond(c, out)
}

// ResendCode godoc
// @Summary Send a fresh login code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.ResendCodeRequest true "Account"
// @Success 202 {object} models.TwoFactorChallengeResponse "Verification code sent"
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 401 {object} models.ErrorResponse "Invalid user"
// @Failure 423 {object} models.ErrorResponse "Account locked"
// @Failure 429 {object} models.ErrorResponse "Too many code requests"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/resend-code [post]
func (h *AuthHandler) ResendCode(c *gin.Context) {
	var req models.ResendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	if !h.allow(c, "resend", req.UserID) {
		return
	}

	out, err := h.service.ResendCode(c.Request.Context(), req.UserID)
	if err != nil {
		internalError(c, h.log, "failed to resend code", err)
		return
	}
	h.respond(c, out)
}

// ForgotPassword godoc
// @Summary Request a password reset code
// @Description Always answers with the same message whether or not the account exists.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.ForgotPasswordRequest true "Email or user id"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 429 {object} models.ErrorResponse "Too many code requests"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	if !h.allow(c, "forgot", req.Identifier) {
		return
	}

	out, err := h.service.RequestPasswordReset(c.Request.Context(), req.Identifier)
	if err != nil {
		internalError(c, h.log, "failed to process request", err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{
		Message: "if the account exists, a reset code has been sent",
		DevCode: out.DevCode,
	})
}

// VerifyResetCode godoc
// @Summary Check a password reset code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.VerifyResetCodeRequest true "Reset code"
// @Success 200 {object} models.VerifyResetCodeResponse
// @Failure 400 {object} models.ErrorResponse "Invalid or expired code"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/verify-reset-code [post]
func (h *AuthHandler) VerifyResetCode(c *gin.Context) {
	var req models.VerifyResetCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	user, err := h.service.VerifyResetCode(c.Request.Context(), req.Code)
	if errors.Is(err, auth.ErrInvalidOrExpiredCode) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		internalError(c, h.log, "failed to verify code", err)
		return
	}
	c.JSON(http.StatusOK, models.VerifyResetCodeResponse{Valid: true, UserID: user.UserID, Username: user.Username})
}

// ResetPassword godoc
// @Summary Set a new password with a reset code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.ResetPasswordRequest true "Reset code and new password"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse "Invalid code or weak password"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	err := h.service.ResetPassword(c.Request.Context(), req.Code, req.NewPassword)
	if errors.Is(err, auth.ErrInvalidOrExpiredCode) || errors.Is(err, auth.ErrWeakPassword) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		internalError(c, h.log, "failed to reset password", err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "password updated"})
}

// Me godoc
// @Summary Current account
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, auth.GetUserFromContext(c))
}

// SetTwoFactor godoc
// @Summary Turn two-factor login on or off
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.TwoFactorSettingRequest true "Setting"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/two-factor [put]
func (h *AuthHandler) SetTwoFactor(c *gin.Context) {
	var req models.TwoFactorSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	caller := auth.GetUserFromContext(c)
	user, err := h.service.SetTwoFactor(c.Request.Context(), caller.ID, *req.Enabled)
	if err != nil {
		internalError(c, h.log, "failed to update two-factor setting", err)
		return
	}

	h.audit.record(c, userIDPtr(caller), models.AuditActionUpdate, "user", user.ID.String(),
		"Two-factor setting changed", map[string]any{"enabled": *req.Enabled})
	c.JSON(http.StatusOK, user)
}

// allow applies the per-identifier code request throttle
func (h *AuthHandler) allow(c *gin.Context, scope, key string) bool {
	err := h.limiter.Allow(c.Request.Context(), scope, key)
	if errors.Is(err, ratelimit.ErrTooManyRequests) {
		c.JSON(http.StatusTooManyRequests, models.ErrorResponse{Error: "too many code requests, try again later"})
		return false
	}
	return true
}

// respond maps a login security outcome onto the HTTP response
func (h *AuthHandler) respond(c *gin.Context, out *auth.Outcome) {
	switch out.Kind {
	case auth.OutcomeAuthenticated:
		token, err := h.tokens.GenerateToken(out.User)
		if err != nil {
			internalError(c, h.log, "failed to generate access token", err)
			return
		}
		h.audit.record(c, userIDPtr(out.User), models.AuditActionLogin, "user", out.User.ID.String(),
			"User "+out.User.UserID+" logged in", nil)
		c.JSON(http.StatusOK, models.LoginResponse{AccessToken: token, User: out.User})

	case auth.OutcomeTwoFactorRequired, auth.OutcomeCodeSent:
		c.JSON(http.StatusAccepted, models.TwoFactorChallengeResponse{
			Message:     "verification code sent",
			UserID:      out.User.UserID,
			MaskedEmail: out.MaskedEmail,
			DevCode:     out.DevCode,
		})

	case auth.OutcomeInvalidCredentials:
		resp := models.ErrorResponse{Error: "invalid credentials"}
		if out.User != nil {
			remaining := out.AttemptsRemaining
			resp.AttemptsRemaining = &remaining
			h.audit.record(c, userIDPtr(out.User), models.AuditActionLoginFailed, "user", out.User.ID.String(),
				"Failed login check", map[string]any{"attempts_remaining": remaining})
		}
		c.JSON(http.StatusUnauthorized, resp)

	case auth.OutcomeAccountLocked:
		unlockAt := out.UnlockAt
		if out.User != nil {
			h.audit.record(c, userIDPtr(out.User), models.AuditActionAccountLocked, "user", out.User.ID.String(),
				"Rejected while locked", map[string]any{"locked_until": unlockAt})
		}
		c.JSON(http.StatusLocked, models.ErrorResponse{Error: "account locked", LockedUntil: &unlockAt})

	case auth.OutcomeInvalidUser:
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid user"})

	default:
		internalError(c, h.log, "unexpected login outcome", errors.New(string(out.Kind)))
	}
}
