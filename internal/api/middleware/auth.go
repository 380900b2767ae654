package middleware

import (
	"errors"
	"net/http"
	"strings"

	"medqueue/internal/auth"
	"medqueue/internal/models"
	"medqueue/internal/repository"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	tokens *auth.TokenService
	users  repository.UserRepository
}

func NewAuthMiddleware(tokens *auth.TokenService, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		users:  users,
	}
}

var (
	errNoAuthHeader      = errors.New("no authorization header")
	errInvalidAuthHeader = errors.New("invalid authorization header")
	errUnknownUser       = errors.New("user not found")
)

// authenticate resolves the bearer token to the stored account
func (m *AuthMiddleware) authenticate(c *gin.Context) (*models.User, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, errNoAuthHeader
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errInvalidAuthHeader
	}

	claims, err := m.tokens.ValidateToken(parts[1])
	if err != nil {
		return nil, err
	}

	user, err := m.users.GetByID(c.Request.Context(), claims.ID)
	if err != nil {
		return nil, errUnknownUser
	}
	return user, nil
}

// AuthRequired rejects requests without a valid token and stores the user in the context
func (m *AuthMiddleware) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := m.authenticate(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: err.Error()})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// OptionalAuth stores the user when a valid token is present and lets
// anonymous requests through
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		user, err := m.authenticate(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: err.Error()})
			c.Abort()
			return
		}
		c.Set("user", user)
		c.Next()
	}
}

// RequireRoles lets through users holding one of the roles. Admins always pass.
// It must run after AuthRequired.
func (m *AuthMiddleware) RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.Authorize(auth.GetUserFromContext(c), roles...); err != nil {
			c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "insufficient permissions"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminRequired is RequireRoles with no extra roles
func (m *AuthMiddleware) AdminRequired() gin.HandlerFunc {
	return m.RequireRoles()
}
