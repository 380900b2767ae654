package auth

import (
	"errors"
	"fmt"
	"time"

	"medqueue/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the fields carried by an access token
type Claims struct {
	ID     uuid.UUID
	UserID string
	Role   models.Role
}

// TokenService mints and validates access tokens
type TokenService struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

// NewTokenService creates a token service signing with the given secret
func NewTokenService(secret string, expiration time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		expiration: expiration,
		now:        time.Now,
	}
}

// GenerateToken generates a new JWT token
func (s *TokenService) GenerateToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":     user.ID.String(),
		"user_id": user.UserID,
		"role":    string(user.Role),
		"exp":     s.now().Add(s.expiration).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken validates a JWT token and returns the claims
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	sub, _ := mapClaims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	userID, _ := mapClaims["user_id"].(string)
	role, _ := mapClaims["role"].(string)

	return &Claims{ID: id, UserID: userID, Role: models.Role(role)}, nil
}
