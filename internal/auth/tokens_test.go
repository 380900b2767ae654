package auth

import (
	"testing"
	"time"

	"medqueue/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService("test_secret_key", time.Hour)
	user := &models.User{ID: uuid.New(), UserID: "USER0003", Role: models.RoleDoctor}

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.ID)
	assert.Equal(t, "USER0003", claims.UserID)
	assert.Equal(t, models.RoleDoctor, claims.Role)
}

func TestTokenService_Invalid(t *testing.T) {
	svc := NewTokenService("test_secret_key", time.Hour)
	user := &models.User{ID: uuid.New(), UserID: "USER0001", Role: models.RolePatient}

	expired := NewTokenService("test_secret_key", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.GenerateToken(user)
	require.NoError(t, err)

	otherSecret, err := NewTokenService("another_secret", time.Hour).GenerateToken(user)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": user.ID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"expired", expiredToken, ErrTokenExpired},
		{"wrong secret", otherSecret, ErrInvalidToken},
		{"unsigned", none, ErrInvalidToken},
		{"garbage", "not-a-token", ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthorize(t *testing.T) {
	patient := &models.User{Role: models.RolePatient}
	doctor := &models.User{Role: models.RoleDoctor}
	admin := &models.User{Role: models.RoleAdmin}

	assert.NoError(t, Authorize(doctor, models.RoleDoctor))
	assert.NoError(t, Authorize(admin, models.RoleDoctor))
	assert.ErrorIs(t, Authorize(patient, models.RoleDoctor), ErrForbidden)
	assert.ErrorIs(t, Authorize(nil, models.RolePatient), ErrForbidden)
	assert.ErrorIs(t, Authorize(doctor), ErrForbidden)
}
