package postgres_test

import (
	"context"
	"testing"
	"time"

	"medqueue/internal/models"
	"medqueue/internal/repository"
	"medqueue/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	first := r.user(t, "alice", models.RoleAdmin)
	assert.Equal(t, "USER0001", first.UserID)
	second := r.user(t, "bob", models.RolePatient)
	assert.Equal(t, "USER0002", second.UserID)

	tests := []struct {
		name    string
		input   models.User
		wantErr error
	}{
		{
			name:    "duplicate username",
			input:   models.User{Username: "alice", Password: "hash", Email: "other@example.com"},
			wantErr: repository.ErrUsernameExists,
		},
		{
			name:    "duplicate email ignores case",
			input:   models.User{Username: "carol", Password: "hash", Email: "ALICE@example.com"},
			wantErr: repository.ErrEmailExists,
		},
		{
			name:  "role defaults to patient",
			input: models.User{Username: "dave", Password: "hash", Email: "dave@example.com"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.users.Create(ctx, &tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.RolePatient, tt.input.Role)
		})
	}

	count, err := r.users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// failed inserts may burn sequence values, ids stay well-formed and unique
	eve := r.user(t, "eve", models.RolePatient)
	assert.Regexp(t, `^USER\d{4}$`, eve.UserID)
	assert.NotEqual(t, second.UserID, eve.UserID)
}

func TestUserRepository_Lookups(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	u := r.user(t, "alice", models.RolePatient)

	tests := []struct {
		name   string
		lookup func() (*models.User, error)
	}{
		{name: "by id", lookup: func() (*models.User, error) { return r.users.GetByID(ctx, u.ID) }},
		{name: "by user id", lookup: func() (*models.User, error) { return r.users.GetByUserID(ctx, " "+u.UserID+" ") }},
		{name: "by username", lookup: func() (*models.User, error) { return r.users.GetByUsername(ctx, "alice") }},
		{name: "by email", lookup: func() (*models.User, error) { return r.users.GetByEmail(ctx, "Alice@Example.com") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.lookup()
			require.NoError(t, err)
			assert.Equal(t, u.ID, got.ID)
			assert.Equal(t, "alice@example.com", got.Email)
		})
	}

	_, err := r.users.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserRepository_UpdateCredentials(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	u := r.user(t, "alice", models.RolePatient)

	now := time.Now().UTC().Truncate(time.Microsecond)
	code := "12345678"
	locked := now.Add(30 * time.Minute)
	u.FailedLoginAttempts = 5
	u.LockedUntil = &locked
	u.PasswordResetCode = testutil.String(code)
	u.PasswordResetExpires = testutil.Time(now.Add(time.Hour))
	u.TwoFactorEnabled = true

	err := r.users.Transaction(ctx, func(ctx context.Context) error {
		if _, err := r.users.LockByID(ctx, u.ID); err != nil {
			return err
		}
		return r.users.UpdateCredentials(ctx, u)
	})
	require.NoError(t, err)

	got, err := r.users.GetByResetCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, 5, got.FailedLoginAttempts)
	assert.True(t, got.TwoFactorEnabled)
	require.NotNil(t, got.LockedUntil)
	assert.True(t, locked.Equal(*got.LockedUntil))
	assert.True(t, got.IsLocked(now))

	missing := *u
	missing.ID = uuid.New()
	assert.ErrorIs(t, r.users.UpdateCredentials(ctx, &missing), repository.ErrUserNotFound)
}

func TestUserRepository_PurgeExpiredCodes(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := r.user(t, "stale", models.RolePatient)
	stale.VerificationCode = testutil.String("123456")
	stale.VerificationCodeExpires = testutil.Time(now.Add(-time.Minute))
	require.NoError(t, r.users.UpdateCredentials(ctx, stale))

	fresh := r.user(t, "fresh", models.RolePatient)
	freshCode := "654321"
	fresh.VerificationCode = testutil.String(freshCode)
	fresh.VerificationCodeExpires = testutil.Time(now.Add(time.Minute))
	require.NoError(t, r.users.UpdateCredentials(ctx, fresh))

	n, err := r.users.PurgeExpiredCodes(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := r.users.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Nil(t, got.VerificationCode)

	got, err = r.users.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.NotNil(t, got.VerificationCode)
	assert.Equal(t, freshCode, *got.VerificationCode)
}
