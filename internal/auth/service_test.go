package auth_test

import (
	"context"
	"testing"
	"time"

	"medqueue/internal/auth"
	"medqueue/internal/events"
	"medqueue/internal/models"
	"medqueue/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const password = "correct-horse"

type fixture struct {
	store     *testutil.MemoryStore
	mailer    *testutil.MockMailer
	publisher *testutil.RecordingPublisher
	clock     *testutil.Clock
	service   *auth.Service
}

func newFixture(t *testing.T, opts ...func(*auth.Settings)) *fixture {
	t.Helper()
	settings := auth.DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	f := &fixture{
		store:     testutil.NewMemoryStore(),
		mailer:    &testutil.MockMailer{},
		publisher: &testutil.RecordingPublisher{},
		clock:     testutil.NewClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	f.service = auth.NewService(
		f.store.Users(),
		f.mailer,
		&testutil.InlineDispatcher{},
		f.publisher,
		settings,
		zap.NewNop(),
		auth.WithClock(f.clock.Now),
	)
	return f
}

func (f *fixture) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.store.Users().GetByUserID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func TestAttemptLogin_TwoFactorDisabled(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.store, "alice", password, models.RolePatient, false)
	ctx := context.Background()

	out, err := f.service.AttemptLogin(ctx, u.UserID, password)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeAuthenticated, out.Kind)
	require.NotNil(t, out.User)

	stored := f.user(t, u.UserID)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
	require.NotNil(t, stored.LastLoginAt)
	assert.Equal(t, f.clock.Now(), *stored.LastLoginAt)
	assert.Contains(t, f.publisher.Types(), events.TypeLoginSucceeded)
}

func TestAttemptLogin_UnknownUser(t *testing.T) {
	f := newFixture(t)

	out, err := f.service.AttemptLogin(context.Background(), "USER9999", password)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeInvalidCredentials, out.Kind)
	assert.Nil(t, out.User)
}

func TestTwoFactorFlow(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.store, "bob", password, models.RolePatient, true)
	ctx := context.Background()

	out, err := f.service.AttemptLogin(ctx, u.UserID, password)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeTwoFactorRequired, out.Kind)
	assert.Equal(t, "b***@example.com", out.MaskedEmail)
	assert.Empty(t, out.DevCode, "code must not leak when email was delivered")

	mail, ok := f.mailer.Last()
	require.True(t, ok)
	assert.Equal(t, "verification_code", mail.Template)
	assert.Len(t, mail.Code, 6)

	stored := f.user(t, u.UserID)
	require.NotNil(t, stored.VerificationCode)
	require.NotNil(t, stored.VerificationCodeExpires)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), *stored.VerificationCodeExpires)

	out, err = f.service.VerifyTwoFactor(ctx, u.UserID, mail.Code)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeAuthenticated, out.Kind)

	stored = f.user(t, u.UserID)
	assert.Nil(t, stored.VerificationCode)
	assert.Nil(t, stored.VerificationCodeExpires)
	assert.NotNil(t, stored.LastLoginAt)

	// the code is single use
	out, err = f.service.VerifyTwoFactor(ctx, u.UserID, mail.Code)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeInvalidCredentials, out.Kind)
	assert.Equal(t, 4, out.AttemptsRemaining)
}

func TestVerifyTwoFactor_AcceptsInternalID(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.store, "carol", password, models.RolePatient, true)
	ctx := context.Background()

	_, err := f.service.AttemptLogin(ctx, u.UserID, password)
	require.NoError(t, err)
	mail, _ := f.mailer.Last()

	out, err := f.service.VerifyTwoFactor(ctx, u.ID.String(), mail.Code)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeAuthenticated, out.Kind)
}

func TestVerifyTwoFactor_UnknownUser(t *testing.T) {
	f := newFixture(t)

	out, err := f.service.VerifyTwoFactor(context.Background(), "USER4242", "123456")
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeInvalidUser, out.Kind)
}

func TestVerifyTwoFactor_ComparesAsStrings(t *testing.T) {
	f := newFixture(t)
	f.service = auth.NewService(
		f.store.Users(), f.mailer, &testutil.InlineDispatcher{}, f.publisher,
		auth.DefaultSettings(), zap.NewNop(),
		auth.WithClock(f.clock.Now),
		auth.WithCodeGenerator(func(n int) (string, error) { return "007123", nil }),
	)
	u := testutil.CreateUser(t, f.store, "dave", password, models.RolePatient, true)
	ctx := context.Background()

	_, err := f.service.AttemptLogin(ctx, u.UserID, password)
	require.NoError(t, err)

	out, err := f.service.VerifyTwoFactor(ctx, u.UserID, "7123")
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeInvalidCredentials, out.Kind)

	out, err = f.service.VerifyTwoFactor(ctx, u.UserID, "007123")
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeAuthenticated, out.Kind)
}

func TestVerifyTwoFactor_ExpiredCodeCountsAsFailure(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.store, "erin", password, models.RolePatient, true)
	ctx := context.Background()

	_, err := f.service.AttemptLogin(ctx, u.UserID, password)
	require.NoError(t, err)
	mail, _ := f.mailer.Last()

	f.clock.Advance(10*time.Minute + time.Second)

	out, err := f.service.VerifyTwoFactor(ctx, u.UserID, mail.Code)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeInvalidCredentials, out.Kind)
	assert.Equal(t, 1, f.user(t, u.UserID).FailedLoginAttempts)
}

func TestLockout(t *testing.T) {
	tests := []struct {
		name string
		fail func(f *fixture, u *models.User) (*auth.Outcome, error)
	}{
		{
			name: "wrong passwords",
			fail: func(f *fixture, u *models.User) (*auth.Outcome, error) {
				return f.service.AttemptLogin(context.Background(), u.UserID, "wrong")
			},
		},
		{
			name: "wrong codes",
			fail: func(f *fixture, u *models.User) (*auth.Outcome, error) {
				return f.service.VerifyTwoFactor(context.Background(), u.UserID, "000000")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			u := testutil.CreateUser(t, f.store, "frank", password, models.RolePatient, false)
			ctx := context.Background()

			for i := 1; i <= 4; i++ {
				out, err := tt.fail(f, u)
				require.NoError(t, err)
				assert.Equal(t, auth.OutcomeInvalidCredentials, out.Kind)
				assert.Equal(t, 5-i, out.AttemptsRemaining)
			}

			out, err := tt.fail(f, u)
			require.NoError(t, err)
			assert.Equal(t, auth.OutcomeAccountLocked, out.Kind)
			assert.Equal(t, f.clock.Now().Add(30*time.Minute), out.UnlockAt)
			assert.Equal(t, 1, f.mailer.Count("account_locked"))
			assert.Contains(t, f.publisher.Types(), events.TypeAccountLocked)

			// the correct password is not even checked while locked
			out, err = f.service.AttemptLogin(ctx, u.UserID, password)
			require.NoError(t, err)
			assert.Equal(t, auth.OutcomeAccountLocked, out.Kind)
			assert.Equal(t, 1, f.mailer.Count("account_locked"))

			f.clock.Advance(30 * time.Minute)

			out, err = f.service.AttemptLogin(ctx, u.UserID, password)
			require.NoError(t, err)
			assert.Equal(t, auth.OutcomeAuthenticated, out.Kind)

			stored := f.user(t, u.UserID)
			assert.Equal(t, 0, stored.FailedLoginAttempts)
			assert.Nil(t, stored.LockedUntil)
		})
	}
}

func TestLockout_ExpiredLockStartsFreshCount(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.store, "gina", password, models.RolePatient, false)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.service.AttemptLogin(ctx, u.UserID, "wrong")
		require.NoError(t, err)
	}
	f.clock.Advance(31 * time.Minute)

	out, err := f.service.AttemptLogin(ctx, u.UserID, "wrong")
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeInvalidCredentials, out.Kind)
	assert.Equal(t, 4, out.AttemptsRemaining)
}

func TestLockout_MailFailureKeepsLock(t *testing.T) {
	f := newFixture(t)
	f.mailer.Fail = true
	u := testutil.CreateUser(t, f.store, "hank", password, models.RolePatient, false)

	var out *auth.Outcome
	var err error
	for i := 0; i < 5; i++ {
		out, err = f.service.AttemptLogin(context.Background(), u.UserID, "wrong")
		require.NoError(t, err)
	}
	assert.Equal(t, auth.OutcomeAccountLocked, out.Kind)
	assert.NotNil(t, f.user(t, u.UserID).LockedUntil)
}

func TestAttemptLogin_MailFailureReturnsCode(t *testing.T) {
	f := newFixture(t)
	f.mailer.Fail = true
	u := testutil.CreateUser(t, f.store, "iris", password, models.RolePatient, true)

	out, err := f.service.AttemptLogin(context.Background(), u.UserID, password)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeTwoFactorRequired, out.Kind)
	require.Len(t, out.DevCode, 6)

	stored := f.user(t, u.UserID)
	require.NotNil(t, stored.VerificationCode)
	assert.Equal(t, *stored.VerificationCode, out.DevCode)
}

func TestAttemptLogin_DevelopmentModeReturnsCode(t *testing.T) {
	f := newFixture(t, func(s *auth.Settings) { s.DevelopmentMode = true })
	u := testutil.CreateUser(t, f.store, "jack", password, models.RolePatient, true)

	out, err := f.service.AttemptLogin(context.Background(), u.UserID, password)
	require.NoError(t, err)
	mail, _ := f.mailer.Last()
	assert.Equal(t, mail.Code, out.DevCode)
}

func TestResendCode(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.store, "kate", password, models.RolePatient, true)
	ctx := context.Background()

	_, err := f.service.AttemptLogin(ctx, u.UserID, password)
	require.NoError(t, err)
	first, _ := f.mailer.Last()

	out, err := f.service.ResendCode(ctx, u.UserID)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeCodeSent, out.Kind)
	second, _ := f.mailer.Last()
	assert.Equal(t, 2, f.mailer.Count("verification_code"))

	if first.Code != second.Code {
		out, err = f.service.VerifyTwoFactor(ctx, u.UserID, first.Code)
		require.NoError(t, err)
		assert.Equal(t, auth.OutcomeInvalidCredentials, out.Kind, "old code is invalidated")
	}

	out, err = f.service.VerifyTwoFactor(ctx, u.UserID, second.Code)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeAuthenticated, out.Kind)
}

func TestResendCode_Locked(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.store, "liam", password, models.RolePatient, true)
	ctx := context.Background()

	_, err := f.service.AttemptLogin(ctx, u.UserID, password)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = f.service.VerifyTwoFactor(ctx, u.UserID, "999999x")
		require.NoError(t, err)
	}

	out, err := f.service.ResendCode(ctx, u.UserID)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeAccountLocked, out.Kind)

	out, err = f.service.ResendCode(ctx, "USER0404")
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeInvalidUser, out.Kind)
}

func TestResendCode_RequiresPendingChallenge(t *testing.T) {
	tests := []struct {
		name      string
		twoFactor bool
	}{
		{name: "two-factor account before the password step", twoFactor: true},
		{name: "account without two-factor", twoFactor: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.mailer.Fail = true
			u := testutil.CreateUser(t, f.store, "nora", password, models.RolePatient, tt.twoFactor)
			ctx := context.Background()

			out, err := f.service.ResendCode(ctx, u.UserID)
			require.NoError(t, err)
			assert.Equal(t, auth.OutcomeInvalidUser, out.Kind)
			assert.Empty(t, out.DevCode)
			assert.Nil(t, f.user(t, u.UserID).VerificationCode)

			out, err = f.service.VerifyTwoFactor(ctx, u.UserID, "123456")
			require.NoError(t, err)
			assert.NotEqual(t, auth.OutcomeAuthenticated, out.Kind)
		})
	}
}

func TestAttemptLogin_UnknownUserStillComparesPassword(t *testing.T) {
	store := testutil.NewMemoryStore()
	var hashes []string
	service := auth.NewService(
		store.Users(),
		&testutil.MockMailer{},
		&testutil.InlineDispatcher{},
		&testutil.RecordingPublisher{},
		auth.DefaultSettings(),
		zap.NewNop(),
		auth.WithPasswordComparer(func(hash, pw string) error {
			hashes = append(hashes, hash)
			return auth.ComparePassword(hash, pw)
		}),
	)

	out, err := service.AttemptLogin(context.Background(), "USER9999", password)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeInvalidCredentials, out.Kind)
	require.Len(t, hashes, 1)
	assert.NotEmpty(t, hashes[0])
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.store, "mona", password, models.RolePatient, false)
	ctx := context.Background()

	known, err := f.service.RequestPasswordReset(ctx, "mona@example.com")
	require.NoError(t, err)
	unknown, err := f.service.RequestPasswordReset(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, unknown.Kind, known.Kind)
	assert.Equal(t, auth.OutcomeResetRequested, known.Kind)
	assert.Empty(t, known.DevCode)
	assert.Empty(t, unknown.DevCode)

	mail, ok := f.mailer.Last()
	require.True(t, ok)
	assert.Equal(t, "password_reset", mail.Template)
	assert.Len(t, mail.Code, 8)

	stored := f.user(t, u.UserID)
	require.NotNil(t, stored.PasswordResetExpires)
	assert.Equal(t, f.clock.Now().Add(time.Hour), *stored.PasswordResetExpires)

	verified, err := f.service.VerifyResetCode(ctx, mail.Code)
	require.NoError(t, err)
	assert.Equal(t, u.ID, verified.ID)

	err = f.service.ResetPassword(ctx, mail.Code, "short")
	assert.ErrorIs(t, err, auth.ErrWeakPassword)

	require.NoError(t, f.service.ResetPassword(ctx, mail.Code, "new-password"))

	stored = f.user(t, u.UserID)
	assert.Nil(t, stored.PasswordResetCode)
	assert.Nil(t, stored.PasswordResetExpires)
	assert.NoError(t, auth.ComparePassword(stored.Password, "new-password"))

	err = f.service.ResetPassword(ctx, mail.Code, "another-password")
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredCode)
	assert.Contains(t, f.publisher.Types(), events.TypePasswordReset)
}

func TestPasswordReset_ByUserID(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.store, "nina", password, models.RolePatient, false)

	_, err := f.service.RequestPasswordReset(context.Background(), u.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.mailer.Count("password_reset"))
}

func TestResetPassword_ExpiredCode(t *testing.T) {
	f := newFixture(t)
	testutil.CreateUser(t, f.store, "omar", password, models.RolePatient, false)
	ctx := context.Background()

	_, err := f.service.RequestPasswordReset(ctx, "omar@example.com")
	require.NoError(t, err)
	mail, _ := f.mailer.Last()

	f.clock.Advance(time.Hour + time.Minute)

	_, err = f.service.VerifyResetCode(ctx, mail.Code)
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredCode)
	err = f.service.ResetPassword(ctx, mail.Code, "new-password")
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredCode)
	err = f.service.ResetPassword(ctx, "12345678", "new-password")
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredCode)
}

func TestResetPassword_LeavesLockInPlace(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.store, "pia", password, models.RolePatient, false)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.service.AttemptLogin(ctx, u.UserID, "wrong")
		require.NoError(t, err)
	}
	_, err := f.service.RequestPasswordReset(ctx, u.UserID)
	require.NoError(t, err)
	mail, _ := f.mailer.Last()
	require.NoError(t, f.service.ResetPassword(ctx, mail.Code, "new-password"))

	stored := f.user(t, u.UserID)
	assert.Equal(t, 5, stored.FailedLoginAttempts)
	assert.NotNil(t, stored.LockedUntil)

	out, err := f.service.AttemptLogin(ctx, u.UserID, "new-password")
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeAccountLocked, out.Kind)
}

func TestSetTwoFactor(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.store, "quinn", password, models.RolePatient, true)
	ctx := context.Background()

	_, err := f.service.AttemptLogin(ctx, u.UserID, password)
	require.NoError(t, err)

	updated, err := f.service.SetTwoFactor(ctx, u.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.TwoFactorEnabled)
	assert.Nil(t, f.user(t, u.UserID).VerificationCode)

	out, err := f.service.AttemptLogin(ctx, u.UserID, password)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeAuthenticated, out.Kind)
}
