package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"medqueue/internal/config"
	"medqueue/internal/events"
	"medqueue/internal/logger"
	"medqueue/internal/metrics"
	"medqueue/internal/models"
	"medqueue/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mailer delivers the emails the state machine triggers
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, username, code string, expiresIn time.Duration) error
	SendAccountLocked(ctx context.Context, to, username string, unlockAt time.Time) error
	SendPasswordResetCode(ctx context.Context, to, username, code string, expiresIn time.Duration) error
}

// Dispatcher runs a job in the background. Failures are logged by the dispatcher.
type Dispatcher interface {
	Dispatch(name string, job func(ctx context.Context) error)
}

// Settings are the state machine limits
type Settings struct {
	MaxLoginAttempts  int
	LockoutDuration   time.Duration
	CodeExpiry        time.Duration
	ResetCodeExpiry   time.Duration
	MinPasswordLength int
	// EmailTimeout bounds the synchronous code delivery
	EmailTimeout time.Duration
	// DevelopmentMode returns every issued code to the caller
	DevelopmentMode bool
}

// SettingsFromConfig extracts the state machine settings from the application config
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		MaxLoginAttempts:  cfg.Security.MaxLoginAttempts,
		LockoutDuration:   cfg.Security.LockoutDuration,
		CodeExpiry:        cfg.Security.CodeExpiry,
		ResetCodeExpiry:   cfg.Security.ResetCodeExpiry,
		MinPasswordLength: cfg.Security.MinPasswordLength,
		EmailTimeout:      cfg.Email.Timeout,
		DevelopmentMode:   cfg.API.DevelopmentMode,
	}
}

// DefaultSettings returns the standard limits: 5 attempts, 30 minute lock,
// 10 minute verification codes and 1 hour reset codes
func DefaultSettings() Settings {
	return Settings{
		MaxLoginAttempts:  5,
		LockoutDuration:   30 * time.Minute,
		CodeExpiry:        10 * time.Minute,
		ResetCodeExpiry:   time.Hour,
		MinPasswordLength: 6,
		EmailTimeout:      10 * time.Second,
	}
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPasswordComparer replaces the bcrypt comparison
func WithPasswordComparer(compare func(hash, password string) error) Option {
	return func(s *Service) { s.compare = compare }
}

// WithCodeGenerator replaces the random digit generator
func WithCodeGenerator(gen func(digits int) (string, error)) Option {
	return func(s *Service) { s.digits = gen }
}

// Service is the login security state machine. Every transition runs in a
// transaction holding the account row lock; emails and events go out after
// the commit.
type Service struct {
	users      repository.UserRepository
	mailer     Mailer
	dispatcher Dispatcher
	publisher  events.Publisher
	settings   Settings
	log        *zap.Logger

	now     func() time.Time
	digits  func(n int) (string, error)
	compare func(hash, password string) error
}

// NewService creates a new login security service
func NewService(
	users repository.UserRepository,
	mailer Mailer,
	dispatcher Dispatcher,
	publisher events.Publisher,
	settings Settings,
	log *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		users:      users,
		mailer:     mailer,
		dispatcher: dispatcher,
		publisher:  publisher,
		settings:   settings,
		log:        logger.WithComponent(log, "auth"),
		now:        func() time.Time { return time.Now().UTC() },
		digits:     randomDigits,
		compare:    ComparePassword,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AttemptLogin checks the password of the account with the given external user id
func (s *Service) AttemptLogin(ctx context.Context, userID, password string) (*Outcome, error) {
	var out Outcome
	var lockedNow bool
	var code string

	err := s.users.Transaction(ctx, func(ctx context.Context) error {
		found, err := s.users.GetByUserID(ctx, userID)
		if errors.Is(err, repository.ErrUserNotFound) {
			// unknown ids pay for a comparison too so response time does not reveal them
			_ = s.compare(unknownAccountHash(), password)
			out = Outcome{Kind: OutcomeInvalidCredentials}
			return nil
		}
		if err != nil {
			return err
		}
		user, err := s.users.LockByID(ctx, found.ID)
		if err != nil {
			return err
		}

		now := s.now()
		s.releaseExpiredLock(user, now)
		if user.IsLocked(now) {
			out = lockedOutcome(user)
			return nil
		}

		if err := s.compare(user.Password, password); err != nil {
			lockedNow = s.registerFailure(user, now, &out)
			return s.users.UpdateCredentials(ctx, user)
		}

		if !user.TwoFactorEnabled {
			s.completeLogin(user, now)
			out = Outcome{Kind: OutcomeAuthenticated, User: user}
			return s.users.UpdateCredentials(ctx, user)
		}

		code, err = s.digits(6)
		if err != nil {
			return err
		}
		user.SetVerificationCode(code, now.Add(s.settings.CodeExpiry))
		out = Outcome{Kind: OutcomeTwoFactorRequired, User: user, MaskedEmail: MaskEmail(user.Email)}
		return s.users.UpdateCredentials(ctx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("attempt login: %w", err)
	}

	s.afterTransition(ctx, "login", &out, lockedNow, code)
	return &out, nil
}

// VerifyTwoFactor completes a login by checking the emailed code. The account
// may be given by internal id or external user id.
func (s *Service) VerifyTwoFactor(ctx context.Context, account, submitted string) (*Outcome, error) {
	var out Outcome
	var lockedNow bool

	err := s.users.Transaction(ctx, func(ctx context.Context) error {
		user, err := s.lockAccount(ctx, account)
		if err != nil {
			return err
		}
		if user == nil {
			out = Outcome{Kind: OutcomeInvalidUser}
			return nil
		}

		now := s.now()
		s.releaseExpiredLock(user, now)
		if user.IsLocked(now) {
			out = lockedOutcome(user)
			return nil
		}

		if !codeMatches(user.VerificationCode, user.VerificationCodeExpires, submitted, now) {
			lockedNow = s.registerFailure(user, now, &out)
			return s.users.UpdateCredentials(ctx, user)
		}

		user.ClearVerificationCode()
		s.completeLogin(user, now)
		out = Outcome{Kind: OutcomeAuthenticated, User: user}
		return s.users.UpdateCredentials(ctx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("verify two-factor code: %w", err)
	}

	s.afterTransition(ctx, "verify_two_factor", &out, lockedNow, "")
	return &out, nil
}

// ResendCode replaces the code of a pending two-factor challenge. Accounts
// without one, because the password step was never passed or two-factor is
// off, get InvalidUser.
func (s *Service) ResendCode(ctx context.Context, account string) (*Outcome, error) {
	var out Outcome
	var code string

	err := s.users.Transaction(ctx, func(ctx context.Context) error {
		user, err := s.lockAccount(ctx, account)
		if err != nil {
			return err
		}
		if user == nil {
			out = Outcome{Kind: OutcomeInvalidUser}
			return nil
		}

		now := s.now()
		s.releaseExpiredLock(user, now)
		if user.IsLocked(now) {
			out = lockedOutcome(user)
			return nil
		}
		if !user.TwoFactorEnabled || user.VerificationCode == nil {
			out = Outcome{Kind: OutcomeInvalidUser}
			return nil
		}

		code, err = s.digits(6)
		if err != nil {
			return err
		}
		user.SetVerificationCode(code, now.Add(s.settings.CodeExpiry))
		out = Outcome{Kind: OutcomeCodeSent, User: user, MaskedEmail: MaskEmail(user.Email)}
		return s.users.UpdateCredentials(ctx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("resend code: %w", err)
	}

	s.afterTransition(ctx, "resend_code", &out, false, code)
	return &out, nil
}

// RequestPasswordReset issues a reset code for the account matching the
// identifier. The outcome is the same whether or not an account matched.
func (s *Service) RequestPasswordReset(ctx context.Context, identifier string) (*Outcome, error) {
	out := Outcome{Kind: OutcomeResetRequested}
	var user *models.User
	var code string

	err := s.users.Transaction(ctx, func(ctx context.Context) error {
		found, err := s.findByIdentifier(ctx, identifier)
		if err != nil || found == nil {
			return err
		}
		user, err = s.users.LockByID(ctx, found.ID)
		if err != nil {
			return err
		}

		code, err = s.uniqueResetCode(ctx)
		if err != nil {
			return err
		}
		user.SetResetCode(code, s.now().Add(s.settings.ResetCodeExpiry))
		return s.users.UpdateCredentials(ctx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("request password reset: %w", err)
	}
	metrics.LoginOutcomesTotal.WithLabelValues("request_password_reset", string(out.Kind)).Inc()

	if user == nil {
		s.log.Info("password reset requested for unknown identifier")
		return &out, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.settings.EmailTimeout)
	defer cancel()
	if err := s.mailer.SendPasswordResetCode(sendCtx, user.Email, user.Username, code, s.settings.ResetCodeExpiry); err != nil {
		s.log.Warn("failed to send password reset email, returning code to caller",
			zap.String("user_id", user.UserID),
			zap.Error(err),
		)
		out.DevCode = code
	} else if s.settings.DevelopmentMode {
		out.DevCode = code
	}
	return &out, nil
}

// VerifyResetCode returns the account holding a live reset code
func (s *Service) VerifyResetCode(ctx context.Context, code string) (*models.User, error) {
	user, err := s.users.GetByResetCode(ctx, code)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidOrExpiredCode
	}
	if err != nil {
		return nil, fmt.Errorf("verify reset code: %w", err)
	}
	if !codeMatches(user.PasswordResetCode, user.PasswordResetExpires, code, s.now()) {
		return nil, ErrInvalidOrExpiredCode
	}
	return user, nil
}

// ResetPassword replaces the password of the account holding the reset code.
// The failure counter and any lock are left as they are.
func (s *Service) ResetPassword(ctx context.Context, code, newPassword string) error {
	var user *models.User

	err := s.users.Transaction(ctx, func(ctx context.Context) error {
		found, err := s.users.GetByResetCode(ctx, code)
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidOrExpiredCode
		}
		if err != nil {
			return err
		}
		user, err = s.users.LockByID(ctx, found.ID)
		if err != nil {
			return err
		}
		if !codeMatches(user.PasswordResetCode, user.PasswordResetExpires, code, s.now()) {
			return ErrInvalidOrExpiredCode
		}
		if utf8.RuneCountInString(newPassword) < s.settings.MinPasswordLength {
			return ErrWeakPassword
		}

		hash, err := HashPassword(newPassword)
		if err != nil {
			return err
		}
		user.Password = hash
		user.ClearResetCode()
		return s.users.UpdateCredentials(ctx, user)
	})
	if errors.Is(err, ErrInvalidOrExpiredCode) || errors.Is(err, ErrWeakPassword) {
		return err
	}
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	s.log.Info("password reset", zap.String("user_id", user.UserID))
	s.publish(events.TypePasswordReset, user, nil)
	return nil
}

// SetTwoFactor turns two-factor login on or off. Turning it off drops any
// pending verification code.
func (s *Service) SetTwoFactor(ctx context.Context, id uuid.UUID, enabled bool) (*models.User, error) {
	var user *models.User
	err := s.users.Transaction(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.LockByID(ctx, id)
		if err != nil {
			return err
		}
		user.TwoFactorEnabled = enabled
		if !enabled {
			user.ClearVerificationCode()
		}
		return s.users.UpdateCredentials(ctx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("set two-factor: %w", err)
	}

	s.publish(events.TypeTwoFactorChanged, user, map[string]string{
		"enabled": fmt.Sprintf("%t", enabled),
	})
	return user, nil
}

// lockAccount resolves an internal or external id and takes the row lock.
// It returns nil without error when no account matches.
func (s *Service) lockAccount(ctx context.Context, account string) (*models.User, error) {
	var found *models.User
	var err error
	if id, parseErr := uuid.Parse(account); parseErr == nil {
		found, err = s.users.GetByID(ctx, id)
	} else {
		found, err = s.users.GetByUserID(ctx, account)
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.users.LockByID(ctx, found.ID)
}

// findByIdentifier looks up by email when the identifier looks like one and
// falls back to the external user id
func (s *Service) findByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	if IsValidEmail(identifier) {
		user, err := s.users.GetByEmail(ctx, identifier)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
	}
	user, err := s.users.GetByUserID(ctx, identifier)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, nil
	}
	return user, err
}

const maxResetCodeAttempts = 5

func (s *Service) uniqueResetCode(ctx context.Context) (string, error) {
	for i := 0; i < maxResetCodeAttempts; i++ {
		code, err := s.digits(8)
		if err != nil {
			return "", err
		}
		_, err = s.users.GetByResetCode(ctx, code)
		if errors.Is(err, repository.ErrUserNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("could not generate a unique reset code")
}

// releaseExpiredLock starts a fresh count once a lock has run out
func (s *Service) releaseExpiredLock(user *models.User, now time.Time) {
	if user.LockedUntil != nil && !now.Before(*user.LockedUntil) {
		user.LockedUntil = nil
		user.FailedLoginAttempts = 0
	}
}

// registerFailure counts a failed password or code and locks the account at
// the threshold. It reports whether this failure caused the lock.
func (s *Service) registerFailure(user *models.User, now time.Time, out *Outcome) bool {
	user.FailedLoginAttempts++
	if user.FailedLoginAttempts >= s.settings.MaxLoginAttempts {
		until := now.Add(s.settings.LockoutDuration)
		user.LockedUntil = &until
		*out = lockedOutcome(user)
		return true
	}
	*out = Outcome{
		Kind:              OutcomeInvalidCredentials,
		User:              user,
		AttemptsRemaining: s.settings.MaxLoginAttempts - user.FailedLoginAttempts,
	}
	return false
}

func (s *Service) completeLogin(user *models.User, now time.Time) {
	user.FailedLoginAttempts = 0
	user.LastLoginAt = &now
}

func lockedOutcome(user *models.User) Outcome {
	return Outcome{Kind: OutcomeAccountLocked, User: user, UnlockAt: *user.LockedUntil}
}

// codeMatches compares codes as strings in constant time
func codeMatches(stored *string, expires *time.Time, submitted string, now time.Time) bool {
	if stored == nil || expires == nil || now.After(*expires) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(submitted)) == 1
}

// afterTransition runs the side effects of a committed transition
func (s *Service) afterTransition(ctx context.Context, operation string, out *Outcome, lockedNow bool, code string) {
	metrics.LoginOutcomesTotal.WithLabelValues(operation, string(out.Kind)).Inc()

	switch {
	case lockedNow:
		s.notifyLocked(out.User)
	case out.Kind == OutcomeAuthenticated:
		s.log.Info("login succeeded", zap.String("user_id", out.User.UserID))
		s.publish(events.TypeLoginSucceeded, out.User, nil)
	case code != "":
		s.deliverCode(ctx, out, code)
	}
}

func (s *Service) notifyLocked(user *models.User) {
	metrics.AccountLocksTotal.Inc()
	unlockAt := *user.LockedUntil
	s.log.Warn("account locked",
		zap.String("user_id", user.UserID),
		zap.Time("unlock_at", unlockAt),
	)

	to, username := user.Email, user.Username
	s.dispatcher.Dispatch("account_locked_email", func(ctx context.Context) error {
		return s.mailer.SendAccountLocked(ctx, to, username, unlockAt)
	})
	s.publish(events.TypeAccountLocked, user, map[string]string{
		"unlock_at": unlockAt.Format(time.RFC3339),
	})
}

// deliverCode sends the verification code within the email timeout. When the
// send fails the code goes back to the caller instead.
func (s *Service) deliverCode(ctx context.Context, out *Outcome, code string) {
	sendCtx, cancel := context.WithTimeout(ctx, s.settings.EmailTimeout)
	defer cancel()

	user := out.User
	if err := s.mailer.SendVerificationCode(sendCtx, user.Email, user.Username, code, s.settings.CodeExpiry); err != nil {
		s.log.Warn("failed to send verification code, returning code to caller",
			zap.String("user_id", user.UserID),
			zap.Error(err),
		)
		out.DevCode = code
		return
	}
	if s.settings.DevelopmentMode {
		out.DevCode = code
	}
}

func (s *Service) publish(eventType string, user *models.User, data map[string]string) {
	event := events.Event{
		Type:       eventType,
		UserID:     user.UserID,
		OccurredAt: s.now(),
		Data:       data,
	}
	s.dispatcher.Dispatch("publish_"+eventType, func(ctx context.Context) error {
		return s.publisher.Publish(ctx, event)
	})
}

// GetUserFromContext retrieves the authenticated user from the gin context
func GetUserFromContext(c *gin.Context) *models.User {
	user, exists := c.Get("user")
	if !exists {
		return nil
	}
	if u, ok := user.(*models.User); ok {
		return u
	}
	return nil
}
