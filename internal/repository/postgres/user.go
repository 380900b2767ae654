package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"medqueue/internal/models"
	"medqueue/internal/repository"

	"github.com/google/uuid"
)

type userRepository struct {
	repository.BaseRepository
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

const userColumns = `
	id, user_id, username, password, role, email, two_factor_enabled,
	verification_code, verification_code_expires, failed_login_attempts,
	locked_until, password_reset_code, password_reset_expires,
	last_login_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.UserID,
		&user.Username,
		&user.Password,
		&user.Role,
		&user.Email,
		&user.TwoFactorEnabled,
		&user.VerificationCode,
		&user.VerificationCodeExpires,
		&user.FailedLoginAttempts,
		&user.LockedUntil,
		&user.PasswordResetCode,
		&user.PasswordResetExpires,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (
			id, user_id, username, password, role, email, two_factor_enabled,
			failed_login_attempts, created_at, updated_at
		) VALUES (
			$1, 'USER' || lpad(nextval('user_number_seq')::text, 4, '0'),
			$2, $3, $4, $5, $6, 0, $7, $7
		)
		RETURNING user_id, created_at, updated_at`

	now := time.Now().UTC()
	user.ID = uuid.New()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = models.RolePatient
	}

	err := r.Conn(ctx).QueryRowContext(ctx, query,
		user.ID,
		user.Username,
		user.Password,
		user.Role,
		user.Email,
		user.TwoFactorEnabled,
		now,
	).Scan(&user.UserID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return repository.MapError(err)
	}
	user.FailedLoginAttempts = 0
	return nil
}

func (r *userRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	return scanUser(r.Conn(ctx).QueryRowContext(ctx, query, arg))
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *userRepository) GetByUserID(ctx context.Context, userID string) (*models.User, error) {
	return r.getOne(ctx, "user_id = $1", strings.TrimSpace(userID))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "username = $1", username)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email = $1", strings.ToLower(strings.TrimSpace(email)))
}

func (r *userRepository) GetByResetCode(ctx context.Context, code string) (*models.User, error) {
	return r.getOne(ctx, "password_reset_code = $1", code)
}

func (r *userRepository) LockByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, "id = $1 FOR UPDATE", id)
}

func (r *userRepository) UpdateCredentials(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET password = $1,
			two_factor_enabled = $2,
			verification_code = $3,
			verification_code_expires = $4,
			failed_login_attempts = $5,
			locked_until = $6,
			password_reset_code = $7,
			password_reset_expires = $8,
			last_login_at = $9,
			updated_at = $10
		WHERE id = $11
		RETURNING updated_at`

	err := r.Conn(ctx).QueryRowContext(ctx, query,
		user.Password,
		user.TwoFactorEnabled,
		user.VerificationCode,
		user.VerificationCodeExpires,
		user.FailedLoginAttempts,
		user.LockedUntil,
		user.PasswordResetCode,
		user.PasswordResetExpires,
		user.LastLoginAt,
		time.Now().UTC(),
		user.ID,
	).Scan(&user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrUserNotFound
	}
	return repository.MapError(err)
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.Conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (r *userRepository) PurgeExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users
		SET verification_code = CASE WHEN verification_code_expires < $1 THEN NULL ELSE verification_code END,
			verification_code_expires = CASE WHEN verification_code_expires < $1 THEN NULL ELSE verification_code_expires END,
			password_reset_code = CASE WHEN password_reset_expires < $1 THEN NULL ELSE password_reset_code END,
			password_reset_expires = CASE WHEN password_reset_expires < $1 THEN NULL ELSE password_reset_expires END
		WHERE verification_code_expires < $1 OR password_reset_expires < $1`

	result, err := r.Conn(ctx).ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
