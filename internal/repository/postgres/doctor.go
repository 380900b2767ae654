package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"medqueue/internal/models"
	"medqueue/internal/repository"

	"github.com/google/uuid"
)

type doctorRepository struct {
	repository.BaseRepository
}

// NewDoctorRepository creates a new PostgreSQL doctor repository
func NewDoctorRepository(db *sql.DB) repository.DoctorRepository {
	return &doctorRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

const doctorColumns = `id, user_id, name, specialization, phone, chamber, available_days, queue_serial, created_at, updated_at`

func scanDoctor(row rowScanner) (*models.Doctor, error) {
	var d models.Doctor
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Name,
		&d.Specialization,
		&d.Phone,
		&d.Chamber,
		&d.AvailableDays,
		&d.QueueSerial,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrDoctorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepository) Create(ctx context.Context, doctor *models.Doctor) error {
	query := `
		INSERT INTO doctors (` + doctorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $8)`

	now := time.Now().UTC()
	doctor.ID = uuid.New()
	doctor.QueueSerial = 0
	doctor.CreatedAt = now
	doctor.UpdatedAt = now

	_, err := r.Conn(ctx).ExecContext(ctx, query,
		doctor.ID,
		doctor.UserID,
		doctor.Name,
		doctor.Specialization,
		doctor.Phone,
		doctor.Chamber,
		doctor.AvailableDays,
		now,
	)
	return repository.MapError(err)
}

func (r *doctorRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`
	return scanDoctor(r.Conn(ctx).QueryRowContext(ctx, query, id))
}

func (r *doctorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE user_id = $1`
	return scanDoctor(r.Conn(ctx).QueryRowContext(ctx, query, userID))
}

func (r *doctorRepository) List(ctx context.Context, specialization string) ([]models.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors`
	var args []any
	if specialization != "" {
		query += ` WHERE specialization ILIKE $1`
		args = append(args, specialization)
	}
	query += ` ORDER BY name`

	rows, err := r.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doctors := make([]models.Doctor, 0)
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, *d)
	}
	return doctors, rows.Err()
}

func (r *doctorRepository) Update(ctx context.Context, doctor *models.Doctor) error {
	query := `
		UPDATE doctors
		SET name = $1, specialization = $2, phone = $3, chamber = $4,
			available_days = $5, updated_at = $6
		WHERE id = $7
		RETURNING updated_at`

	err := r.Conn(ctx).QueryRowContext(ctx, query,
		doctor.Name,
		doctor.Specialization,
		doctor.Phone,
		doctor.Chamber,
		doctor.AvailableDays,
		time.Now().UTC(),
		doctor.ID,
	).Scan(&doctor.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrDoctorNotFound
	}
	return repository.MapError(err)
}

func (r *doctorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.Conn(ctx).ExecContext(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return repository.MapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrDoctorNotFound
	}
	return nil
}
