package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"medqueue/internal/models"
	"medqueue/internal/repository"

	"github.com/google/uuid"
)

type appointmentRepository struct {
	repository.BaseRepository
}

// NewAppointmentRepository creates a new PostgreSQL appointment repository
func NewAppointmentRepository(db *sql.DB) repository.AppointmentRepository {
	return &appointmentRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

const appointmentColumns = `id, patient_id, doctor_id, appointment_time, appointment_type, notes, status, created_at, updated_at`

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var a models.Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.AppointmentTime,
		&a.AppointmentType,
		&a.Notes,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepository) Create(ctx context.Context, appt *models.Appointment) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`

	now := time.Now().UTC()
	appt.ID = uuid.New()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	if appt.Status == "" {
		appt.Status = models.AppointmentScheduled
	}

	_, err := r.Conn(ctx).ExecContext(ctx, query,
		appt.ID,
		appt.PatientID,
		appt.DoctorID,
		appt.AppointmentTime,
		appt.AppointmentType,
		appt.Notes,
		appt.Status,
		now,
	)
	return repository.MapError(err)
}

func (r *appointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	return scanAppointment(r.Conn(ctx).QueryRowContext(ctx, query, id))
}

func (r *appointmentRepository) List(ctx context.Context, filter repository.AppointmentFilter) ([]models.Appointment, error) {
	var conditions []string
	var params []any
	add := func(cond string, v any) {
		params = append(params, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(params)))
	}

	if filter.PatientID != nil {
		add("patient_id = $%d", *filter.PatientID)
	}
	if filter.DoctorID != nil {
		add("doctor_id = $%d", *filter.DoctorID)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.From != nil {
		add("appointment_time >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("appointment_time < $%d", *filter.To)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY appointment_time ASC"

	rows, err := r.Conn(ctx).QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appts := make([]models.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, *a)
	}
	return appts, rows.Err()
}

func (r *appointmentRepository) Update(ctx context.Context, appt *models.Appointment) error {
	query := `
		UPDATE appointments
		SET appointment_time = $1, appointment_type = $2, notes = $3, status = $4, updated_at = $5
		WHERE id = $6
		RETURNING updated_at`

	err := r.Conn(ctx).QueryRowContext(ctx, query,
		appt.AppointmentTime,
		appt.AppointmentType,
		appt.Notes,
		appt.Status,
		time.Now().UTC(),
		appt.ID,
	).Scan(&appt.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrAppointmentNotFound
	}
	return repository.MapError(err)
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.Conn(ctx).ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrAppointmentNotFound
	}
	return nil
}

func (r *appointmentRepository) MarkMissed(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = $2
		WHERE status = $3 AND appointment_time < $4`

	result, err := r.Conn(ctx).ExecContext(ctx, query,
		models.AppointmentMissed,
		time.Now().UTC(),
		models.AppointmentScheduled,
		before,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
