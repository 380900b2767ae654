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

type patientRepository struct {
	repository.BaseRepository
}

// NewPatientRepository creates a new PostgreSQL patient repository
func NewPatientRepository(db *sql.DB) repository.PatientRepository {
	return &patientRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

const patientColumns = `id, user_id, name, age, gender, phone, address, created_at, updated_at`

func scanPatient(row rowScanner) (*models.Patient, error) {
	var p models.Patient
	var age sql.NullInt64
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &age, &p.Gender, &p.Phone, &p.Address, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	if age.Valid {
		v := int(age.Int64)
		p.Age = &v
	}
	return &p, nil
}

func (r *patientRepository) Create(ctx context.Context, patient *models.Patient) error {
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`

	now := time.Now().UTC()
	patient.ID = uuid.New()
	patient.CreatedAt = now
	patient.UpdatedAt = now

	_, err := r.Conn(ctx).ExecContext(ctx, query,
		patient.ID,
		patient.UserID,
		patient.Name,
		patient.Age,
		patient.Gender,
		patient.Phone,
		patient.Address,
		now,
	)
	return repository.MapError(err)
}

func (r *patientRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	return scanPatient(r.Conn(ctx).QueryRowContext(ctx, query, id))
}

func (r *patientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE user_id = $1`
	return scanPatient(r.Conn(ctx).QueryRowContext(ctx, query, userID))
}

func (r *patientRepository) List(ctx context.Context) ([]models.Patient, error) {
	rows, err := r.Conn(ctx).QueryContext(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY name, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	patients := make([]models.Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, *p)
	}
	return patients, rows.Err()
}

func (r *patientRepository) Update(ctx context.Context, patient *models.Patient) error {
	query := `
		UPDATE patients
		SET name = $1, age = $2, gender = $3, phone = $4, address = $5, updated_at = $6
		WHERE id = $7
		RETURNING updated_at`

	err := r.Conn(ctx).QueryRowContext(ctx, query,
		patient.Name,
		patient.Age,
		patient.Gender,
		patient.Phone,
		patient.Address,
		time.Now().UTC(),
		patient.ID,
	).Scan(&patient.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrPatientNotFound
	}
	return repository.MapError(err)
}

func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.Conn(ctx).ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return repository.MapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrPatientNotFound
	}
	return nil
}
