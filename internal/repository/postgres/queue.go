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

type queueRepository struct {
	repository.BaseRepository
}

// NewQueueRepository creates a new PostgreSQL queue repository
func NewQueueRepository(db *sql.DB) repository.QueueRepository {
	return &queueRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

const queueColumns = `id, patient_id, doctor_id, serial, status, created_at, updated_at`

func scanQueueEntry(row rowScanner) (*models.QueueEntry, error) {
	var e models.QueueEntry
	err := row.Scan(&e.ID, &e.PatientID, &e.DoctorID, &e.Serial, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrQueueEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// NextSerial bumps the doctor's high-water mark. The UPDATE takes the doctor
// row lock, so concurrent allocations for one doctor run one after another
// while other doctors are unaffected. GREATEST also covers entries that were
// written without going through NextSerial.
func (r *queueRepository) NextSerial(ctx context.Context, doctorID uuid.UUID) (int, error) {
	query := `
		UPDATE doctors
		SET queue_serial = GREATEST(
				queue_serial,
				(SELECT COALESCE(MAX(serial), 0) FROM queue_entries WHERE doctor_id = $1)
			) + 1
		WHERE id = $1
		RETURNING queue_serial`

	var serial int
	err := r.Conn(ctx).QueryRowContext(ctx, query, doctorID).Scan(&serial)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, repository.ErrDoctorNotFound
	}
	if err != nil {
		return 0, err
	}
	return serial, nil
}

func (r *queueRepository) Create(ctx context.Context, entry *models.QueueEntry) error {
	query := `
		INSERT INTO queue_entries (` + queueColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`

	now := time.Now().UTC()
	entry.ID = uuid.New()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	_, err := r.Conn(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.PatientID,
		entry.DoctorID,
		entry.Serial,
		entry.Status,
		now,
	)
	return repository.MapError(err)
}

func (r *queueRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE id = $1`
	return scanQueueEntry(r.Conn(ctx).QueryRowContext(ctx, query, id))
}

func (r *queueRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE doctor_id = $1 ORDER BY serial ASC`
	return r.list(ctx, query, doctorID)
}

func (r *queueRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE patient_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, patientID)
}

func (r *queueRepository) list(ctx context.Context, query string, arg any) ([]models.QueueEntry, error) {
	rows, err := r.Conn(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.QueueEntry, 0)
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (r *queueRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.QueueStatus) (*models.QueueEntry, error) {
	query := `
		UPDATE queue_entries
		SET status = $1, updated_at = $2
		WHERE id = $3
		RETURNING ` + queueColumns

	return scanQueueEntry(r.Conn(ctx).QueryRowContext(ctx, query, status, time.Now().UTC(), id))
}

func (r *queueRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.Conn(ctx).ExecContext(ctx, `DELETE FROM queue_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrQueueEntryNotFound
	}
	return nil
}
