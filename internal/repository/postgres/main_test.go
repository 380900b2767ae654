package postgres_test

import (
	"context"
	"testing"

	"medqueue/internal/models"
	"medqueue/internal/repository"
	"medqueue/internal/repository/postgres"
	"medqueue/internal/testutil/db"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) { db.Main(m) }

type repos struct {
	users        repository.UserRepository
	patients     repository.PatientRepository
	doctors      repository.DoctorRepository
	queue        repository.QueueRepository
	appointments repository.AppointmentRepository
	audit        repository.AuditLogRepository
}

func setup(t *testing.T) *repos {
	t.Helper()
	cfg := db.LoadTestConfig(t)
	conn := db.SetupTestDB(t, &cfg.Database)
	return &repos{
		users:        postgres.NewUserRepository(conn),
		patients:     postgres.NewPatientRepository(conn),
		doctors:      postgres.NewDoctorRepository(conn),
		queue:        postgres.NewQueueRepository(conn),
		appointments: postgres.NewAppointmentRepository(conn),
		audit:        postgres.NewAuditLogRepository(conn),
	}
}

func (r *repos) user(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Username: username, Password: "hash", Role: role, Email: username + "@example.com"}
	require.NoError(t, r.users.Create(context.Background(), u))
	return u
}

func (r *repos) doctor(t *testing.T, name string) *models.Doctor {
	t.Helper()
	d := &models.Doctor{Name: name, Specialization: "General"}
	require.NoError(t, r.doctors.Create(context.Background(), d))
	return d
}

func (r *repos) patient(t *testing.T, name string) *models.Patient {
	t.Helper()
	p := &models.Patient{Name: name}
	require.NoError(t, r.patients.Create(context.Background(), p))
	return p
}
