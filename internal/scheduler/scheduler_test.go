package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"medqueue/internal/models"
	"medqueue/internal/repository"
	"medqueue/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubJob struct {
	name   string
	config Config
	runs   int
	err    error
}

func (j *stubJob) Name() string   { return j.name }
func (j *stubJob) Config() Config { return j.config }
func (j *stubJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func TestManager_RunJob(t *testing.T) {
	m := NewManager(zap.NewNop())
	ok := &stubJob{name: "ok", config: Config{Schedule: "* * * * *", Enabled: true}}
	failing := &stubJob{name: "failing", config: Config{Schedule: "* * * * *", Enabled: true}, err: errors.New("db down")}
	disabled := &stubJob{name: "disabled", config: Config{Schedule: "* * * * *"}}
	m.RegisterJob(ok)
	m.RegisterJob(failing)
	m.RegisterJob(disabled)

	ctx := context.Background()
	require.NoError(t, m.RunJob(ctx, "ok"))
	assert.Equal(t, 1, ok.runs)

	assert.ErrorIs(t, m.RunJob(ctx, "failing"), failing.err)
	assert.ErrorIs(t, m.RunJob(ctx, "disabled"), ErrJobDisabled)
	assert.Equal(t, 0, disabled.runs)
	assert.ErrorIs(t, m.RunJob(ctx, "missing"), ErrJobNotFound)

	infos := m.Jobs()
	require.Len(t, infos, 3)
	assert.Equal(t, "disabled", infos[0].Name)
}

func TestManager_StartScheduler(t *testing.T) {
	t.Run("rejects invalid schedule", func(t *testing.T) {
		m := NewManager(zap.NewNop())
		m.RegisterJob(&stubJob{name: "bad", config: Config{Schedule: "every now and then", Enabled: true}})
		assert.Error(t, m.StartScheduler(context.Background()))
	})

	t.Run("rejects missing schedule", func(t *testing.T) {
		m := NewManager(zap.NewNop())
		m.RegisterJob(&stubJob{name: "empty", config: Config{Enabled: true}})
		assert.Error(t, m.StartScheduler(context.Background()))
	})

	t.Run("stops on cancel", func(t *testing.T) {
		m := NewManager(zap.NewNop())
		m.RegisterJob(&stubJob{name: "ok", config: Config{Schedule: "0 3 * * *", Enabled: true}})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- m.StartScheduler(ctx) }()
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	})
}

func TestAppointmentSweep(t *testing.T) {
	store := testutil.NewMemoryStore()
	doctor := testutil.CreateDoctor(t, store, "Dr. Rahman", nil)
	patient := testutil.CreatePatient(t, store, "John Smith", nil)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	book := func(at time.Time, status models.AppointmentStatus) *models.Appointment {
		a := &models.Appointment{DoctorID: doctor.ID, PatientID: patient.ID, AppointmentTime: at, Status: status}
		require.NoError(t, store.Appointments().Create(ctx, a))
		return a
	}
	old := book(now.Add(-3*time.Hour), models.AppointmentScheduled)
	recent := book(now.Add(-30*time.Minute), models.AppointmentScheduled)
	done := book(now.Add(-5*time.Hour), models.AppointmentCompleted)

	job := NewAppointmentSweep(store.Appointments(), time.Hour, Config{Enabled: true}, zap.NewNop())
	job.now = func() time.Time { return now }
	require.NoError(t, job.Run(ctx))

	for id, want := range map[*models.Appointment]models.AppointmentStatus{
		old:    models.AppointmentMissed,
		recent: models.AppointmentScheduled,
		done:   models.AppointmentCompleted,
	} {
		got, err := store.Appointments().GetByID(ctx, id.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status)
	}
}

func TestCodePurge(t *testing.T) {
	store := testutil.NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	expired := testutil.CreateUser(t, store, "expired", "secret1", models.RolePatient, true)
	expired.SetVerificationCode("123456", now.Add(-time.Minute))
	expired.SetResetCode("12345678", now.Add(time.Minute))
	require.NoError(t, store.Users().UpdateCredentials(ctx, expired))

	job := NewCodePurge(store.Users(), Config{Enabled: true}, zap.NewNop())
	job.now = func() time.Time { return now }
	require.NoError(t, job.Run(ctx))

	got, err := store.Users().GetByID(ctx, expired.ID)
	require.NoError(t, err)
	assert.Nil(t, got.VerificationCode)
	assert.Nil(t, got.VerificationCodeExpires)
	require.NotNil(t, got.PasswordResetCode, "live reset code is kept")
}

func TestAuditCleanup(t *testing.T) {
	store := testutil.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.AuditLogs().Create(ctx, &models.CreateAuditLogRequest{
		Action: models.AuditActionLogin, EntityType: "user", EntityID: "USER0001", Description: "login",
	}))

	job := NewAuditCleanup(store.AuditLogs(), 24*time.Hour, Config{Enabled: true}, zap.NewNop())
	require.NoError(t, job.Run(ctx))

	logs, err := store.AuditLogs().List(ctx, repository.AuditLogFilter{})
	require.NoError(t, err)
	assert.Len(t, logs, 1, "fresh entries survive")
}
