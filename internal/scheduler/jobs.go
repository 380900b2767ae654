package scheduler

import (
	"context"
	"time"

	"medqueue/internal/repository"

	"go.uber.org/zap"
)

type baseJob struct {
	name   string
	config Config
	log    *zap.Logger
	now    func() time.Time
}

func (j *baseJob) Name() string   { return j.name }
func (j *baseJob) Config() Config { return j.config }

func newBase(name string, cfg Config, log *zap.Logger) baseJob {
	return baseJob{
		name:   name,
		config: cfg,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AppointmentSweep marks scheduled appointments as missed once they are
// older than the grace period
type AppointmentSweep struct {
	baseJob
	appointments repository.AppointmentRepository
	grace        time.Duration
}

// NewAppointmentSweep creates the missed appointment job
func NewAppointmentSweep(appointments repository.AppointmentRepository, grace time.Duration, cfg Config, log *zap.Logger) *AppointmentSweep {
	return &AppointmentSweep{
		baseJob:      newBase("appointment_sweep", cfg, log),
		appointments: appointments,
		grace:        grace,
	}
}

func (j *AppointmentSweep) Run(ctx context.Context) error {
	n, err := j.appointments.MarkMissed(ctx, j.now().Add(-j.grace))
	if err != nil {
		return err
	}
	if n > 0 {
		j.log.Info("marked appointments as missed", zap.Int64("count", n))
	}
	return nil
}

// CodePurge clears expired verification and reset codes
type CodePurge struct {
	baseJob
	users repository.UserRepository
}

// NewCodePurge creates the expired code job
func NewCodePurge(users repository.UserRepository, cfg Config, log *zap.Logger) *CodePurge {
	return &CodePurge{
		baseJob: newBase("code_purge", cfg, log),
		users:   users,
	}
}

func (j *CodePurge) Run(ctx context.Context) error {
	n, err := j.users.PurgeExpiredCodes(ctx, j.now())
	if err != nil {
		return err
	}
	if n > 0 {
		j.log.Info("purged expired codes", zap.Int64("accounts", n))
	}
	return nil
}

// AuditCleanup deletes audit log entries past their retention
type AuditCleanup struct {
	baseJob
	audit     repository.AuditLogRepository
	retention time.Duration
}

// NewAuditCleanup creates the audit retention job
func NewAuditCleanup(audit repository.AuditLogRepository, retention time.Duration, cfg Config, log *zap.Logger) *AuditCleanup {
	return &AuditCleanup{
		baseJob:   newBase("audit_cleanup", cfg, log),
		audit:     audit,
		retention: retention,
	}
}

func (j *AuditCleanup) Run(ctx context.Context) error {
	n, err := j.audit.CleanupOld(ctx, j.retention)
	if err != nil {
		return err
	}
	if n > 0 {
		j.log.Info("deleted old audit logs", zap.Int64("count", n))
	}
	return nil
}
