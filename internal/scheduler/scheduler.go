// Package scheduler runs periodic maintenance jobs
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"medqueue/internal/logger"
	"medqueue/internal/metrics"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	// ErrJobNotFound is returned when a job cannot be found by name
	ErrJobNotFound = errors.New("job not found")
	// ErrJobDisabled is returned when a disabled job is run by hand
	ErrJobDisabled = errors.New("job is disabled")
)

// Config represents the configuration for a job
type Config struct {
	// Schedule in cron format (e.g. "*/15 * * * *" for every 15 minutes)
	Schedule string `json:"schedule"`
	// Enabled determines if the job should run on schedule
	Enabled bool `json:"enabled"`
}

// Job is a unit of maintenance work
type Job interface {
	// Name returns the unique name of the job
	Name() string
	// Run executes the job once
	Run(ctx context.Context) error
	// Config returns the job's schedule
	Config() Config
}

// JobInfo describes a registered job
type JobInfo struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Enabled  bool   `json:"enabled"`
}

// Manager handles the scheduling and execution of jobs
type Manager struct {
	jobs []Job
	cron *cron.Cron
	log  *zap.Logger
}

// NewManager creates a new job manager
func NewManager(log *zap.Logger) *Manager {
	// Create a new cron scheduler with seconds disabled
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
	)))

	return &Manager{
		jobs: make([]Job, 0),
		cron: c,
		log:  logger.WithComponent(log, "scheduler"),
	}
}

// RegisterJob adds a job to the manager
func (m *Manager) RegisterJob(j Job) {
	m.jobs = append(m.jobs, j)
}

// GetJob returns a job by name
func (m *Manager) GetJob(name string) (Job, bool) {
	for _, j := range m.jobs {
		if j.Name() == name {
			return j, true
		}
	}
	return nil, false
}

// Jobs lists the registered jobs sorted by name
func (m *Manager) Jobs() []JobInfo {
	out := make([]JobInfo, 0, len(m.jobs))
	for _, j := range m.jobs {
		cfg := j.Config()
		out = append(out, JobInfo{Name: j.Name(), Schedule: cfg.Schedule, Enabled: cfg.Enabled})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// RunJob executes a specific job by name
func (m *Manager) RunJob(ctx context.Context, name string) error {
	job, found := m.GetJob(name)
	if !found {
		return ErrJobNotFound
	}
	if !job.Config().Enabled {
		return fmt.Errorf("%w: %s", ErrJobDisabled, name)
	}
	return m.execute(ctx, job)
}

func (m *Manager) execute(ctx context.Context, job Job) error {
	start := time.Now()
	err := job.Run(ctx)
	metrics.JobRunsTotal.WithLabelValues(job.Name(), metrics.Status(err)).Inc()
	if err != nil {
		m.log.Error("job failed", zap.String("job", job.Name()), zap.Error(err))
		return err
	}
	m.log.Info("job completed", zap.String("job", job.Name()), zap.Duration("duration", time.Since(start)))
	return nil
}

// StartScheduler starts all enabled jobs on their configured schedules and
// blocks until ctx is cancelled
func (m *Manager) StartScheduler(ctx context.Context) error {
	for _, j := range m.jobs {
		cfg := j.Config()
		if !cfg.Enabled {
			m.log.Info("job is disabled, skipping scheduler", zap.String("job", j.Name()))
			continue
		}
		if cfg.Schedule == "" {
			return fmt.Errorf("job %s has no schedule configured", j.Name())
		}

		job := j
		_, err := m.cron.AddFunc(cfg.Schedule, func() {
			_ = m.execute(ctx, job)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule job %s: %w", j.Name(), err)
		}
		m.log.Info("scheduled job", zap.String("job", j.Name()), zap.String("schedule", cfg.Schedule))
	}

	m.cron.Start()
	m.log.Info("scheduler started")

	<-ctx.Done()
	m.log.Info("stopping scheduler")
	<-m.cron.Stop().Done()
	return nil
}
