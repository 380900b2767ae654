package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"medqueue/internal/api/routes"
	"medqueue/internal/auth"
	"medqueue/internal/config"
	"medqueue/internal/models"
	"medqueue/internal/ratelimit"
	"medqueue/internal/scheduler"
	"medqueue/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPassword = "secret123"

type fakePinger struct{ err error }

func (p *fakePinger) PingContext(context.Context) error { return p.err }

type testServer struct {
	t         *testing.T
	router    *gin.Engine
	store     *testutil.MemoryStore
	mailer    *testutil.MockMailer
	publisher *testutil.RecordingPublisher
	tokens    *auth.TokenService
	db        *fakePinger
	redis     *miniredis.Miniredis
}

func newTestServer(t *testing.T, opts ...func(*config.Config)) *testServer {
	t.Helper()
	testutil.SetupGin()

	cfg := &config.Config{
		API:  config.APIConfig{Port: "8080", AllowedOrigins: []string{"http://localhost:3000"}},
		Auth: config.AuthConfig{JWTSecret: "handler-test-secret", JWTExpiration: 1, RegistrationOpen: true},
		Security: config.SecurityConfig{
			MaxLoginAttempts:  5,
			LockoutDuration:   30 * time.Minute,
			CodeExpiry:        10 * time.Minute,
			ResetCodeExpiry:   time.Hour,
			MinPasswordLength: 6,
			CodeRequestLimit:  3,
			CodeRequestWindow: 15 * time.Minute,
			AuditLogRetention: 24 * time.Hour,
		},
		Email:     config.EmailConfig{Timeout: time.Second},
		Scheduler: config.SchedulerConfig{Enabled: true, AppointmentSweep: "*/15 * * * *", MissedAppointmentIn: time.Hour},
	}
	cfg.RateLimit.Requests = 10000
	cfg.RateLimit.Window = 60
	cfg.RateLimit.Burst = 10000
	for _, opt := range opts {
		opt(cfg)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := zap.NewNop()
	ts := &testServer{
		t:         t,
		store:     testutil.NewMemoryStore(),
		mailer:    &testutil.MockMailer{},
		publisher: &testutil.RecordingPublisher{},
		tokens:    auth.NewTokenService(cfg.Auth.JWTSecret, time.Hour),
		db:        &fakePinger{},
		redis:     mr,
	}
	dispatcher := &testutil.InlineDispatcher{}

	jobs := scheduler.NewManager(log)
	jobs.RegisterJob(scheduler.NewAppointmentSweep(ts.store.Appointments(), cfg.Scheduler.MissedAppointmentIn,
		scheduler.Config{Schedule: cfg.Scheduler.AppointmentSweep, Enabled: true}, log))
	jobs.RegisterJob(scheduler.NewCodePurge(ts.store.Users(), scheduler.Config{Schedule: "0 * * * *"}, log))

	ts.router = routes.SetupRoutes(routes.Dependencies{
		Config:       cfg,
		Log:          log,
		DB:           ts.db,
		Redis:        rdb,
		Users:        ts.store.Users(),
		Patients:     ts.store.Patients(),
		Doctors:      ts.store.Doctors(),
		Queue:        ts.store.Queue(),
		Appointments: ts.store.Appointments(),
		AuditLogs:    ts.store.AuditLogs(),
		Auth:         auth.NewService(ts.store.Users(), ts.mailer, dispatcher, ts.publisher, auth.SettingsFromConfig(cfg), log),
		Registrar: auth.NewRegistrar(ts.store.Users(), ts.store.Patients(), ts.store.Doctors(), dispatcher, ts.publisher,
			cfg.Auth.RegistrationOpen, cfg.Security.MinPasswordLength, log),
		Tokens:    ts.tokens,
		Limiter:   ratelimit.NewRedisLimiter(rdb, cfg.Security.CodeRequestLimit, cfg.Security.CodeRequestWindow, log),
		Scheduler: jobs,
	})
	return ts
}

// do sends a JSON request, authenticated as user when user is not nil
func (ts *testServer) do(method, path string, body any, user *models.User) *httptest.ResponseRecorder {
	ts.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := ts.tokens.GenerateToken(user)
		require.NoError(ts.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) user(name string, role models.Role, twoFactor bool) *models.User {
	return testutil.CreateUser(ts.t, ts.store, name, testPassword, role, twoFactor)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
