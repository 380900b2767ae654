package testutil

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"medqueue/internal/models"
	"medqueue/internal/repository"

	"github.com/google/uuid"
)

type memTxKey struct{}

// MemoryStore is an in-memory implementation of every repository. Transactions
// are serialized and roll back to a snapshot when the callback fails, which is
// enough to exercise the locking and all-or-nothing behavior of the services.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users        map[uuid.UUID]models.User
	userSeq      int
	patients     map[uuid.UUID]models.Patient
	doctors      map[uuid.UUID]models.Doctor
	queue        map[uuid.UUID]models.QueueEntry
	appointments map[uuid.UUID]models.Appointment
	audit        []models.AuditLog

	now func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[uuid.UUID]models.User),
		patients:     make(map[uuid.UUID]models.Patient),
		doctors:      make(map[uuid.UUID]models.Doctor),
		queue:        make(map[uuid.UUID]models.QueueEntry),
		appointments: make(map[uuid.UUID]models.Appointment),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type memSnapshot struct {
	users        map[uuid.UUID]models.User
	userSeq      int
	patients     map[uuid.UUID]models.Patient
	doctors      map[uuid.UUID]models.Doctor
	queue        map[uuid.UUID]models.QueueEntry
	appointments map[uuid.UUID]models.Appointment
	audit        []models.AuditLog
}

func (s *MemoryStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		users:        maps.Clone(s.users),
		userSeq:      s.userSeq,
		patients:     maps.Clone(s.patients),
		doctors:      maps.Clone(s.doctors),
		queue:        maps.Clone(s.queue),
		appointments: maps.Clone(s.appointments),
		audit:        slices.Clone(s.audit),
	}
}

func (s *MemoryStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.userSeq = snap.userSeq
	s.patients = snap.patients
	s.doctors = snap.doctors
	s.queue = snap.queue
	s.appointments = snap.appointments
	s.audit = snap.audit
}

// Transaction runs fn with exclusive access to the store and restores the
// previous state when fn fails. Nested calls join the outer transaction.
func (s *MemoryStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Users returns the user repository view of the store
func (s *MemoryStore) Users() repository.UserRepository { return memUsers{s} }

// Patients returns the patient repository view of the store
func (s *MemoryStore) Patients() repository.PatientRepository { return memPatients{s} }

// Doctors returns the doctor repository view of the store
func (s *MemoryStore) Doctors() repository.DoctorRepository { return memDoctors{s} }

// Queue returns the queue repository view of the store
func (s *MemoryStore) Queue() repository.QueueRepository { return memQueue{s} }

// Appointments returns the appointment repository view of the store
func (s *MemoryStore) Appointments() repository.AppointmentRepository { return memAppointments{s} }

// AuditLogs returns the audit log repository view of the store
func (s *MemoryStore) AuditLogs() repository.AuditLogRepository { return memAudit{s} }

type memUsers struct{ *MemoryStore }

func (r memUsers) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range r.users {
		if u.Username == user.Username {
			return repository.ErrUsernameExists
		}
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}

	r.userSeq++
	now := r.now()
	user.ID = uuid.New()
	user.UserID = fmt.Sprintf("USER%04d", r.userSeq)
	if user.Role == "" {
		user.Role = models.RolePatient
	}
	user.FailedLoginAttempts = 0
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r memUsers) find(match func(models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.ID == id })
}

func (r memUsers) GetByUserID(_ context.Context, userID string) (*models.User, error) {
	userID = strings.TrimSpace(userID)
	return r.find(func(u models.User) bool { return u.UserID == userID })
}

func (r memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Username == username })
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.find(func(u models.User) bool { return u.Email == email })
}

func (r memUsers) GetByResetCode(_ context.Context, code string) (*models.User, error) {
	return r.find(func(u models.User) bool {
		return u.PasswordResetCode != nil && *u.PasswordResetCode == code
	})
}

func (r memUsers) LockByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r memUsers) UpdateCredentials(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	stored.Password = user.Password
	stored.TwoFactorEnabled = user.TwoFactorEnabled
	stored.VerificationCode = user.VerificationCode
	stored.VerificationCodeExpires = user.VerificationCodeExpires
	stored.FailedLoginAttempts = user.FailedLoginAttempts
	stored.LockedUntil = user.LockedUntil
	stored.PasswordResetCode = user.PasswordResetCode
	stored.PasswordResetExpires = user.PasswordResetExpires
	stored.LastLoginAt = user.LastLoginAt
	stored.UpdatedAt = r.now()
	user.UpdatedAt = stored.UpdatedAt
	r.users[user.ID] = stored
	return nil
}

func (r memUsers) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r memUsers) PurgeExpiredCodes(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, u := range r.users {
		touched := false
		if u.VerificationCodeExpires != nil && u.VerificationCodeExpires.Before(now) {
			u.ClearVerificationCode()
			touched = true
		}
		if u.PasswordResetExpires != nil && u.PasswordResetExpires.Before(now) {
			u.ClearResetCode()
			touched = true
		}
		if touched {
			r.users[id] = u
			n++
		}
	}
	return n, nil
}

type memPatients struct{ *MemoryStore }

func (r memPatients) Create(_ context.Context, patient *models.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if patient.UserID != nil {
		if _, ok := r.users[*patient.UserID]; !ok {
			return repository.ErrForeignKey
		}
		for _, p := range r.patients {
			if p.UserID != nil && *p.UserID == *patient.UserID {
				return repository.ErrProfileExists
			}
		}
	}
	now := r.now()
	patient.ID = uuid.New()
	patient.CreatedAt = now
	patient.UpdatedAt = now
	r.patients[patient.ID] = *patient
	return nil
}

func (r memPatients) GetByID(_ context.Context, id uuid.UUID) (*models.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, repository.ErrPatientNotFound
	}
	return &p, nil
}

func (r memPatients) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.patients {
		if p.UserID != nil && *p.UserID == userID {
			return &p, nil
		}
	}
	return nil, repository.ErrPatientNotFound
}

func (r memPatients) List(context.Context) ([]models.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Collect(maps.Values(r.patients))
	slices.SortFunc(out, func(a, b models.Patient) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (r memPatients) Update(_ context.Context, patient *models.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[patient.ID]; !ok {
		return repository.ErrPatientNotFound
	}
	patient.UpdatedAt = r.now()
	r.patients[patient.ID] = *patient
	return nil
}

func (r memPatients) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[id]; !ok {
		return repository.ErrPatientNotFound
	}
	delete(r.patients, id)
	maps.DeleteFunc(r.queue, func(_ uuid.UUID, e models.QueueEntry) bool { return e.PatientID == id })
	maps.DeleteFunc(r.appointments, func(_ uuid.UUID, a models.Appointment) bool { return a.PatientID == id })
	return nil
}

type memDoctors struct{ *MemoryStore }

func (r memDoctors) Create(_ context.Context, doctor *models.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doctor.UserID != nil {
		if _, ok := r.users[*doctor.UserID]; !ok {
			return repository.ErrForeignKey
		}
		for _, d := range r.doctors {
			if d.UserID != nil && *d.UserID == *doctor.UserID {
				return repository.ErrProfileExists
			}
		}
	}
	now := r.now()
	doctor.ID = uuid.New()
	doctor.QueueSerial = 0
	doctor.CreatedAt = now
	doctor.UpdatedAt = now
	r.doctors[doctor.ID] = *doctor
	return nil
}

func (r memDoctors) GetByID(_ context.Context, id uuid.UUID) (*models.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, repository.ErrDoctorNotFound
	}
	return &d, nil
}

func (r memDoctors) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.doctors {
		if d.UserID != nil && *d.UserID == userID {
			return &d, nil
		}
	}
	return nil, repository.ErrDoctorNotFound
}

func (r memDoctors) List(_ context.Context, specialization string) ([]models.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		if specialization == "" || strings.EqualFold(d.Specialization, specialization) {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b models.Doctor) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (r memDoctors) Update(_ context.Context, doctor *models.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.doctors[doctor.ID]
	if !ok {
		return repository.ErrDoctorNotFound
	}
	doctor.QueueSerial = stored.QueueSerial
	doctor.UpdatedAt = r.now()
	r.doctors[doctor.ID] = *doctor
	return nil
}

func (r memDoctors) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.doctors[id]; !ok {
		return repository.ErrDoctorNotFound
	}
	delete(r.doctors, id)
	maps.DeleteFunc(r.queue, func(_ uuid.UUID, e models.QueueEntry) bool { return e.DoctorID == id })
	maps.DeleteFunc(r.appointments, func(_ uuid.UUID, a models.Appointment) bool { return a.DoctorID == id })
	return nil
}

type memQueue struct{ *MemoryStore }

func (r memQueue) NextSerial(_ context.Context, doctorID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[doctorID]
	if !ok {
		return 0, repository.ErrDoctorNotFound
	}
	high := d.QueueSerial
	for _, e := range r.queue {
		if e.DoctorID == doctorID && e.Serial > high {
			high = e.Serial
		}
	}
	d.QueueSerial = high + 1
	r.doctors[doctorID] = d
	return d.QueueSerial, nil
}

func (r memQueue) Create(_ context.Context, entry *models.QueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.doctors[entry.DoctorID]; !ok {
		return repository.ErrForeignKey
	}
	if _, ok := r.patients[entry.PatientID]; !ok {
		return repository.ErrForeignKey
	}
	for _, e := range r.queue {
		if e.DoctorID == entry.DoctorID && e.Serial == entry.Serial {
			return repository.ErrDuplicateEntry
		}
	}
	now := r.now()
	entry.ID = uuid.New()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	r.queue[entry.ID] = *entry
	return nil
}

func (r memQueue) GetByID(_ context.Context, id uuid.UUID) (*models.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.queue[id]
	if !ok {
		return nil, repository.ErrQueueEntryNotFound
	}
	return &e, nil
}

func (r memQueue) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]models.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.QueueEntry, 0)
	for _, e := range r.queue {
		if e.DoctorID == doctorID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b models.QueueEntry) int { return a.Serial - b.Serial })
	return out, nil
}

func (r memQueue) ListByPatient(_ context.Context, patientID uuid.UUID) ([]models.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.QueueEntry, 0)
	for _, e := range r.queue {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b models.QueueEntry) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (r memQueue) UpdateStatus(_ context.Context, id uuid.UUID, status models.QueueStatus) (*models.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.queue[id]
	if !ok {
		return nil, repository.ErrQueueEntryNotFound
	}
	e.Status = status
	e.UpdatedAt = r.now()
	r.queue[id] = e
	return &e, nil
}

func (r memQueue) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queue[id]; !ok {
		return repository.ErrQueueEntryNotFound
	}
	delete(r.queue, id)
	return nil
}

type memAppointments struct{ *MemoryStore }

func (r memAppointments) Create(_ context.Context, appt *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.doctors[appt.DoctorID]; !ok {
		return repository.ErrForeignKey
	}
	if _, ok := r.patients[appt.PatientID]; !ok {
		return repository.ErrForeignKey
	}
	now := r.now()
	appt.ID = uuid.New()
	if appt.Status == "" {
		appt.Status = models.AppointmentScheduled
	}
	appt.CreatedAt = now
	appt.UpdatedAt = now
	r.appointments[appt.ID] = *appt
	return nil
}

func (r memAppointments) GetByID(_ context.Context, id uuid.UUID) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, repository.ErrAppointmentNotFound
	}
	return &a, nil
}

func (r memAppointments) List(_ context.Context, f repository.AppointmentFilter) ([]models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Appointment, 0)
	for _, a := range r.appointments {
		switch {
		case f.PatientID != nil && a.PatientID != *f.PatientID,
			f.DoctorID != nil && a.DoctorID != *f.DoctorID,
			f.Status != nil && a.Status != *f.Status,
			f.From != nil && a.AppointmentTime.Before(*f.From),
			f.To != nil && !a.AppointmentTime.Before(*f.To):
			continue
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b models.Appointment) int { return a.AppointmentTime.Compare(b.AppointmentTime) })
	return out, nil
}

func (r memAppointments) Update(_ context.Context, appt *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[appt.ID]; !ok {
		return repository.ErrAppointmentNotFound
	}
	appt.UpdatedAt = r.now()
	r.appointments[appt.ID] = *appt
	return nil
}

func (r memAppointments) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[id]; !ok {
		return repository.ErrAppointmentNotFound
	}
	delete(r.appointments, id)
	return nil
}

func (r memAppointments) MarkMissed(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, a := range r.appointments {
		if a.Status == models.AppointmentScheduled && a.AppointmentTime.Before(before) {
			a.Status = models.AppointmentMissed
			a.UpdatedAt = r.now()
			r.appointments[id] = a
			n++
		}
	}
	return n, nil
}

type memAudit struct{ *MemoryStore }

func (r memAudit) Create(_ context.Context, req *models.CreateAuditLogRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audit = append(r.audit, models.AuditLog{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Action:      req.Action,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		Description: req.Description,
		Metadata:    req.Metadata,
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		CreatedAt:   r.now(),
	})
	return nil
}

func (r memAudit) List(_ context.Context, f repository.AuditLogFilter) ([]models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AuditLog, 0)
	for _, l := range r.audit {
		switch {
		case f.UserID != nil && (l.UserID == nil || *l.UserID != *f.UserID),
			len(f.Actions) > 0 && !slices.Contains(f.Actions, l.Action),
			len(f.EntityTypes) > 0 && !slices.Contains(f.EntityTypes, l.EntityType),
			len(f.EntityIDs) > 0 && !slices.Contains(f.EntityIDs, l.EntityID),
			f.CreatedBefore != nil && !l.CreatedAt.Before(*f.CreatedBefore),
			f.CreatedAfter != nil && !l.CreatedAt.After(*f.CreatedAfter):
			continue
		}
		out = append(out, l)
	}
	slices.Reverse(out)
	if f.Offset != nil {
		out = out[min(*f.Offset, len(out)):]
	}
	if f.Limit != nil {
		out = out[:min(*f.Limit, len(out))]
	}
	return out, nil
}

func (r memAudit) CleanupOld(_ context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-olderThan)
	before := len(r.audit)
	r.audit = slices.DeleteFunc(r.audit, func(l models.AuditLog) bool { return l.CreatedAt.Before(cutoff) })
	return int64(before - len(r.audit)), nil
}
