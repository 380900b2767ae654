package postgres_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"medqueue/internal/models"
	"medqueue/internal/queue"
	"medqueue/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQueueRepository_Serials(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	doctor := r.doctor(t, "Dr. Who")
	patient := r.patient(t, "Patty")

	for want := 1; want <= 3; want++ {
		serial, err := r.queue.NextSerial(ctx, doctor.ID)
		require.NoError(t, err)
		assert.Equal(t, want, serial)
	}

	_, err := r.queue.NextSerial(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrDoctorNotFound)

	entry := &models.QueueEntry{DoctorID: doctor.ID, PatientID: patient.ID, Serial: 3, Status: models.QueueStatusWaiting}
	require.NoError(t, r.queue.Create(ctx, entry))

	dup := &models.QueueEntry{DoctorID: doctor.ID, PatientID: patient.ID, Serial: 3, Status: models.QueueStatusWaiting}
	assert.ErrorIs(t, r.queue.Create(ctx, dup), repository.ErrDuplicateEntry)

	orphan := &models.QueueEntry{DoctorID: doctor.ID, PatientID: uuid.New(), Serial: 9, Status: models.QueueStatusWaiting}
	assert.ErrorIs(t, r.queue.Create(ctx, orphan), repository.ErrForeignKey)
}

func TestQueueRepository_Lifecycle(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	allocator := queue.NewAllocator(r.queue, zap.NewNop())
	doctor := r.doctor(t, "Dr. Who")
	patient := r.patient(t, "Patty")

	first, err := allocator.Enqueue(ctx, doctor.ID, patient.ID)
	require.NoError(t, err)
	second, err := allocator.Enqueue(ctx, doctor.ID, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Serial)
	assert.Equal(t, 2, second.Serial)

	served, err := allocator.UpdateStatus(ctx, first.ID, models.QueueStatusServed)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusServed, served.Status)
	assert.False(t, served.UpdatedAt.Before(served.CreatedAt))

	require.NoError(t, allocator.Remove(ctx, second.ID))
	assert.ErrorIs(t, allocator.Remove(ctx, second.ID), queue.ErrNotFound)

	third, err := allocator.Enqueue(ctx, doctor.ID, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, third.Serial, "removed serials are not handed out again")

	_, err = allocator.Enqueue(ctx, doctor.ID, uuid.New())
	require.ErrorIs(t, err, queue.ErrNotFound)
	fourth, err := allocator.Enqueue(ctx, doctor.ID, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, fourth.Serial, "a rolled back insert does not consume a serial")

	byDoctor, err := allocator.ListForDoctor(ctx, doctor.ID)
	require.NoError(t, err)
	require.Len(t, byDoctor, 3)
	assert.Equal(t, []int{1, 3, 4}, []int{byDoctor[0].Serial, byDoctor[1].Serial, byDoctor[2].Serial})

	byPatient, err := allocator.ListForPatient(ctx, patient.ID)
	require.NoError(t, err)
	assert.Len(t, byPatient, 3)

	_, err = allocator.UpdateStatus(ctx, uuid.New(), models.QueueStatusServed)
	assert.ErrorIs(t, err, queue.ErrNotFound)
}

func TestQueueRepository_ConcurrentEnqueue(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	allocator := queue.NewAllocator(r.queue, zap.NewNop())
	busy := r.doctor(t, "Dr. Busy")
	quiet := r.doctor(t, "Dr. Quiet")
	patient := r.patient(t, "Patty")

	const perDoctor = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		serials = map[uuid.UUID][]int{}
		errs    []error
	)
	for i := 0; i < perDoctor; i++ {
		for _, doctorID := range []uuid.UUID{busy.ID, quiet.ID} {
			wg.Add(1)
			go func(doctorID uuid.UUID) {
				defer wg.Done()
				entry, err := allocator.Enqueue(ctx, doctorID, patient.ID)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				serials[doctorID] = append(serials[doctorID], entry.Serial)
			}(doctorID)
		}
	}
	wg.Wait()
	require.Empty(t, errs)

	want := make([]int, perDoctor)
	for i := range want {
		want[i] = i + 1
	}
	for _, doctorID := range []uuid.UUID{busy.ID, quiet.ID} {
		got := serials[doctorID]
		sort.Ints(got)
		assert.Equal(t, want, got, "serials for one doctor are dense and unique")
	}
}

func TestQueueRepository_DoctorDeleteCascades(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	allocator := queue.NewAllocator(r.queue, zap.NewNop())
	doctor := r.doctor(t, "Dr. Gone")
	patient := r.patient(t, "Patty")

	entry, err := allocator.Enqueue(ctx, doctor.ID, patient.ID)
	require.NoError(t, err)
	require.NoError(t, r.doctors.Delete(ctx, doctor.ID))

	_, err = r.queue.GetByID(ctx, entry.ID)
	assert.ErrorIs(t, err, repository.ErrQueueEntryNotFound)
}
