package postgres_test

import (
	"context"
	"testing"

	"medqueue/internal/models"
	"medqueue/internal/repository"
	"medqueue/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorRepository(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	owner := r.user(t, "drwho", models.RoleDoctor)

	linked := &models.Doctor{UserID: &owner.ID, Name: "Dr. Who", Specialization: "Cardiology", AvailableDays: "Mon,Wed"}
	require.NoError(t, r.doctors.Create(ctx, linked))
	r.doctor(t, "Dr. Alpha")

	tests := []struct {
		name    string
		input   models.Doctor
		wantErr error
	}{
		{name: "second profile for account", input: models.Doctor{UserID: &owner.ID, Name: "Dr. Again", Specialization: "X"}, wantErr: repository.ErrProfileExists},
		{name: "unknown account", input: models.Doctor{UserID: testutil.UUID(uuid.New()), Name: "Dr. Ghost", Specialization: "X"}, wantErr: repository.ErrForeignKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, r.doctors.Create(ctx, &tt.input), tt.wantErr)
		})
	}

	got, err := r.doctors.GetByUserID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, linked.ID, got.ID)
	assert.Equal(t, "Mon,Wed", got.AvailableDays)

	all, err := r.doctors.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Dr. Alpha", all[0].Name)

	cardio, err := r.doctors.List(ctx, "cardiology")
	require.NoError(t, err)
	require.Len(t, cardio, 1)

	got.Chamber = "Room 4"
	require.NoError(t, r.doctors.Update(ctx, got))
	got, err = r.doctors.GetByID(ctx, linked.ID)
	require.NoError(t, err)
	assert.Equal(t, "Room 4", got.Chamber)

	require.NoError(t, r.doctors.Delete(ctx, linked.ID))
	assert.ErrorIs(t, r.doctors.Delete(ctx, linked.ID), repository.ErrDoctorNotFound)
	_, err = r.doctors.GetByID(ctx, linked.ID)
	assert.ErrorIs(t, err, repository.ErrDoctorNotFound)
}

func TestPatientRepository(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	owner := r.user(t, "patty", models.RolePatient)

	p := &models.Patient{UserID: &owner.ID, Name: "Patty", Age: testutil.Int(34)}
	require.NoError(t, r.patients.Create(ctx, p))
	assert.ErrorIs(t, r.patients.Create(ctx, &models.Patient{UserID: &owner.ID, Name: "Twin"}), repository.ErrProfileExists)
	r.patient(t, "Walk In")

	got, err := r.patients.GetByUserID(ctx, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Age)
	assert.Equal(t, 34, *got.Age)

	got.Phone = "555-0100"
	require.NoError(t, r.patients.Update(ctx, got))
	got, err = r.patients.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0100", got.Phone)

	list, err := r.patients.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, r.patients.Delete(ctx, p.ID))
	_, err = r.patients.GetByUserID(ctx, owner.ID)
	assert.ErrorIs(t, err, repository.ErrPatientNotFound)
	assert.ErrorIs(t, r.patients.Update(ctx, got), repository.ErrPatientNotFound)
}
