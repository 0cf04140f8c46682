package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carwave/carpool/internal/domain/user"
	"github.com/carwave/carpool/internal/store/memory"
	"github.com/carwave/carpool/internal/store/storetest"
	apperrors "github.com/carwave/carpool/pkg/errors"
)

type forgetful struct {
	forgotten []uuid.UUID
}

func (f *forgetful) ForgetUser(_ context.Context, id uuid.UUID) {
	f.forgotten = append(f.forgotten, id)
}

func TestUserLifecycle(t *testing.T) {
	st := memory.New()
	svc := NewService(st, nil, nil)
	ctx := context.Background()

	age := 31
	u, err := svc.Create(ctx, user.CreateInput{Username: " dora ", FirstName: "Dora", Age: &age})
	require.NoError(t, err)
	assert.Equal(t, "dora", u.Username)

	_, err = svc.Create(ctx, user.CreateInput{Username: "dora"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateUser)

	_, err = svc.Create(ctx, user.CreateInput{Username: ""})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	sex := user.SexFemale
	updated, err := svc.Update(ctx, u.ID, u.ID, user.UpdateInput{Sex: &sex})
	require.NoError(t, err)
	require.NotNil(t, updated.Sex)
	assert.Equal(t, user.SexFemale, *updated.Sex)
	assert.Equal(t, 31, *updated.Age)

	bad := user.Sex("Q")
	_, err = svc.Update(ctx, u.ID, u.ID, user.UpdateInput{Sex: &bad})
	assert.Equal(t, "sex", apperrors.GetAppError(err).Field)

	other := uuid.New()
	_, err = svc.Update(ctx, other, u.ID, user.UpdateInput{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	assert.True(t, apperrors.HasCode(svc.Delete(ctx, other, u.ID), apperrors.CodeForbidden))

	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, user.SexFemale, *got.Sex)
}

func TestDeleteCascades(t *testing.T) {
	st := memory.New()
	rep := &forgetful{}
	svc := NewService(st, rep, nil)
	ctx := context.Background()

	driver := storetest.MustUser(t, st, nil, nil)
	rider := storetest.MustUser(t, st, nil, nil)
	r := storetest.MustRide(t, st, storetest.RideParams{Driver: driver.ID, To: storetest.Berlin, ArriveAt: storetest.Base})
	storetest.MustAccepted(t, st, r.ID, rider.ID)

	require.NoError(t, svc.Delete(ctx, driver.ID, driver.ID))
	assert.Equal(t, []uuid.UUID{driver.ID}, rep.forgotten)

	_, err := svc.Get(ctx, driver.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	_, err = st.GetRide(ctx, r.ID)
	assert.ErrorIs(t, err, apperrors.ErrRideNotFound)
	_, err = st.GetRequest(ctx, r.ID, rider.ID)
	assert.ErrorIs(t, err, apperrors.ErrRequestNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, driver.ID, driver.ID), apperrors.ErrUserNotFound)
	assert.Len(t, rep.forgotten, 1)
}
