package request

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/carwave/carpool/pkg/errors"
)

func TestNew(t *testing.T) {
	now := time.Now()
	r := New(uuid.New(), uuid.New(), now)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, now, r.CreatedAt)
	assert.Equal(t, now, r.LastModified)
	assert.True(t, r.CanWithdraw())
}

func TestDecide_Transitions(t *testing.T) {
	tests := []struct {
		action Action
		want   Status
	}{
		{ActionAccept, StatusAccepted},
		{ActionReject, StatusRejected},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			created := time.Now().Add(-time.Hour)
			r := New(uuid.New(), uuid.New(), created)

			decided := time.Now()
			require.NoError(t, r.Decide(tt.action, decided))
			assert.Equal(t, tt.want, r.Status)
			assert.Equal(t, decided, r.LastModified)
			assert.True(t, r.Status.Terminal())
			assert.False(t, r.CanWithdraw())
		})
	}
}

func TestDecide_TerminalIsFinal(t *testing.T) {
	for _, first := range []Action{ActionAccept, ActionReject} {
		for _, second := range []Action{ActionAccept, ActionReject} {
			r := New(uuid.New(), uuid.New(), time.Now())
			require.NoError(t, r.Decide(first, time.Now()))
			status, modified := r.Status, r.LastModified

			err := r.Decide(second, time.Now().Add(time.Minute))
			assert.True(t, errors.Is(err, apperrors.ErrRequestDecided))
			assert.Equal(t, status, r.Status)
			assert.Equal(t, modified, r.LastModified)
		}
	}
}

func TestDecide_UnknownAction(t *testing.T) {
	r := New(uuid.New(), uuid.New(), time.Now())
	err := r.Decide(Action("maybe"), time.Now())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Equal(t, StatusPending, r.Status)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Accept")
	require.NoError(t, err)
	assert.Equal(t, ActionAccept, a)

	_, err = ParseAction("cancel")
	assert.Equal(t, "action", apperrors.GetAppError(err).Field)
}
