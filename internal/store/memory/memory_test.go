package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carwave/carpool/internal/store"
	"github.com/carwave/carpool/internal/store/storetest"
)

func TestStoreSuite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestReturnedRowsAreCopies(t *testing.T) {
	s := New()
	age := 20
	u := storetest.MustUser(t, s, &age, nil)

	got, err := s.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	*got.Age = 99

	again, err := s.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, *again.Age)
}

func TestWithTx_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithTx(ctx, func(context.Context, store.Queries) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestWithTx_Serializes(t *testing.T) {
	s := New()
	u := storetest.MustUser(t, s, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithTx(context.Background(), func(ctx context.Context, q store.Queries) error {
				cur, err := q.GetUser(ctx, u.ID)
				if err != nil {
					return err
				}
				n := 0
				if cur.Age != nil {
					n = *cur.Age
				}
				n++
				cur.Age = &n
				return q.UpdateUser(ctx, cur)
			})
		}()
	}
	wg.Wait()

	got, err := s.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, *got.Age)
}
