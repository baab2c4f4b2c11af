package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/repository/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, memstore.New().Queries(), "memory", time.Hour)

	_, err := s.Lookup(ctx, "k1", "h1")
	require.ErrorIs(t, err, ErrNotFound)

	reserved, err := s.Reserve(ctx, "k1", "h1", "POST", "/v1/sessions/x/payments")
	require.NoError(t, err)
	assert.True(t, reserved)

	reserved, err = s.Reserve(ctx, "k1", "h1", "POST", "/v1/sessions/x/payments")
	require.NoError(t, err)
	assert.False(t, reserved)

	_, err = s.Lookup(ctx, "k1", "h1")
	require.ErrorIs(t, err, ErrInProgress)

	rec, err := s.Finalize(ctx, "k1", "h1", 201, []byte(`{"ok":true}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, 201, rec.Status)

	rec, err = s.Lookup(ctx, "k1", "h1")
	require.NoError(t, err)
	assert.Equal(t, "memory", rec.ServedBy)
	assert.JSONEq(t, `{"ok":true}`, string(rec.Body))

	_, err = s.Lookup(ctx, "k1", "other")
	require.ErrorIs(t, err, ErrHashMismatch)
}

func TestWaitForCompletion(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, memstore.New().Queries(), "memory", time.Hour)
	_, err := s.Reserve(ctx, "k2", "h2", "POST", "/p")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = s.Finalize(context.Background(), "k2", "h2", 200, []byte("done"), "text/plain")
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	rec, err := s.WaitForCompletion(waitCtx, "k2", "h2")
	require.NoError(t, err)
	assert.Equal(t, "done", string(rec.Body))

	_, err = s.Reserve(ctx, "k3", "h3", "POST", "/p")
	require.NoError(t, err)
	short, cancelShort := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancelShort()
	_, err = s.WaitForCompletion(short, "k3", "h3")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
