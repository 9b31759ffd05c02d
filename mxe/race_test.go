package mxe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ruteri/confidential-move-client/interfaces"
	"github.com/stretchr/testify/require"
)

func TestRace(t *testing.T) {
	t.Run("operation wins", func(t *testing.T) {
		v, err := Race(context.Background(), time.Second, func(ctx context.Context) (int, error) {
			time.Sleep(10 * time.Millisecond)
			return 42, nil
		})
		require.NoError(t, err)
		require.Equal(t, 42, v)
	})

	t.Run("operation error is returned", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Race(context.Background(), time.Second, func(ctx context.Context) (int, error) {
			return 0, boom
		})
		require.ErrorIs(t, err, boom)
	})

	t.Run("timer wins and loser is cancelled", func(t *testing.T) {
		cancelled := make(chan struct{})
		v, err := Race(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			close(cancelled)
			return 42, ctx.Err()
		})
		require.ErrorIs(t, err, interfaces.ErrFinalizationTimeout)
		require.Zero(t, v)

		select {
		case <-cancelled:
		case <-time.After(time.Second):
			t.Fatal("losing operation was not cancelled")
		}
	})

	t.Run("parent context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Race(ctx, time.Second, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}
