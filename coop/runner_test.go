package coop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunExclusiveRunsFn(t *testing.T) {
	r := NewRunner()
	ran, err := r.RunExclusive(context.Background(), func(ctx context.Context) error { return nil })
	require.True(t, ran)
	require.NoError(t, err)
}

func TestRunExclusivePropagatesError(t *testing.T) {
	r := NewRunner()
	ran, err := r.RunExclusive(context.Background(), func(ctx context.Context) error { return context.DeadlineExceeded })
	require.True(t, ran)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunExclusiveDropsConcurrentTrigger(t *testing.T) {
	r := NewRunner()
	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ran, err := r.RunExclusive(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
		require.True(t, ran)
		require.NoError(t, err)
	}()

	<-started
	require.True(t, r.Busy())

	ran, err := r.RunExclusive(context.Background(), func(ctx context.Context) error {
		t.Fatal("fn must not run while another task is in flight")
		return nil
	})
	require.False(t, ran)
	require.NoError(t, err)

	close(release)
	wg.Wait()

	require.False(t, r.Busy())
	ran, err = r.RunExclusive(context.Background(), func(ctx context.Context) error { return nil })
	require.True(t, ran)
	require.NoError(t, err)
}

func TestBusyReflectsInFlightState(t *testing.T) {
	r := NewRunner()
	require.False(t, r.Busy())

	done := make(chan struct{})
	go func() {
		_, _ = r.RunExclusive(context.Background(), func(ctx context.Context) error {
			time.Sleep(10 * time.Millisecond)
			return nil
		})
		close(done)
	}()
	time.Sleep(2 * time.Millisecond)
	require.True(t, r.Busy())
	<-done
	require.False(t, r.Busy())
}
