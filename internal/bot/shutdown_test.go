package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func TestShutdownOrder(t *testing.T) {
	sh := NewShutdownHandler(zap.NewNop(), time.Second)

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) func() error {
		return func() error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	require.NoError(t, sh.AddFunc("rpc", record("rpc")))
	require.NoError(t, sh.AddFunc("venues", record("venues")))
	require.NoError(t, sh.AddFunc("watcher", record("watcher")))

	require.NoError(t, sh.Shutdown(context.Background()))
	assert.Equal(t, []string{"watcher", "venues", "rpc"}, order)

	require.NoError(t, sh.Shutdown(context.Background()), "second call is a no-op")
	assert.Len(t, order, 3)
}

func TestShutdownCollectsErrors(t *testing.T) {
	sh := NewShutdownHandler(zap.NewNop(), time.Second)
	sh.AddFunc("a", func() error { return errors.New("a failed") })
	sh.AddFunc("b", func() error { return nil })
	sh.AddFunc("c", func() error { return errors.New("c failed") })

	err := sh.Shutdown(context.Background())
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "c: c failed")
	assert.Contains(t, errs[1].Error(), "a: a failed")
}

func TestShutdownTimeout(t *testing.T) {
	sh := NewShutdownHandler(zap.NewNop(), time.Second)
	release := make(chan struct{})
	defer close(release)

	closed := false
	sh.AddFunc("first", func() error { closed = true; return nil })
	sh.AddFunc("stuck", func() error { <-release; return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sh.Shutdown(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, err.Error(), "stuck: shutdown timeout")
	assert.Contains(t, err.Error(), "first: shutdown timeout")
	assert.False(t, closed)
}

func TestWaitReturnsOnContextDone(t *testing.T) {
	sh := NewShutdownHandler(zap.NewNop(), time.Second)
	closed := make(chan struct{})
	sh.AddFunc("svc", func() error { close(closed); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sh.Wait(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return")
	}
	<-closed
}

func TestAddAfterShutdown(t *testing.T) {
	sh := NewShutdownHandler(zap.NewNop(), time.Second)
	require.NoError(t, sh.AddFunc("before", func() error { return nil }))
	assert.False(t, sh.Closed())

	require.NoError(t, sh.Shutdown(context.Background()))
	assert.True(t, sh.Closed())

	called := false
	err := sh.AddFunc("late", func() error { called = true; return nil })
	require.ErrorIs(t, err, ErrShutdownStarted)
	assert.Contains(t, err.Error(), "late")

	require.NoError(t, sh.Shutdown(context.Background()))
	assert.False(t, called)
}
