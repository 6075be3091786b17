package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIntervalSchedule(t *testing.T) {
	s := &intervalSchedule{interval: 30 * time.Second}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now, s.Next(now), "first run is immediate")
	assert.Equal(t, now.Add(30*time.Second), s.Next(now))
}

func TestPollerRunsImmediatelyAndRepeats(t *testing.T) {
	var runs atomic.Int32
	p, err := NewPoller("test", 20*time.Millisecond, func(context.Context) { runs.Add(1) }, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 100*time.Millisecond, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	p.Stop()
	after := runs.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Stop")
	assert.Error(t, p.Start(context.Background()))
}

func TestPollerStopWaitsForRun(t *testing.T) {
	entered := make(chan struct{})
	var finished atomic.Bool
	p, err := NewPoller("slow", time.Hour, func(ctx context.Context) {
		close(entered)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	<-entered
	p.Stop()
	assert.True(t, finished.Load())
	p.Stop()
}

func TestPollerSkipsOverlappingRuns(t *testing.T) {
	var (
		active  atomic.Int32
		overlap atomic.Bool
		runs    atomic.Int32
	)
	p, err := NewPoller("overlap", 5*time.Millisecond, func(ctx context.Context) {
		if active.Add(1) > 1 {
			overlap.Store(true)
		}
		runs.Add(1)
		select {
		case <-ctx.Done():
		case <-time.After(30 * time.Millisecond):
		}
		active.Add(-1)
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	p.Stop()
	assert.False(t, overlap.Load())
}

func TestNewPollerRejectsInvalid(t *testing.T) {
	_, err := NewPoller("x", 0, func(context.Context) {}, zap.NewNop())
	assert.Error(t, err)
	_, err = NewPoller("x", time.Second, nil, zap.NewNop())
	assert.Error(t, err)
}
