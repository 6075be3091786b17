package aggregator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rovshanmuradov/swap-router/internal/dex"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerSupersedes(t *testing.T) {
	var tr Tracker
	ctx1, first := tr.Begin(context.Background())
	_, second := tr.Begin(context.Background())

	assert.Error(t, ctx1.Err(), "previous request is cancelled")
	assert.False(t, first.Current())
	assert.True(t, second.Current())

	assert.False(t, first.Publish(func() { t.Error("stale result published") }))
	published := false
	assert.True(t, second.Publish(func() { published = true }))
	assert.True(t, published)

	tr.Stop()
	assert.False(t, second.Current())
}

func TestSessionDiscardsStaleResult(t *testing.T) {
	started := make(chan struct{})
	slow := &fakeVenue{venue: types.VenueJupiter, quote: func(ctx context.Context, req dex.QuoteRequest) (types.Quote, error) {
		if req.Amount == 1 {
			close(started)
			// ответ приходит уже после отмены
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
		}
		return types.Quote{InputToken: req.InputToken, OutputToken: req.OutputToken, InputAmount: req.Amount, OutputAmount: req.Amount * 10}, nil
	}}
	a := newAggregator(t, DefaultConfig(), nil, slow)
	s := a.NewSession()
	defer s.Close()

	var (
		mu      sync.Mutex
		results []uint64
		wg      sync.WaitGroup
	)
	publish := func(best *BestRoute, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			results = append(results, best.Best.InputAmount)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Refresh(context.Background(), QuoteRequest{Input: types.NativeSOL, Output: usdc, Amount: 1, Deadline: time.Second}, publish)
	}()
	<-started

	ok := s.Refresh(context.Background(), QuoteRequest{Input: types.NativeSOL, Output: usdc, Amount: 2, Deadline: time.Second}, publish)
	require.True(t, ok)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{2}, results)
}

func TestPublishCallbackUsesTracker(t *testing.T) {
	var tr Tracker
	_, tk := tr.Begin(context.Background())

	done := make(chan bool, 1)
	go func() {
		done <- tk.Publish(func() {
			assert.True(t, tk.Current())
			// новый запрос из колбэка вытесняет текущий
			_, next := tr.Begin(context.Background())
			assert.False(t, tk.Current())
			assert.True(t, next.Current())
		})
	}()

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Publish callback blocked on the tracker")
	}
}

func TestPublishWaitsForRunningCallback(t *testing.T) {
	var tr Tracker
	_, first := tr.Begin(context.Background())

	entered := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan bool, 1)
	go func() {
		firstDone <- first.Publish(func() {
			close(entered)
			<-release
		})
	}()
	<-entered

	_, second := tr.Begin(context.Background())
	secondDone := make(chan bool, 1)
	go func() { secondDone <- second.Publish(func() {}) }()

	select {
	case <-secondDone:
		t.Fatal("newer result published while the older callback was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	assert.True(t, <-firstDone)
	assert.True(t, <-secondDone)
}

func TestSessionRefreshFromPublish(t *testing.T) {
	a := newAggregator(t, DefaultConfig(), nil, quoting(types.VenueOrca, 100, 0.1))
	s := a.NewSession()
	defer s.Close()

	req := QuoteRequest{Input: types.NativeSOL, Output: usdc, Amount: 1, Deadline: time.Second}
	nested := make(chan bool, 1)
	ok := s.Refresh(context.Background(), req, func(best *BestRoute, err error) {
		require.NoError(t, err)
		go func() {
			nested <- s.Refresh(context.Background(), req, func(*BestRoute, error) {})
		}()
	})
	require.True(t, ok)

	select {
	case ok := <-nested:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("nested refresh never published")
	}
}
