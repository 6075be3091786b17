// internal/aggregator/tracker.go
package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/rovshanmuradov/swap-router/internal/types"
)

// Tracker issues tickets for successive requests. Beginning a new request
// cancels the previous one, and only the latest ticket may publish.
type Tracker struct {
	// pub сериализует вызовы Publish, mu защищает состояние
	pub    sync.Mutex
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	closed bool
}

// Ticket identifies one request issued by a Tracker.
type Ticket struct {
	tracker *Tracker
	id      uint64
}

// Begin starts a request derived from ctx and supersedes the one in flight.
func (t *Tracker) Begin(ctx context.Context) (context.Context, Ticket) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	t.seq++
	rctx, cancel := context.WithCancel(ctx)
	if t.closed {
		cancel()
	}
	t.cancel = cancel
	return rctx, Ticket{tracker: t, id: t.seq}
}

// Current reports whether no newer request has started.
func (tk Ticket) Current() bool {
	tk.tracker.mu.Lock()
	defer tk.tracker.mu.Unlock()
	return tk.current()
}

func (tk Ticket) current() bool {
	return !tk.tracker.closed && tk.tracker.seq == tk.id
}

// Publish runs fn only if the ticket is still current. Publishes are
// serialized and the ticket is checked again once the previous one returns, so
// a superseded result never lands after a newer one. fn may call Current or
// Begin, but must not wait for another Publish on the same tracker (run a
// nested Session.Refresh in its own goroutine).
func (tk Ticket) Publish(fn func()) bool {
	tk.tracker.pub.Lock()
	defer tk.tracker.pub.Unlock()
	if !tk.Current() {
		return false
	}
	fn()
	return true
}

// Stop cancels the in-flight request; no ticket publishes afterwards.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// QuoteRequest is one quote refresh issued through a Session.
type QuoteRequest struct {
	Input       types.Token
	Output      types.Token
	Amount      uint64
	SlippageBps uint16
	Deadline    time.Duration
}

// Session drives repeated quote requests for one consumer (for example a form
// whose amount is being edited). Results of superseded requests are discarded.
type Session struct {
	agg     *Aggregator
	tracker Tracker
}

func (a *Aggregator) NewSession() *Session {
	return &Session{agg: a}
}

// Refresh cancels the previous request, runs GetBestRoute and hands the result
// to publish only if no newer Refresh started meanwhile. It reports whether
// publish was called.
func (s *Session) Refresh(ctx context.Context, req QuoteRequest, publish func(*BestRoute, error)) bool {
	rctx, ticket := s.tracker.Begin(ctx)
	best, err := s.agg.GetBestRoute(rctx, req.Input, req.Output, req.Amount, req.SlippageBps, req.Deadline)
	return ticket.Publish(func() { publish(best, err) })
}

// Close stops the session; later results are discarded.
func (s *Session) Close() {
	s.tracker.Stop()
}
