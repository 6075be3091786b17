// internal/aggregator/fanout.go
package aggregator

import (
	"context"
	"errors"
	"time"

	"github.com/rovshanmuradov/swap-router/internal/types"
	"golang.org/x/sync/errgroup"
)

// outcome is the result of one venue call.
type outcome[T any] struct {
	Index    int
	Venue    types.Venue
	Value    T
	Err      error
	Elapsed  time.Duration
	TimedOut bool
}

// fanOut runs call once per source and joins on all-done or deadline.
// It returns no later than deadline+grace: calls that have not reported by then
// get a KindUnavailable outcome and their late results are dropped.
// The result has one outcome per source, in source order.
func fanOut[S any, T any](
	ctx context.Context,
	op string,
	deadline, grace time.Duration,
	sources []S,
	venueOf func(S) types.Venue,
	call func(context.Context, S) (T, error),
) []outcome[T] {
	if len(sources) == 0 {
		return nil
	}
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	// буфер на все источники: опоздавшие пишут без блокировки после нашего возврата
	results := make(chan outcome[T], len(sources))
	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			began := time.Now()
			v, err := call(callCtx, src)
			results <- outcome[T]{
				Index:    i,
				Venue:    venueOf(src),
				Value:    v,
				Err:      err,
				Elapsed:  time.Since(began),
				TimedOut: errors.Is(err, context.DeadlineExceeded),
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	hard := time.NewTimer(deadline + grace)
	defer hard.Stop()

	got := make([]*outcome[T], len(sources))
	received := 0
collect:
	for received < len(sources) {
		select {
		case r, ok := <-results:
			if !ok {
				break collect
			}
			got[r.Index] = &r
			received++
		case <-hard.C:
			break collect
		case <-ctx.Done():
			break collect
		}
	}

	out := make([]outcome[T], len(sources))
	for i, src := range sources {
		if got[i] != nil {
			out[i] = *got[i]
			continue
		}
		cause := ctx.Err()
		if cause == nil {
			cause = context.DeadlineExceeded
		}
		out[i] = outcome[T]{
			Index:    i,
			Venue:    venueOf(src),
			Err:      types.NewVenueError(venueOf(src), types.KindUnavailable, op, cause),
			Elapsed:  time.Since(start),
			TimedOut: true,
		}
	}
	return out
}
