// internal/utils/metrics/metrics.go
package metrics

import (
	"time"
)

const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// ObserveQuote записывает длительность запроса котировки к площадке.
func (c *Collector) ObserveQuote(venue, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.quoteLatency.WithLabelValues(venue, outcome).Observe(d.Seconds())
}

// VenueFailure считает площадку, отброшенную агрегатором.
func (c *Collector) VenueFailure(venue, kind string) {
	if c == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	c.venueFailures.WithLabelValues(venue, kind).Inc()
}

// ExecutionOutcome считает исполнение по конечному состоянию.
func (c *Collector) ExecutionOutcome(state string) {
	if c == nil {
		return
	}
	c.executionOutcomes.WithLabelValues(state).Inc()
}

func (c *Collector) SubmitRetry() {
	if c == nil {
		return
	}
	c.submitRetries.Inc()
}

// ObserveBook обновляет размер последней объединенной книги.
func (c *Collector) ObserveBook(bids, asks int) {
	if c == nil {
		return
	}
	c.bookOrders.WithLabelValues("bid").Set(float64(bids))
	c.bookOrders.WithLabelValues("ask").Set(float64(asks))
}
