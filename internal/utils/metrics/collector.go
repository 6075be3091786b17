// internal/utils/metrics/collector.go
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "swap_router"

// Collector держит метрики маршрутизатора. Все методы безопасны на nil.
type Collector struct {
	quoteLatency      *prometheus.HistogramVec
	venueFailures     *prometheus.CounterVec
	executionOutcomes *prometheus.CounterVec
	submitRetries     prometheus.Counter
	bookOrders        *prometheus.GaugeVec
}

// NewCollector создает коллектор и регистрирует его метрики в reg.
// nil reg - метрики не регистрируются (тесты, встраивание).
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		quoteLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "venue_quote_duration_seconds",
				Help:      "Venue quote latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"venue", "outcome"},
		),
		venueFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "venue_failures_total",
				Help:      "Venue calls dropped by the aggregator",
			},
			[]string{"venue", "kind"},
		),
		executionOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Finished executions by terminal state",
			},
			[]string{"state"},
		),
		submitRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submit_retries_total",
				Help:      "Transaction submissions retried after a transient error",
			},
		),
		bookOrders: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "order_book_orders",
				Help:      "Orders in the last merged book",
			},
			[]string{"side"},
		),
	}

	if reg == nil {
		return c, nil
	}
	var errs error
	for _, m := range []prometheus.Collector{
		c.quoteLatency, c.venueFailures, c.executionOutcomes, c.submitRetries, c.bookOrders,
	} {
		if err := reg.Register(m); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				errs = errors.Join(errs, err)
			}
		}
	}
	if errs != nil {
		return nil, errs
	}
	return c, nil
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.quoteLatency.Reset()
	c.venueFailures.Reset()
	c.executionOutcomes.Reset()
	c.bookOrders.Reset()
}
