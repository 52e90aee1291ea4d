// Package metrics экспортирует метрики жизненного цикла звонков в
// Prometheus. Collector подписывается на шину событий.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arzzra/phone_integration/pkg/events"
	"github.com/arzzra/phone_integration/pkg/types"
)

const namespace = "pil"

// Collector собирает метрики по событиям шины
type Collector struct {
	eventsTotal   *prometheus.CounterVec
	callsActive   prometheus.Gauge
	callDuration  prometheus.Histogram
	transfers     *prometheus.CounterVec
	registrations *prometheus.CounterVec
}

var _ events.Listener = (*Collector)(nil)

// NewCollector регистрирует метрики в reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of call lifecycle events by type",
		}, []string{"type"}),

		callsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_active",
			Help:      "Number of call legs that have not ended",
		}),

		callDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Duration of connected calls in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 180, 300, 900, 1800, 3600},
		}),

		transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attended_transfers_total",
			Help:      "Total number of attended transfers by outcome",
		}, []string{"outcome"}),

		registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Total number of registration attempts by result",
		}, []string{"result"}),
	}
}

// OnEvent обновляет метрики по событию
func (c *Collector) OnEvent(e events.Event) {
	c.eventsTotal.WithLabelValues(e.Type.String()).Inc()
	c.callsActive.Set(float64(liveLegs(e.State)))

	switch e.Type {
	case events.CallEnded:
		c.observeDuration(e.State.Active)
	case events.AttendedTransferStarted:
		c.transfers.WithLabelValues("started").Inc()
	case events.AttendedTransferEnded:
		c.transfers.WithLabelValues("completed").Inc()
		c.observeDuration(e.State.Inactive)
	case events.AttendedTransferAborted:
		c.transfers.WithLabelValues("aborted").Inc()
	}
}

// ObserveRegistration учитывает результат регистрации
func (c *Collector) ObserveRegistration(ok bool) {
	result := "failed"
	if ok {
		result = "registered"
	}
	c.registrations.WithLabelValues(result).Inc()
}

func (c *Collector) observeDuration(snap *types.CallSnapshot) {
	if snap == nil || snap.ConnectedAt.IsZero() {
		return
	}
	c.callDuration.Observe(snap.Duration.Seconds())
}

func liveLegs(state types.SessionState) int {
	n := 0
	for _, snap := range []*types.CallSnapshot{state.Active, state.Inactive} {
		if snap != nil && !snap.State.IsTerminal() {
			n++
		}
	}
	return n
}
