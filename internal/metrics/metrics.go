// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dferrero/diffscope/internal/queue"
)

type Metrics struct {
	WebhookDeliveries *prometheus.CounterVec
	ItemsProcessed    *prometheus.CounterVec
	QueueItems        *prometheus.GaugeVec
	QueueStuck        prometheus.Gauge
	HunksIndexed      prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diffscope_webhook_deliveries_total",
			Help: "Webhook deliveries by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		ItemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diffscope_queue_items_processed_total",
			Help: "Queue items processed by outcome.",
		}, []string{"outcome"}),
		QueueItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "diffscope_queue_items",
			Help: "Queue items by status.",
		}, []string{"status"}),
		QueueStuck: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "diffscope_queue_stuck_items",
			Help: "Processing items whose worker went silent past the stuck threshold.",
		}),
		HunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "diffscope_hunks_indexed_total",
			Help: "Hunks summarized and embedded.",
		}),
	}
	reg.MustRegister(m.WebhookDeliveries, m.ItemsProcessed, m.QueueItems, m.QueueStuck, m.HunksIndexed)
	return m
}

// ObserveQueueHealth refreshes the queue gauges from a health snapshot.
func (m *Metrics) ObserveQueueHealth(h *queue.Health) {
	if h == nil {
		return
	}
	for _, status := range []queue.Status{queue.StatusQueued, queue.StatusProcessing, queue.StatusCompleted, queue.StatusFailed, queue.StatusRetry} {
		m.QueueItems.WithLabelValues(string(status)).Set(float64(h.ByStatus[string(status)]))
	}
	m.QueueStuck.Set(float64(h.Stuck))
}
