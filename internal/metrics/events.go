package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visionnode",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Events published on the bus",
	}, []string{"type"})

	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visionnode",
		Subsystem: "subscriptions",
		Name:      "deliveries_total",
		Help:      "Message deliveries to subscribers by result",
	}, []string{"result"})

	subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "visionnode",
		Subsystem: "subscriptions",
		Name:      "subscribers",
		Help:      "Currently registered subscribers",
	})

	aggregatesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visionnode",
		Subsystem: "aggregation",
		Name:      "aggregates_emitted_total",
		Help:      "Aggregated metrics windows emitted",
	}, []string{"camera_id"})

	aggregationEvicted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visionnode",
		Subsystem: "aggregation",
		Name:      "evicted_total",
		Help:      "Buffered analytics events evicted before aggregation",
	}, []string{"camera_id"})

	sinkWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visionnode",
		Subsystem: "sink",
		Name:      "writes_total",
		Help:      "Event sink writes by sink and result",
	}, []string{"sink", "result"})
)

// IncEventsPublished counts a published event of the given message type.
func IncEventsPublished(eventType string) {
	eventsPublished.WithLabelValues(eventType).Inc()
}

// IncDeliveries counts a delivery attempt.
func IncDeliveries(ok bool) {
	deliveries.WithLabelValues(result(ok)).Inc()
}

// SetSubscribers sets the registered subscriber count.
func SetSubscribers(n int) {
	subscribers.Set(float64(n))
}

// IncAggregatesEmitted counts an emitted aggregation window.
func IncAggregatesEmitted(cameraID string) {
	aggregatesEmitted.WithLabelValues(cameraID).Inc()
}

// IncAggregationEvicted counts an analytics event evicted from a full buffer.
func IncAggregationEvicted(cameraID string) {
	aggregationEvicted.WithLabelValues(cameraID).Inc()
}

// IncSinkWrites counts an event sink write.
func IncSinkWrites(sink string, ok bool) {
	sinkWrites.WithLabelValues(sink, result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
