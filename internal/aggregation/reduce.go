package aggregation

import (
	"github.com/smazurov/visionnode/internal/events"
)

// Reduce merges a window of analytics events for one camera. The window
// spans the earliest to latest event timestamp. Object counts and direction
// buckets are summed; the average speed is the mean of per-event speeds with
// missing speeds counted as zero. It returns false for an empty window.
func Reduce(cameraID string, evs []events.AnalyticsEvent) (events.AggregatedMetrics, bool) {
	if len(evs) == 0 {
		return events.AggregatedMetrics{}, false
	}

	agg := events.AggregatedMetrics{
		CameraID:           cameraID,
		WindowStart:        evs[0].Timestamp,
		WindowEnd:          evs[0].Timestamp,
		DirectionHistogram: make(map[string]float64),
		SampleCount:        len(evs),
	}

	var speedSum float64
	for _, ev := range evs {
		if ev.Timestamp.Before(agg.WindowStart) {
			agg.WindowStart = ev.Timestamp
		}
		if ev.Timestamp.After(agg.WindowEnd) {
			agg.WindowEnd = ev.Timestamp
		}

		agg.TotalObjects += ev.Metrics.ObjectCount
		speedSum += ev.Metrics.AverageSpeed
		for dir, n := range ev.Metrics.DirectionHistogram {
			agg.DirectionHistogram[dir] += n
		}
	}
	agg.AverageSpeed = speedSum / float64(len(evs))
	return agg, true
}
