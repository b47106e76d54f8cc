package processors

import (
	"slices"
	"sync"
	"time"

	"github.com/smazurov/visionnode/internal/events"
)

const (
	maxRecentSafetyEvents = 10
	safetyWarningAbove    = 2
	safetyCriticalAbove   = 5
)

// DefaultViolationLabels are detection labels counted as safety violations.
var DefaultViolationLabels = []string{"no_helmet", "no_vest", "no_goggles", "restricted_zone", "violation"}

// SafetyEvent is one recorded violation.
type SafetyEvent struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Time        time.Time `json:"time"`
	Location    string    `json:"location"`
}

// SafetySnapshot is the safety module state.
type SafetySnapshot struct {
	Status       string        `json:"status" enum:"normal,warning,critical"`
	Violations   int           `json:"violations"`
	Compliant    int           `json:"compliant"`
	RecentEvents []SafetyEvent `json:"recent_events"`
}

// Safety counts violation detections in the latest frame and keeps the most
// recent violations, newest first.
type Safety struct {
	labels []string

	mu         sync.Mutex
	violations int
	compliant  int
	recent     []SafetyEvent
}

// NewSafety creates a safety processor. Nil labels selects DefaultViolationLabels.
func NewSafety(labels []string) *Safety {
	if labels == nil {
		labels = DefaultViolationLabels
	}
	return &Safety{labels: labels}
}

// Name implements Processor.
func (s *Safety) Name() string { return "safety" }

// HandleDetection implements Processor.
func (s *Safety) HandleDetection(ev events.DetectionEvent) {
	var found []SafetyEvent
	people := 0
	for _, d := range ev.Detections {
		if d.Label == "person" {
			people++
		}
		if slices.Contains(s.labels, d.Label) {
			found = append(found, SafetyEvent{
				Type:        "violation",
				Description: d.Label,
				Time:        ev.Timestamp,
				Location:    ev.CameraID,
			})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.violations = len(found)
	s.compliant = max(0, people-len(found))
	for _, e := range found {
		s.recent = append([]SafetyEvent{e}, s.recent...)
		if len(s.recent) > maxRecentSafetyEvents {
			s.recent = s.recent[:maxRecentSafetyEvents]
		}
	}
}

// HandleAnalytics implements Processor.
func (s *Safety) HandleAnalytics(events.AnalyticsEvent) {}

// Snapshot implements Processor.
func (s *Safety) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := "normal"
	switch {
	case s.violations > safetyCriticalAbove:
		status = "critical"
	case s.violations > safetyWarningAbove:
		status = "warning"
	}
	return SafetySnapshot{
		Status:       status,
		Violations:   s.violations,
		Compliant:    s.compliant,
		RecentEvents: append([]SafetyEvent(nil), s.recent...),
	}
}
