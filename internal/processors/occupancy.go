package processors

import (
	"sort"
	"sync"
	"time"

	"github.com/smazurov/visionnode/internal/events"
)

// ZoneFunc maps a camera to the occupancy zone it covers.
type ZoneFunc func(cameraID string) string

// ZoneOccupancy is the occupancy of one zone.
type ZoneOccupancy struct {
	ID          string    `json:"id"`
	Capacity    int       `json:"capacity"`
	Current     int       `json:"current"`
	Utilization float64   `json:"utilization"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OccupancySnapshot is the occupancy module state.
type OccupancySnapshot struct {
	Zones []ZoneOccupancy `json:"zones"`
	Total struct {
		Current  int `json:"current"`
		Capacity int `json:"capacity"`
	} `json:"total"`
}

// Occupancy counts people per zone from the latest detections of each camera.
type Occupancy struct {
	label      string
	capacities map[string]int
	zoneOf     ZoneFunc

	mu       sync.Mutex
	counts   map[string]int // by camera
	zones    map[string]string
	lastSeen map[string]time.Time
}

// NewOccupancy creates an occupancy processor. Cameras without a zone count
// towards a zone named after the camera.
func NewOccupancy(capacities map[string]int, zoneOf ZoneFunc) *Occupancy {
	if capacities == nil {
		capacities = map[string]int{}
	}
	return &Occupancy{
		label:      "person",
		capacities: capacities,
		zoneOf:     zoneOf,
		counts:     make(map[string]int),
		zones:      make(map[string]string),
		lastSeen:   make(map[string]time.Time),
	}
}

// Name implements Processor.
func (o *Occupancy) Name() string { return "occupancy" }

// HandleDetection implements Processor.
func (o *Occupancy) HandleDetection(ev events.DetectionEvent) {
	people := 0
	for _, d := range ev.Detections {
		if d.Label == o.label {
			people++
		}
	}

	zone := ev.CameraID
	if o.zoneOf != nil {
		if z := o.zoneOf(ev.CameraID); z != "" {
			zone = z
		}
	}

	o.mu.Lock()
	o.counts[ev.CameraID] = people
	o.zones[ev.CameraID] = zone
	o.lastSeen[zone] = ev.Timestamp
	o.mu.Unlock()
}

// HandleAnalytics implements Processor.
func (o *Occupancy) HandleAnalytics(events.AnalyticsEvent) {}

// Snapshot implements Processor.
func (o *Occupancy) Snapshot() any {
	o.mu.Lock()
	defer o.mu.Unlock()

	current := make(map[string]int)
	for zone := range o.capacities {
		current[zone] = 0
	}
	for cam, n := range o.counts {
		current[o.zones[cam]] += n
	}

	var snap OccupancySnapshot
	for zone, n := range current {
		z := ZoneOccupancy{
			ID:        zone,
			Capacity:  o.capacities[zone],
			Current:   n,
			UpdatedAt: o.lastSeen[zone],
		}
		if z.Capacity > 0 {
			z.Utilization = float64(n) / float64(z.Capacity)
		}
		snap.Zones = append(snap.Zones, z)
		snap.Total.Current += n
		snap.Total.Capacity += z.Capacity
	}
	sort.Slice(snap.Zones, func(i, j int) bool { return snap.Zones[i].ID < snap.Zones[j].ID })
	return snap
}
