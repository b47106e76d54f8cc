// Package processors holds module processors: consumers of detection and
// analytics events that keep a live, queryable view per module.
package processors

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/smazurov/visionnode/internal/events"
	"github.com/smazurov/visionnode/internal/logging"
)

// ErrUnknownProcessor is returned when no processor has the requested name.
var ErrUnknownProcessor = errors.New("unknown processor")

// Processor consumes camera events and exposes a snapshot of its state.
// Handlers are called from the bus dispatcher and must not block.
type Processor interface {
	Name() string
	HandleDetection(ev events.DetectionEvent)
	HandleAnalytics(ev events.AnalyticsEvent)
	Snapshot() any
}

// Source delivers events asynchronously.
type Source interface {
	Subscribe(handler any) func()
}

// Registry dispatches bus events to processors by interface.
type Registry struct {
	mu     sync.RWMutex
	procs  map[string]Processor
	unsubs []func()
	logger *slog.Logger
}

// NewRegistry creates a registry with the given processors.
func NewRegistry(logger *slog.Logger, procs ...Processor) *Registry {
	if logger == nil {
		logger = logging.GetLogger("processors")
	}
	r := &Registry{procs: make(map[string]Processor, len(procs)), logger: logger}
	for _, p := range procs {
		r.procs[p.Name()] = p
	}
	return r
}

// Attach subscribes the registry to src.
func (r *Registry) Attach(src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubs = append(r.unsubs,
		src.Subscribe(r.dispatchDetection),
		src.Subscribe(r.dispatchAnalytics),
	)
}

// Detach removes all subscriptions made by Attach.
func (r *Registry) Detach() {
	r.mu.Lock()
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

func (r *Registry) dispatchDetection(ev events.DetectionEvent) {
	r.each(func(p Processor) { p.HandleDetection(ev) })
}

func (r *Registry) dispatchAnalytics(ev events.AnalyticsEvent) {
	r.each(func(p Processor) { p.HandleAnalytics(ev) })
}

func (r *Registry) each(fn func(Processor)) {
	r.mu.RLock()
	procs := make([]Processor, 0, len(r.procs))
	for _, p := range r.procs {
		procs = append(procs, p)
	}
	r.mu.RUnlock()

	for _, p := range procs {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("Processor panicked", "processor", p.Name(), "panic", rec)
				}
			}()
			fn(p)
		}()
	}
}

// Names returns processor names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.procs))
	for name := range r.procs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the current state of the named processor.
func (r *Registry) Snapshot(name string) (any, error) {
	r.mu.RLock()
	p, ok := r.procs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProcessor, name)
	}
	return p.Snapshot(), nil
}
