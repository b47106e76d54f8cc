// Package sink persists delivered messages through pluggable event sinks.
// Persistence is best effort: failures are logged and counted, never
// propagated to the publish path.
package sink

import (
	"context"
	"errors"
	"io"

	"github.com/smazurov/visionnode/internal/events"
)

// EventSink stores a message.
type EventSink interface {
	Store(ctx context.Context, msg events.Message) error
}

// Discard drops every message.
type Discard struct{}

// Store implements EventSink.
func (Discard) Store(context.Context, events.Message) error { return nil }

// Multi stores each message in every sink.
type Multi []EventSink

// Store implements EventSink. All sinks are tried; errors are joined.
func (m Multi) Store(ctx context.Context, msg events.Message) error {
	var errs []error
	for _, s := range m {
		if err := s.Store(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that implements io.Closer.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
