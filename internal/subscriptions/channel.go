package subscriptions

import (
	"context"
	"fmt"
	"sync"

	"github.com/smazurov/visionnode/internal/events"
)

// ChannelSink buffers messages on a channel for a reader such as an SSE
// handler. Send blocks while the buffer is full, bounded by the send timeout.
type ChannelSink struct {
	ch   chan events.Message
	done chan struct{}
	once sync.Once
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSink{
		ch:   make(chan events.Message, buffer),
		done: make(chan struct{}),
	}
}

// Send implements Sink.
func (c *ChannelSink) Send(ctx context.Context, msg events.Message) error {
	select {
	case <-c.done:
		return ErrSinkClosed
	default:
	}

	select {
	case c.ch <- msg:
		return nil
	case <-c.done:
		return ErrSinkClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: reader too slow: %w", ErrDelivery, ctx.Err())
	}
}

// Messages returns the receive side. It is never closed; select on Done.
func (c *ChannelSink) Messages() <-chan events.Message { return c.ch }

// Done is closed when the sink is closed.
func (c *ChannelSink) Done() <-chan struct{} { return c.done }

// Close implements Sink.
func (c *ChannelSink) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
