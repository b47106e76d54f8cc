package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/visionnode/internal/api/models"
	"github.com/smazurov/visionnode/internal/events"
	"github.com/smazurov/visionnode/internal/subscriptions"
)

// registerTopicRoutes registers topic subscriptions over SSE and the
// stream state event stream.
func (s *Server) registerTopicRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-topics",
		Method:      http.MethodGet,
		Path:        "/api/topics",
		Summary:     "List Topics",
		Description: "Get the topics that currently have live subscribers",
		Tags:        []string{"events"},
	}, func(_ context.Context, _ *struct{}) (*models.TopicResponse, error) {
		topics := map[string]int{}
		if s.options.Subscriptions != nil {
			topics = s.options.Subscriptions.Topics()
		}
		return &models.TopicResponse{Body: models.TopicData{Topics: topics}}, nil
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "topic-events",
		Method:      http.MethodGet,
		Path:        "/api/topics/{topic}/events",
		Summary:     "Topic Event Stream",
		Description: "Subscribe to a topic. Each detection, analytics or aggregate message is sent as a 'message' event. " +
			"The subscription is dropped if the client falls behind for longer than the send timeout.",
		Tags: []string{"events"},
	}, map[string]any{
		"message": events.Message{},
	}, func(ctx context.Context, input *models.TopicInput, send sse.Sender) {
		if s.options.Subscriptions == nil {
			return
		}

		sink := subscriptions.NewChannelSink(s.options.SSEBuffer)
		topic := input.Resolved()
		handle, err := s.options.Subscriptions.Subscribe(topic, sink)
		if err != nil {
			s.logger.Warn("SSE subscribe failed", "topic", topic, "error", err)
			return
		}
		defer s.options.Subscriptions.Unsubscribe(handle)

		s.logger.Debug("SSE subscriber connected", "topic", topic, "handle", handle)
		s.forward(ctx, send, sink)
		s.logger.Debug("SSE subscriber disconnected", "topic", topic, "handle", handle)
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "stream-state-events",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Stream State Events",
		Description: "Real-time stream lifecycle transitions, throughput samples and aggregates for every camera",
		Tags:        []string{"events"},
	}, map[string]any{
		"stream-state-changed": events.StreamStateChangedEvent{},
		"aggregate":            events.AggregatedMetrics{},
		"stream-metrics":       events.StreamMetricsEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		if s.options.Bus == nil {
			return
		}

		eventCh := make(chan any, 32)
		unsubscribers := []func(){
			events.SubscribeToChannel[events.StreamStateChangedEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.AggregatedMetrics](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.StreamMetricsEvent](s.options.Bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Current state first so clients need not poll
		for _, st := range s.options.Streams.List() {
			if err := send.Data(events.StreamStateChangedEvent{
				CameraID:  st.CameraID,
				State:     string(st.State),
				Error:     st.LastError,
				Timestamp: st.LastUpdate,
			}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}

// forward copies messages from sink to the SSE connection until the client
// goes away or the registry drops the subscription.
func (s *Server) forward(ctx context.Context, send sse.Sender, sink *subscriptions.ChannelSink) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sink.Done():
			return
		case msg := <-sink.Messages():
			if err := send.Data(msg); err != nil {
				return
			}
		}
	}
}
