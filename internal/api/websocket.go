package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/smazurov/visionnode/internal/api/models"
	"github.com/smazurov/visionnode/internal/subscriptions"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is permissive for the whole API
	CheckOrigin: func(*http.Request) bool { return true },
}

// registerWebSocketRoutes mounts GET /ws/{topic}. WebSocket upgrades bypass
// huma because they hijack the connection.
func (s *Server) registerWebSocketRoutes() {
	s.mux.HandleFunc("GET /ws/{topic}", s.handleWebSocket)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.options.Subscriptions == nil {
		http.Error(w, "subscriptions unavailable", http.StatusServiceUnavailable)
		return
	}

	input := models.TopicInput{
		Topic:     r.PathValue("topic"),
		Aggregate: r.URL.Query().Get("aggregate") == "true",
	}
	if input.Topic == "" {
		http.Error(w, "topic is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	sink := subscriptions.NewWebSocketSink(conn)
	topic := input.Resolved()
	handle, err := s.options.Subscriptions.Subscribe(topic, sink)
	if err != nil {
		s.logger.Warn("WebSocket subscribe failed", "topic", topic, "error", err)
		_ = sink.Close()
		return
	}

	s.logger.Debug("WebSocket subscriber connected", "topic", topic, "handle", handle, "remote_addr", r.RemoteAddr)
	sink.Run(r.Context())
	s.options.Subscriptions.Unsubscribe(handle)
	s.logger.Debug("WebSocket subscriber disconnected", "topic", topic, "handle", handle)
}
