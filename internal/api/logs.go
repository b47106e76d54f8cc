package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/visionnode/internal/api/models"
	"github.com/smazurov/visionnode/internal/logging"
)

// registerLogRoutes registers the buffered log endpoints.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Get the newest buffered log entries",
		Tags:        []string{"logs"},
	}, func(_ context.Context, input *models.LogsInput) (*models.LogsResponse, error) {
		entries := []logging.LogEntry{}
		if buffer := logging.GetBuffer(); buffer != nil {
			for _, e := range buffer.ReadAll() {
				if input.Module == "" || e.Module == input.Module {
					entries = append(entries, e)
				}
			}
		}
		if input.Limit > 0 && len(entries) > input.Limit {
			entries = entries[len(entries)-input.Limit:]
		}
		return &models.LogsResponse{Body: models.LogsData{Entries: entries}}, nil
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends buffered logs first, then streams new logs.",
		Tags:        []string{"logs"},
	}, map[string]any{
		"message": logging.LogEntry{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Larger buffer for logs; entries are dropped rather than blocking loggers
		entryCh := make(chan logging.LogEntry, 100)
		remove := logging.AddListener(func(e logging.LogEntry) {
			select {
			case entryCh <- e:
			default:
			}
		})
		defer remove()

		if buffer := logging.GetBuffer(); buffer != nil {
			for _, entry := range buffer.ReadAll() {
				if err := send.Data(entry); err != nil {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case entry := <-entryCh:
				if err := send.Data(entry); err != nil {
					return
				}
			}
		}
	})
}
