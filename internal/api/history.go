package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/visionnode/internal/api/models"
	"github.com/smazurov/visionnode/internal/events"
	"github.com/smazurov/visionnode/internal/sink/sqlite"
)

// HistoryReader reads persisted messages.
type HistoryReader interface {
	Recent(ctx context.Context, cameraID string, msgType events.MessageType, limit int) ([]sqlite.Record, error)
}

func (s *Server) registerHistoryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream-history",
		Method:      http.MethodGet,
		Path:        "/api/streams/{camera_id}/history",
		Summary:     "Event History",
		Description: "Get persisted detection, analytics and aggregate messages of a camera",
		Tags:        []string{"streams"},
		Errors:      []int{404, 500},
	}, func(ctx context.Context, input *models.HistoryInput) (*models.HistoryResponse, error) {
		if s.options.History == nil {
			return nil, huma.Error404NotFound("event history is disabled")
		}
		records, err := s.options.History.Recent(ctx, input.CameraID, events.MessageType(input.Type), input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to read event history", err)
		}
		if records == nil {
			records = []sqlite.Record{}
		}
		return &models.HistoryResponse{Body: models.HistoryData{Records: records}}, nil
	})
}
