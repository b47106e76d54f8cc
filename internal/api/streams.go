package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/disintegration/imaging"

	"github.com/smazurov/visionnode/internal/api/models"
)

// registerStreamRoutes registers all stream-related endpoints
func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-streams",
		Method:      http.MethodGet,
		Path:        "/api/streams",
		Summary:     "List Streams",
		Description: "Get the status of every configured camera and every running or failed stream",
		Tags:        []string{"streams"},
	}, func(_ context.Context, _ *struct{}) (*models.StreamListResponse, error) {
		list := s.options.Streams.List()
		return &models.StreamListResponse{
			Body: models.StreamListData{
				Streams: list,
				Count:   len(list),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream-status",
		Method:      http.MethodGet,
		Path:        "/api/streams/{camera_id}",
		Summary:     "Get Stream Status",
		Description: "Get the runtime status of a camera's stream",
		Tags:        []string{"streams"},
		Errors:      []int{404},
	}, func(_ context.Context, input *models.CameraInput) (*models.StreamStatusResponse, error) {
		status, err := s.options.Streams.GetStatus(input.CameraID)
		if err != nil {
			return nil, mapStreamError(err)
		}
		return &models.StreamStatusResponse{Body: status}, nil
	})

	s.registerLifecycle("start-stream", "start", "Start Stream",
		"Open the camera and start capture and processing. Starting an active stream is a no-op.",
		s.options.Streams.StartStream)
	s.registerLifecycle("stop-stream", "stop", "Stop Stream",
		"Stop capture and processing and release the camera. Stopping an inactive stream is a no-op.",
		s.options.Streams.StopStream)
	s.registerLifecycle("restart-stream", "restart", "Restart Stream",
		"Stop and start the stream, applying configuration changes",
		s.options.Streams.RestartStream)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream-frame",
		Method:      http.MethodGet,
		Path:        "/api/streams/{camera_id}/frame",
		Summary:     "Latest Frame",
		Description: "Get the most recently captured frame of an active stream as JPEG",
		Tags:        []string{"streams"},
		Errors:      []int{404, 409, 500},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "JPEG image",
				Content:     map[string]*huma.MediaType{"image/jpeg": {}},
			},
		},
	}, func(_ context.Context, input *models.FrameInput) (*models.FrameResponse, error) {
		frame, err := s.options.Streams.LatestFrame(input.CameraID)
		if err != nil {
			return nil, mapStreamError(err)
		}

		var buf bytes.Buffer
		if encErr := imaging.Encode(&buf, frame.Image, imaging.JPEG, imaging.JPEGQuality(input.Quality)); encErr != nil {
			return nil, huma.Error500InternalServerError("failed to encode frame", encErr)
		}

		return &models.FrameResponse{
			ContentType:  "image/jpeg",
			CacheControl: "no-store",
			FrameSeq:     frame.Seq,
			Body:         buf.Bytes(),
		}, nil
	})
}

func (s *Server) registerLifecycle(operationID, action, summary, description string, fn func(context.Context, string) error) {
	huma.Register(s.api, huma.Operation{
		OperationID: operationID,
		Method:      http.MethodPost,
		Path:        "/api/streams/{camera_id}/" + action,
		Summary:     summary,
		Description: description,
		Tags:        []string{"streams"},
		Errors:      []int{404, 422, 502, 503},
	}, func(ctx context.Context, input *models.CameraInput) (*models.StreamStatusResponse, error) {
		if err := fn(ctx, input.CameraID); err != nil {
			return nil, mapStreamError(err)
		}
		status, err := s.options.Streams.GetStatus(input.CameraID)
		if err != nil {
			return nil, mapStreamError(err)
		}
		return &models.StreamStatusResponse{Body: status}, nil
	})
}
