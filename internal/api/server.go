// Package api exposes stream control, live event subscriptions and module
// state over HTTP using huma v2.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/visionnode/internal/api/models"
	"github.com/smazurov/visionnode/internal/events"
	"github.com/smazurov/visionnode/internal/frames"
	"github.com/smazurov/visionnode/internal/logging"
	"github.com/smazurov/visionnode/internal/streams"
	"github.com/smazurov/visionnode/internal/subscriptions"
	"github.com/smazurov/visionnode/internal/version"
)

// StreamController is the stream lifecycle surface served by the API.
type StreamController interface {
	StartStream(ctx context.Context, cameraID string) error
	StopStream(ctx context.Context, cameraID string) error
	RestartStream(ctx context.Context, cameraID string) error
	GetStatus(cameraID string) (streams.Status, error)
	List() []streams.Status
	LatestFrame(cameraID string) (*frames.Frame, error)
}

// ModuleReader exposes module processor state.
type ModuleReader interface {
	Names() []string
	Snapshot(name string) (any, error)
}

// BrokerStatus reports whether the message broker connection is up.
type BrokerStatus interface {
	IsConnected() bool
}

// Options configures the API server.
type Options struct {
	Streams       StreamController
	Subscriptions *subscriptions.Registry
	Bus           *events.Bus
	Modules       ModuleReader
	History       HistoryReader // Optional persisted message store
	Broker        BrokerStatus  // Optional, reported by the health check

	// SSEBuffer is the per-connection message buffer of topic streams
	SSEBuffer         int
	Features          []string
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// Server is the HTTP API server
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    Options
	logger     *slog.Logger
}

// NewServer creates a new API server with Huma v2 using Go 1.22+ native routing
func NewServer(opts Options) *Server {
	if opts.SSEBuffer <= 0 {
		opts.SSEBuffer = 64
	}

	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("VisionNode API", version.String())
	config.Info.Description = "Camera stream control and real-time analytics fan-out"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)

	server := &Server{
		api:     api,
		mux:     mux,
		options: opts,
		logger:  logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

	// Registered on the mux directly, outside the OpenAPI surface
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting VisionNode API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
// Long-lived SSE and WebSocket connections are closed when ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status and broker connectivity",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}
		if s.options.Broker != nil {
			resp.Body.Broker = "offline"
			if s.options.Broker.IsConnected() {
				resp.Body.Broker = "connected"
			}
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		return &models.VersionResponse{Body: version.Get(s.options.Features...)}, nil
	})

	s.registerStreamRoutes()
	s.registerHistoryRoutes()
	s.registerTopicRoutes()
	s.registerWebSocketRoutes()
	s.registerModuleRoutes()
	s.registerLogRoutes()
}
