package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/visionnode/internal/api/models"
)

// registerModuleRoutes registers module processor endpoints.
func (s *Server) registerModuleRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-modules",
		Method:      http.MethodGet,
		Path:        "/api/modules",
		Summary:     "List Modules",
		Description: "Get the names of the registered module processors",
		Tags:        []string{"modules"},
	}, func(_ context.Context, _ *struct{}) (*models.ModuleListResponse, error) {
		names := []string{}
		if s.options.Modules != nil {
			names = s.options.Modules.Names()
		}
		return &models.ModuleListResponse{Body: models.ModuleListData{Modules: names}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-module",
		Method:      http.MethodGet,
		Path:        "/api/modules/{name}",
		Summary:     "Get Module State",
		Description: "Get the current state of a module processor such as occupancy, traffic, safety or analytics",
		Tags:        []string{"modules"},
		Errors:      []int{404},
	}, func(_ context.Context, input *models.ModuleInput) (*models.ModuleSnapshotResponse, error) {
		if s.options.Modules == nil {
			return nil, huma.Error404NotFound("no module processors registered")
		}
		snap, err := s.options.Modules.Snapshot(input.Name)
		if err != nil {
			return nil, mapStreamError(err)
		}
		return &models.ModuleSnapshotResponse{
			Body: models.ModuleSnapshotData{Name: input.Name, Snapshot: snap},
		}, nil
	})
}
