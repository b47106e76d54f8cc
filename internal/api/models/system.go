package models

import "github.com/smazurov/visionnode/internal/version"

// HealthData is the health check body.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
	Broker  string `json:"broker,omitempty" enum:"connected,offline" doc:"NATS connection state, absent when NATS is disabled"`
}

// HealthResponse wraps HealthData.
type HealthResponse struct {
	Body HealthData
}

// VersionResponse wraps build information.
type VersionResponse struct {
	Body version.Info
}
