package models

import "github.com/smazurov/visionnode/internal/sink/sqlite"

// HistoryInput selects stored messages of a camera.
type HistoryInput struct {
	CameraID string `path:"camera_id" example:"lobby" doc:"Camera identifier"`
	Type     string `query:"type" enum:"detection,analytics,aggregate" doc:"Only messages of this type"`
	Limit    int    `query:"limit" minimum:"1" maximum:"1000" default:"100" doc:"Newest messages to return"`
}

// HistoryData holds stored messages, newest first.
type HistoryData struct {
	Records []sqlite.Record `json:"records" doc:"Stored messages, newest first"`
}

// HistoryResponse wraps HistoryData.
type HistoryResponse struct {
	Body HistoryData
}
