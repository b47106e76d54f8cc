package models

import "github.com/smazurov/visionnode/internal/streams"

// CameraInput selects a camera by id.
type CameraInput struct {
	CameraID string `path:"camera_id" example:"lobby" doc:"Camera identifier"`
}

// StreamStatusResponse wraps the status of one stream.
type StreamStatusResponse struct {
	Body streams.Status
}

// StreamListData lists stream statuses.
type StreamListData struct {
	Streams []streams.Status `json:"streams" doc:"Stream statuses ordered by camera id"`
	Count   int              `json:"count" example:"2" doc:"Number of streams"`
}

// StreamListResponse wraps StreamListData.
type StreamListResponse struct {
	Body StreamListData
}

// FrameInput selects a camera and the JPEG quality of its latest frame.
type FrameInput struct {
	CameraID string `path:"camera_id" example:"lobby" doc:"Camera identifier"`
	Quality  int    `query:"quality" minimum:"1" maximum:"100" default:"85" doc:"JPEG quality"`
}

// FrameResponse is a JPEG encoded frame.
type FrameResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	FrameSeq     uint64 `header:"X-Frame-Seq"`
	Body         []byte
}
