package streams

import "time"

// Status is a point-in-time report of a camera's stream.
type Status struct {
	CameraID        string    `json:"camera_id" example:"lobby" doc:"Camera identifier"`
	State           State     `json:"state" enum:"inactive,starting,active,stopping,error" doc:"Session state"`
	IsStreaming     bool      `json:"is_streaming" doc:"Whether frames are flowing"`
	LastUpdate      time.Time `json:"last_update,omitempty" doc:"Last frame capture or state change"`
	StartedAt       time.Time `json:"started_at,omitempty" doc:"When the session became active"`
	LastError       string    `json:"last_error,omitempty" doc:"Failure that put the session in error"`
	FramesCaptured  uint64    `json:"frames_captured" doc:"Frames read from the source"`
	FramesDropped   uint64    `json:"frames_dropped" doc:"Frames dropped because the queue was full"`
	FramesProcessed uint64    `json:"frames_processed" doc:"Frames analyzed"`
	QueueDepth      int       `json:"queue_depth" doc:"Frames waiting for processing"`
	QueueCapacity   int       `json:"queue_capacity" doc:"Frame queue capacity"`
}

func (s *session) statusLocked() Status {
	st := Status{
		CameraID:    s.source.ID,
		State:       s.state,
		IsStreaming: s.state.IsStreaming(),
		LastUpdate:  s.changedAt,
		StartedAt:   s.startedAt,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	if updated := s.slot.Updated(); updated.After(st.LastUpdate) {
		st.LastUpdate = updated
	}

	qs := s.queue.Stats()
	st.FramesCaptured = qs.Enqueued + qs.Dropped
	st.FramesDropped = qs.Dropped
	st.QueueDepth = qs.Depth
	st.QueueCapacity = qs.Capacity
	st.FramesProcessed = s.pipeline.Stats().Processed
	return st
}
