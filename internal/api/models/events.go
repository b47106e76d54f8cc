package models

import (
	"github.com/smazurov/visionnode/internal/events"
	"github.com/smazurov/visionnode/internal/logging"
)

// TopicInput selects a subscription topic.
type TopicInput struct {
	Topic     string `path:"topic" example:"lobby" doc:"Camera id or module topic"`
	Aggregate bool   `query:"aggregate" doc:"Subscribe to the camera's aggregate topic instead"`
}

// Resolved returns the registry topic the input names.
func (in TopicInput) Resolved() string {
	if in.Aggregate {
		return events.AggregateTopic(in.Topic)
	}
	return in.Topic
}

// TopicData lists topics with live subscribers.
type TopicData struct {
	Topics map[string]int `json:"topics" doc:"Subscriber count per topic"`
}

// TopicResponse wraps TopicData.
type TopicResponse struct {
	Body TopicData
}

// LogsInput filters buffered logs.
type LogsInput struct {
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" default:"100" doc:"Newest entries to return, 0 for all"`
	Module string `query:"module" example:"streams" doc:"Only entries from this module"`
}

// LogsData holds buffered log entries.
type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Log entries, oldest first"`
}

// LogsResponse wraps LogsData.
type LogsResponse struct {
	Body LogsData
}
