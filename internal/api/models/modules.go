package models

// ModuleInput selects a module processor by name.
type ModuleInput struct {
	Name string `path:"name" example:"occupancy" doc:"Module processor name"`
}

// ModuleListData lists module processor names.
type ModuleListData struct {
	Modules []string `json:"modules" example:"[\"analytics\",\"occupancy\"]" doc:"Registered module processors"`
}

// ModuleListResponse wraps ModuleListData.
type ModuleListResponse struct {
	Body ModuleListData
}

// ModuleSnapshotData is the current state of one module processor.
type ModuleSnapshotData struct {
	Name     string `json:"name" example:"occupancy" doc:"Module processor name"`
	Snapshot any    `json:"snapshot" doc:"Processor specific state"`
}

// ModuleSnapshotResponse wraps ModuleSnapshotData.
type ModuleSnapshotResponse struct {
	Body ModuleSnapshotData
}
