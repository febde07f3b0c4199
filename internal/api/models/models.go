package models

import (
	"github.com/smazurov/yuvcam/internal/logging"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-01-01T00:00:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go runtime version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Error response models
type ErrorResponse struct {
	Error   string `json:"error" example:"Device not found" doc:"Error message"`
	Details string `json:"details,omitempty" example:"The specified device path does not exist" doc:"Error details"`
}

// Log models
type LogsInput struct {
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" default:"100" doc:"Maximum number of entries, newest last (0 for all buffered)"`
	Module string `query:"module" example:"capture" doc:"Only return entries from this module"`
	After  uint64 `query:"after" doc:"Only return entries with a higher seq, for polling without repeats"`
}

type LogStreamInput struct {
	After uint64 `query:"after" doc:"Replay only entries with a higher seq, for resuming a dropped stream"`
}

type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Buffered log entries in chronological order"`
	Count   int                `json:"count" example:"100" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}
