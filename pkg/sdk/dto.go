// Package sdk holds the wire types of the riskwatch status API and a small client for it
package sdk

import (
	"encoding/json"
	"time"

	"github.com/ethanbaker/api/pkg/api_types"
)

// ApiResponse represents a standard API response structure
type ApiResponse[T any] struct {
	Status  api_types.StatusType `json:"status"`          // Status message
	Code    int                  `json:"code"`            // Status code
	Message string               `json:"message"`         // Human-readable message
	Data    T                    `json:"data,omitempty"`  // Optional data field for successful responses
	Error   any                  `json:"error,omitempty"` // Optional errors field for error responses
}

// AsGinResponse converts the ApiResponse to a format suitable for Gin framework
func (r ApiResponse[T]) AsGinResponse() (int, any) {
	return r.Code, r
}

// AsJSON converts the ApiResponse to a format suitable for JSON responses
func (r ApiResponse[T]) AsJSON() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func NewSuccessResponse[T any](message string, data T) ApiResponse[T] {
	return ApiResponse[T]{
		Status:  api_types.StatusSuccess,
		Code:    200,
		Message: message,
		Data:    data,
	}
}

func NewErrorResponse(code int, message string, err any) ApiResponse[any] {
	return ApiResponse[any]{
		Status:  api_types.StatusError,
		Code:    code,
		Message: message,
		Error:   err,
	}
}

/** Responses */

// Run summarizes a finished curation or sweep run
type Run struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
	Seed       uint64    `json:"seed,omitempty"`
	Source     string    `json:"source,omitempty"`

	Topics     TopicCounts     `json:"topics"`
	Candidates CandidateCounts `json:"candidates"`
	Store      StoreCounts     `json:"store"`

	Error string `json:"error,omitempty"`
}

// TopicCounts tallies the topics of a run
type TopicCounts struct {
	Planned   int `json:"planned"`
	Attempted int `json:"attempted"`
	Failed    int `json:"failed"`
}

// CandidateCounts tallies what happened to mined drafts
type CandidateCounts struct {
	Mined       int `json:"mined"`
	Invalid     int `json:"invalid"`
	OffTaxonomy int `json:"off_taxonomy"`
	Skipped     int `json:"skipped_verification"`
	Verified    int `json:"verified"`
	Degraded    int `json:"degraded"`
	Unverified  int `json:"unverified"`
	Rejected    int `json:"rejected"`
}

// StoreCounts tallies changes to the stored collection
type StoreCounts struct {
	Inserted    int `json:"inserted"`
	Refreshed   int `json:"refreshed"`
	Revived     int `json:"revived"`
	Archived    int `json:"archived"`
	Reverified  int `json:"reverified"`
	Unconfirmed int `json:"unconfirmed"`
	Checkpoints int `json:"checkpoints"`
	Active      int `json:"active"`
	Inactive    int `json:"archived_total"`
}

// ScheduledTask describes a cron task of the daemon
type ScheduledTask struct {
	Key     string    `json:"key"`
	Spec    string    `json:"spec"`
	NextRun time.Time `json:"next_run"`
}
