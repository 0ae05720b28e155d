package model

import "time"

// Health classifies an adapter's observed reliability.
type Health string

const (
	Healthy   Health = "healthy"
	Degraded  Health = "degraded"
	Unhealthy Health = "unhealthy"
)

// AdapterStatus is the per-adapter health view served by the status endpoint.
type AdapterStatus struct {
	Name                string     `json:"name"`
	Health              Health     `json:"health"`
	SuccessRate24h      float64    `json:"success_rate_24h"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	AvgResponseTimeMs   float64    `json:"avg_response_time_ms"`
	LastError           string     `json:"last_error,omitempty"`
}
