package domain

import "time"

// RunStatus summarizes how much of a run could actually execute.
type RunStatus string

const (
	// RunStatusOK means every selected country was fetched and analyzed.
	// A run that found no deals is still ok.
	RunStatusOK RunStatus = "ok"
	// RunStatusDegraded means at least one country failed locally.
	RunStatusDegraded RunStatus = "degraded"
	// RunStatusMisconfigured means no completion backend is configured, so
	// nothing could be analyzed.
	RunStatusMisconfigured RunStatus = "misconfigured"
)

// CountryReport describes one country's path through a run.
type CountryReport struct {
	Country      string `json:"country"`
	FetchedChars int    `json:"fetched_chars"`
	// Skipped is set when the fetched text was below the analysis threshold.
	Skipped bool   `json:"skipped,omitempty"`
	Deals   int    `json:"deals"`
	Dropped int    `json:"dropped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RunResult is the outcome of one pipeline run.
type RunResult struct {
	RunID       string    `json:"run_id"`
	Status      RunStatus `json:"status"`
	DealsFound  int       `json:"deals_found"`
	DealsSent   int       `json:"deals_sent"`
	PreviewHTML string    `json:"preview_html"`
	Delivered   bool      `json:"delivered"`
	// DeliveryError is set when the digest was rendered but could not be delivered.
	DeliveryError string          `json:"delivery_error,omitempty"`
	Deals         []DealRecord    `json:"deals"`
	Countries     []CountryReport `json:"countries"`
	StartedAt     time.Time       `json:"started_at"`
	Duration      time.Duration   `json:"duration"`
}
