package stage

import "ticketsync/internal/ledger"

// Health summarizes the readiness of a stage processor.
type Health struct {
	Stage  ledger.Stage `json:"stage"`
	Ready  bool         `json:"ready"`
	Detail string       `json:"detail,omitempty"`
}

// Healthy constructs a ready Health record.
func Healthy(stage ledger.Stage) Health {
	return Health{Stage: stage, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(stage ledger.Stage, detail string) Health {
	return Health{Stage: stage, Ready: false, Detail: detail}
}
