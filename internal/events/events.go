// Package events publishes tracker job transitions to Kafka.
package events

import "time"

// TypeJobStateChanged is the event_type header carried by JobStateChanged messages.
const TypeJobStateChanged = "job.state_changed"

// JobStateChanged is emitted whenever the tracker observes a new remote state for a job.
type JobStateChanged struct {
	EventID       string    `json:"event_id"`
	JobID         string    `json:"job_id"`
	TenantID      string    `json:"tenant_id"`
	Kind          string    `json:"kind"`
	TargetID      string    `json:"target_id"`
	PreviousState string    `json:"previous_state"`
	State         string    `json:"state"`
	Terminal      bool      `json:"terminal"`
	OccurredAt    time.Time `json:"occurred_at"`
	Reason        string    `json:"reason,omitempty"`
}
