package metrics

import "sync/atomic"

// Counters tracks coarse request outcomes for the stats endpoint.
type Counters struct {
	submissionsAccepted atomic.Int64
	submissionsRejected atomic.Int64
	validationsRun      atomic.Int64
}

// Snapshot is the serialized form of the counters.
type Snapshot struct {
	SubmissionsAccepted int64 `json:"submissionsAccepted"`
	SubmissionsRejected int64 `json:"submissionsRejected"`
	ValidationsRun      int64 `json:"validationsRun"`
}

// NewCounters constructs a zeroed counter set.
func NewCounters() *Counters {
	return &Counters{}
}

// SubmissionAccepted records an acknowledged submission.
func (c *Counters) SubmissionAccepted() { c.submissionsAccepted.Add(1) }

// SubmissionRejected records a refused or failed submission.
func (c *Counters) SubmissionRejected() { c.submissionsRejected.Add(1) }

// ValidationRun records one file-validation attempt.
func (c *Counters) ValidationRun() { c.validationsRun.Add(1) }

// Snapshot returns the current values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		SubmissionsAccepted: c.submissionsAccepted.Load(),
		SubmissionsRejected: c.submissionsRejected.Load(),
		ValidationsRun:      c.validationsRun.Load(),
	}
}
