package orders

import "time"

// Plan is the commercial tier an order was submitted under.
type Plan string

const (
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
)

// Status tracks backend progress on an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Order is one submitted request as the archive view sees it.
type Order struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"userId"`
	EnergyType string    `json:"energyType"`
	Plan       Plan      `json:"plan"`
	JobID      string    `json:"jobId,omitempty"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
