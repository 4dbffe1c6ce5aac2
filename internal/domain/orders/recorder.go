package orders

import (
	"context"

	"github.com/evigrid/assess-console/internal/domain/assessment"
)

// Recorder adapts the registry to the submission pipeline's OrderRecorder
// contract, folding the four resolved shapes into the two commercial plans.
type Recorder struct {
	registry *Registry
}

// NewRecorder wraps the registry.
func NewRecorder(registry *Registry) *Recorder {
	return &Recorder{registry: registry}
}

// Record appends a pending order for an acknowledged submission.
func (r *Recorder) Record(ctx context.Context, rec assessment.OrderDraft) (string, error) {
	order, err := r.registry.Add(ctx, rec.UserID, string(rec.Energy), planFor(rec.Shape), rec.JobID)
	if err != nil {
		return "", err
	}
	return order.ID, nil
}

// planFor maps payload shapes to plans: requests that carry a park
// specification or a trained model bill as premium, plain resource requests
// as basic.
func planFor(shape assessment.Shape) Plan {
	switch shape {
	case assessment.ShapePremium, assessment.ShapeTrain:
		return PlanPremium
	default:
		return PlanBasic
	}
}

var _ assessment.OrderRecorder = (*Recorder)(nil)
