package assessment

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/evigrid/assess-console/pkg/errors"
)

// NewDraft creates an empty form instance for the given variant.
func NewDraft(userID int64, variant Variant) (*Draft, error) {
	if err := validateVariant(variant); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	d := &Draft{
		ID:        uuid.New(),
		UserID:    userID,
		Guard:     SubmitIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	d.applyVariant(variant)
	return d, nil
}

func validateVariant(v Variant) error {
	if v.Energy != EnergySolar && v.Energy != EnergyWind {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "unknown energy type", nil)
	}
	switch v.Flow {
	case WorkflowAssessment:
		if v.Mode != "" {
			return apperrors.Wrap(apperrors.CodeInvalidInput, "assessment drafts carry no forecast mode", nil)
		}
	case WorkflowForecast:
		if v.Mode != ForecastStandard && v.Mode != ForecastTrain {
			return apperrors.Wrap(apperrors.CodeInvalidInput, "forecast drafts require a standard or train mode", nil)
		}
	default:
		return apperrors.Wrap(apperrors.CodeInvalidInput, "unknown workflow", nil)
	}
	return nil
}

// applyVariant installs the empty field shape and slot set for the variant.
func (d *Draft) applyVariant(v Variant) {
	d.Variant = v
	d.Fields = FormFields{}
	switch v.Energy {
	case EnergySolar:
		d.Fields.Solar = &SolarFields{}
	case EnergyWind:
		d.Fields.Wind = &WindFields{}
	}
	if v.Mode == ForecastTrain {
		d.Fields.Train = &TrainFields{}
	}
	d.Slots = make(map[Slot]*SlotStatus)
	for _, slot := range v.slots() {
		d.Slots[slot] = NewSlotStatus()
	}
	d.Submitted = false
	d.Generation++
	d.UpdatedAt = time.Now().UTC()
}

// slots lists the upload slots the variant can carry. Only the wind train
// flow uses both machines at once.
func (v Variant) slots() []Slot {
	var out []Slot
	if v.Energy == EnergyWind {
		out = append(out, SlotPowerCurve)
	}
	if v.Mode == ForecastTrain {
		out = append(out, SlotHistory)
	}
	return out
}

// ResetForVariant is the single authoritative cross-variant invalidation
// point: every field, slot machine, and cached token that is not valid for
// the new variant is dropped here and nowhere else.
func (d *Draft) ResetForVariant(v Variant) error {
	if err := validateVariant(v); err != nil {
		return err
	}
	d.applyVariant(v)
	return nil
}

// Clear resets every field of the current variant to its initial empty value.
func (d *Draft) Clear() {
	d.applyVariant(d.Variant)
}

// FieldPatch is a partial update; nil members leave the field untouched.
// Coordinate pairs from the map picker arrive through the same struct as
// direct edits.
type FieldPatch struct {
	StartDate  *string          `json:"startDate"`
	EndDate    *string          `json:"endDate"`
	Latitude   *string          `json:"latitude"`
	Longitude  *string          `json:"longitude"`
	Elevation  *string          `json:"elevation"`
	Tilt       *string          `json:"tilt"`
	Azimuth    *string          `json:"azimuth"`
	Tracking   *TrackingMode    `json:"tracking"`
	Capacity   *string          `json:"capacity"`
	HubHeight  *string          `json:"hubHeight"`
	CurveModel *PowerCurveModel `json:"curveModel"`
}

// Apply writes the patch into the draft. Fields that do not exist on the
// active variant are rejected rather than silently dropped. A curve-model
// change resets the power-curve slot immediately, before any in-flight
// validation can report back.
func (d *Draft) Apply(patch FieldPatch) error {
	if patch.StartDate != nil || patch.EndDate != nil {
		if d.Variant.Flow != WorkflowAssessment {
			return apperrors.Wrap(apperrors.CodeInvalidInput, "forecast drafts carry no date range", nil)
		}
		if patch.StartDate != nil {
			d.Fields.StartDate = *patch.StartDate
		}
		if patch.EndDate != nil {
			d.Fields.EndDate = *patch.EndDate
		}
	}
	if patch.Latitude != nil {
		d.Fields.Latitude = *patch.Latitude
	}
	if patch.Longitude != nil {
		d.Fields.Longitude = *patch.Longitude
	}
	if patch.Elevation != nil {
		d.Fields.Elevation = *patch.Elevation
	}

	if patch.Tilt != nil || patch.Azimuth != nil || patch.Tracking != nil || patch.Capacity != nil {
		if d.Fields.Solar == nil {
			return apperrors.Wrap(apperrors.CodeInvalidInput, "solar fields not present on this draft", nil)
		}
		if patch.Tilt != nil {
			d.Fields.Solar.Tilt = *patch.Tilt
		}
		if patch.Azimuth != nil {
			d.Fields.Solar.Azimuth = *patch.Azimuth
		}
		if patch.Tracking != nil {
			if !patch.Tracking.known() {
				return apperrors.Wrap(apperrors.CodeInvalidInput, "unknown tracking mode", nil)
			}
			d.Fields.Solar.Tracking = *patch.Tracking
		}
		if patch.Capacity != nil {
			d.Fields.Solar.Capacity = *patch.Capacity
		}
	}

	if patch.HubHeight != nil || patch.CurveModel != nil {
		if d.Fields.Wind == nil {
			return apperrors.Wrap(apperrors.CodeInvalidInput, "wind fields not present on this draft", nil)
		}
		if patch.HubHeight != nil {
			d.Fields.Wind.HubHeight = *patch.HubHeight
		}
		if patch.CurveModel != nil && *patch.CurveModel != d.Fields.Wind.CurveModel {
			if !patch.CurveModel.known() {
				return apperrors.Wrap(apperrors.CodeInvalidInput, "unknown power curve model", nil)
			}
			d.Fields.Wind.CurveModel = *patch.CurveModel
			if slot, ok := d.Slots[SlotPowerCurve]; ok {
				slot.Reset()
			}
		}
	}

	d.Submitted = false
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// BindFile attaches an uploaded file to a slot and resets that slot's
// machine, dropping any token issued against the previous file.
func (d *Draft) BindFile(slot Slot, ref FileRef) error {
	status, ok := d.Slots[slot]
	if !ok {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "upload slot not available on this draft", nil)
	}
	switch slot {
	case SlotPowerCurve:
		d.Fields.Wind.CurveFile = &ref
	case SlotHistory:
		d.Fields.Train.HistoryFile = &ref
	}
	status.Reset()
	d.Submitted = false
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// FileFor returns the file bound to a slot, if any.
func (d *Draft) FileFor(slot Slot) *FileRef {
	switch slot {
	case SlotPowerCurve:
		if d.Fields.Wind != nil {
			return d.Fields.Wind.CurveFile
		}
	case SlotHistory:
		if d.Fields.Train != nil {
			return d.Fields.Train.HistoryFile
		}
	}
	return nil
}

// requiredSlots lists the slots that must be in success before the draft may
// be submitted: the history slot whenever the train mode is active, and the
// power-curve slot when a custom curve is selected.
func (d *Draft) requiredSlots() []Slot {
	var out []Slot
	if d.Fields.Wind != nil && d.Fields.Wind.CurveModel == CurveCustom {
		out = append(out, SlotPowerCurve)
	}
	if d.Variant.Mode == ForecastTrain {
		out = append(out, SlotHistory)
	}
	return out
}
