package assessment

import "time"

// RuleEngine composes the field validators into the grouped form policy.
// Group 1 covers the common fields every request carries; group 2 covers the
// energy-specific specification. The wind and solar top-level policies differ
// on purpose: a solar form with an untouched group 2 is a valid basic
// resource request, while wind has no basic path at all.
type RuleEngine struct {
	now func() time.Time
}

// NewRuleEngine builds the engine with an injectable clock.
func NewRuleEngine(now func() time.Time) *RuleEngine {
	if now == nil {
		now = time.Now
	}
	return &RuleEngine{now: now}
}

// CommonComplete reports group 1 validity for the draft's variant. Forecast
// variants omit the date range, so only coordinates are checked there.
func (e *RuleEngine) CommonComplete(d *Draft) bool {
	if !IsValidLatitude(d.Fields.Latitude) || !IsValidLongitude(d.Fields.Longitude) {
		return false
	}
	if d.Fields.Elevation != "" && !IsValidElevation(d.Fields.Elevation) {
		return false
	}
	if d.Variant.Flow == WorkflowForecast {
		return true
	}
	now := e.now()
	if !IsValidObservationDate(d.Fields.StartDate, d.Variant.Energy, now) {
		return false
	}
	return IsValidEndDate(d.Fields.EndDate, d.Fields.StartDate, d.Variant.Energy, now)
}

// SpecializedEmpty reports whether the solar group 2 is entirely untouched:
// no tilt, no azimuth, tracking never chosen, no capacity. Only the solar
// policy consults this; wind has no optional group.
func (e *RuleEngine) SpecializedEmpty(d *Draft) bool {
	if d.Variant.Energy != EnergySolar || d.Fields.Solar == nil {
		return false
	}
	s := d.Fields.Solar
	return s.Tilt == "" && s.Azimuth == "" && s.Tracking == TrackingUnset && s.Capacity == ""
}

// SpecializedComplete reports group 2 validity.
func (e *RuleEngine) SpecializedComplete(d *Draft) bool {
	switch d.Variant.Energy {
	case EnergySolar:
		s := d.Fields.Solar
		if s == nil {
			return false
		}
		return IsValidTilt(s.Tilt) &&
			IsValidAzimuth(s.Azimuth) &&
			s.Tracking != TrackingUnset && s.Tracking.known() &&
			IsPositiveNumber(s.Capacity)
	case EnergyWind:
		w := d.Fields.Wind
		if w == nil {
			return false
		}
		if !IsValidHubHeight(w.HubHeight) || w.CurveModel == CurveUnset || !w.CurveModel.known() {
			return false
		}
		if w.CurveModel == CurveCustom && w.CurveFile == nil {
			return false
		}
		return true
	}
	return false
}

// trainComplete checks the extra requirement of the train forecast mode: a
// bound historical-data file.
func (e *RuleEngine) trainComplete(d *Draft) bool {
	if d.Variant.Mode != ForecastTrain {
		return true
	}
	return d.Fields.Train != nil && d.Fields.Train.HistoryFile != nil
}

// FormValid applies the top-level policy for the draft's variant.
func (e *RuleEngine) FormValid(d *Draft) bool {
	if !e.CommonComplete(d) || !e.trainComplete(d) {
		return false
	}
	switch d.Variant.Energy {
	case EnergyWind:
		// Wind submissions always carry the full park specification.
		return e.SpecializedComplete(d)
	case EnergySolar:
		return e.SpecializedEmpty(d) || e.SpecializedComplete(d)
	}
	return false
}

// ResolveShape decides the outbound request variant. Callers must only use
// the result when FormValid holds.
func (e *RuleEngine) ResolveShape(d *Draft) Shape {
	if d.Variant.Flow == WorkflowForecast {
		if d.Variant.Mode == ForecastTrain {
			return ShapeTrain
		}
		return ShapeStandard
	}
	if d.Variant.Energy == EnergySolar && e.SpecializedEmpty(d) {
		return ShapeBasic
	}
	return ShapePremium
}

// Report produces the full validity snapshot sent back after each edit.
func (e *RuleEngine) Report(d *Draft) ValidityReport {
	report := ValidityReport{
		CommonComplete:      e.CommonComplete(d),
		SpecializedComplete: e.SpecializedComplete(d),
		SpecializedEmpty:    e.SpecializedEmpty(d),
	}
	report.FormValid = e.FormValid(d)
	if report.FormValid {
		report.Shape = e.ResolveShape(d)
	}
	report.FieldErrors = e.fieldErrors(d)
	return report
}

func (e *RuleEngine) fieldErrors(d *Draft) []string {
	var errs []string
	now := e.now()
	if d.Fields.Latitude != "" && !IsValidLatitude(d.Fields.Latitude) {
		errs = append(errs, "latitude must be a decimal-dot number between -90 and 90")
	}
	if d.Fields.Longitude != "" && !IsValidLongitude(d.Fields.Longitude) {
		errs = append(errs, "longitude must be a decimal-dot number between -180 and 180")
	}
	if d.Fields.Elevation != "" && !IsValidElevation(d.Fields.Elevation) {
		errs = append(errs, "elevation must be between 0 and 8849 meters")
	}
	if d.Variant.Flow == WorkflowAssessment {
		if d.Fields.StartDate != "" && !IsValidObservationDate(d.Fields.StartDate, d.Variant.Energy, now) {
			errs = append(errs, "start date is outside the available data range")
		}
		if d.Fields.EndDate != "" && !IsValidEndDate(d.Fields.EndDate, d.Fields.StartDate, d.Variant.Energy, now) {
			errs = append(errs, "end date must be valid and not precede the start date")
		}
	}
	if s := d.Fields.Solar; s != nil {
		if s.Tilt != "" && !IsValidTilt(s.Tilt) {
			errs = append(errs, "tilt must be between 0 and 90 degrees")
		}
		if s.Azimuth != "" && !IsValidAzimuth(s.Azimuth) {
			errs = append(errs, "azimuth must be between 0 and 360 degrees")
		}
		if s.Capacity != "" && !IsPositiveNumber(s.Capacity) {
			errs = append(errs, "capacity must be a positive number")
		}
	}
	if w := d.Fields.Wind; w != nil {
		if w.HubHeight != "" && !IsValidHubHeight(w.HubHeight) {
			errs = append(errs, "hub height must be between 40 and 300 meters")
		}
	}
	return errs
}
