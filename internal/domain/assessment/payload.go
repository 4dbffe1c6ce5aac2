package assessment

import (
	"fmt"
	"strconv"

	apperrors "github.com/evigrid/assess-console/pkg/errors"
)

// SubmissionPayload is the typed outbound request. Only the section matching
// the resolved shape is populated; numeric fields are parsed out of their
// string form here, after validation has already gated the submit path.
type SubmissionPayload struct {
	Energy EnergyType     `json:"energy"`
	Shape  Shape          `json:"shape"`
	Site   SitePayload    `json:"site"`
	Solar  *SolarPayload  `json:"solar,omitempty"`
	Wind   *WindPayload   `json:"wind,omitempty"`
	Train  *TrainPayload  `json:"train,omitempty"`
	Period *PeriodPayload `json:"period,omitempty"`
}

// SitePayload carries the location every request shares.
type SitePayload struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Elevation *float64 `json:"elevation,omitempty"`
}

// PeriodPayload carries the assessment date range in ISO form.
type PeriodPayload struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// SolarPayload is the premium solar park specification.
type SolarPayload struct {
	TiltDeg    float64      `json:"tiltDeg"`
	AzimuthDeg float64      `json:"azimuthDeg"`
	Tracking   TrackingMode `json:"tracking"`
	CapacityKW float64      `json:"capacityKw"`
}

// WindPayload is the wind park specification. CurveToken is present exactly
// when the custom curve model is selected.
type WindPayload struct {
	HubHeightM float64          `json:"hubHeightM"`
	CurveModel PowerCurveModel  `json:"curveModel"`
	CurveToken *ValidationToken `json:"curveToken,omitempty"`
}

// TrainPayload references the validated historical-data upload.
type TrainPayload struct {
	HistoryToken ValidationToken `json:"historyToken"`
}

// parseRequired converts a mandatory numeric field. The dashboard this
// replaces defaulted unparsable values to zero at submit time; that leniency
// let half-broken forms through, so a parse failure now fails the pre-check.
func parseRequired(name, value string) (float64, error) {
	if !IsNumeric(value) {
		return 0, apperrors.Wrap(apperrors.CodePayloadInvalid, fmt.Sprintf("%s is not a valid number", name), nil)
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodePayloadInvalid, fmt.Sprintf("%s is not a valid number", name), err)
	}
	return parsed, nil
}

// BuildPayload assembles the outbound request for the resolved shape. Token
// preconditions are checked by the caller; a missing token here is a contract
// violation, not a user error.
func BuildPayload(d *Draft, shape Shape) (SubmissionPayload, error) {
	lat, err := parseRequired("latitude", d.Fields.Latitude)
	if err != nil {
		return SubmissionPayload{}, err
	}
	lon, err := parseRequired("longitude", d.Fields.Longitude)
	if err != nil {
		return SubmissionPayload{}, err
	}
	payload := SubmissionPayload{
		Energy: d.Variant.Energy,
		Shape:  shape,
		Site:   SitePayload{Latitude: lat, Longitude: lon},
	}
	if d.Fields.Elevation != "" {
		elev, err := parseRequired("elevation", d.Fields.Elevation)
		if err != nil {
			return SubmissionPayload{}, err
		}
		payload.Site.Elevation = &elev
	}
	if d.Variant.Flow == WorkflowAssessment {
		payload.Period = &PeriodPayload{
			StartDate: d.Fields.StartDate,
			EndDate:   d.Fields.EndDate,
		}
	}

	switch d.Variant.Energy {
	case EnergySolar:
		// The basic shape is a pure resource request and carries no park
		// specification at all.
		if shape != ShapeBasic {
			solar, err := buildSolarSection(d.Fields.Solar)
			if err != nil {
				return SubmissionPayload{}, err
			}
			payload.Solar = solar
		}
	case EnergyWind:
		wind, err := buildWindSection(d)
		if err != nil {
			return SubmissionPayload{}, err
		}
		payload.Wind = wind
	}

	if shape == ShapeTrain {
		slot, ok := d.Slots[SlotHistory]
		if !ok || !slot.Validated() {
			return SubmissionPayload{}, apperrors.Wrap(apperrors.CodeContractViolation, "train payload requires a validated history file", nil)
		}
		payload.Train = &TrainPayload{HistoryToken: *slot.Token}
	}
	return payload, nil
}

func buildSolarSection(fields *SolarFields) (*SolarPayload, error) {
	if fields == nil {
		return nil, apperrors.Wrap(apperrors.CodeContractViolation, "solar premium payload without solar fields", nil)
	}
	tilt, err := parseRequired("tilt", fields.Tilt)
	if err != nil {
		return nil, err
	}
	azimuth, err := parseRequired("azimuth", fields.Azimuth)
	if err != nil {
		return nil, err
	}
	capacity, err := parseRequired("capacity", fields.Capacity)
	if err != nil {
		return nil, err
	}
	return &SolarPayload{
		TiltDeg:    tilt,
		AzimuthDeg: azimuth,
		Tracking:   fields.Tracking,
		CapacityKW: capacity,
	}, nil
}

func buildWindSection(d *Draft) (*WindPayload, error) {
	fields := d.Fields.Wind
	if fields == nil {
		return nil, apperrors.Wrap(apperrors.CodeContractViolation, "wind payload without wind fields", nil)
	}
	hub, err := parseRequired("hub height", fields.HubHeight)
	if err != nil {
		return nil, err
	}
	section := &WindPayload{
		HubHeightM: hub,
		CurveModel: fields.CurveModel,
	}
	if fields.CurveModel == CurveCustom {
		slot, ok := d.Slots[SlotPowerCurve]
		if !ok || !slot.Validated() {
			return nil, apperrors.Wrap(apperrors.CodeContractViolation, "custom power curve selected without a validation token", nil)
		}
		section.CurveToken = slot.Token
	}
	return section, nil
}
