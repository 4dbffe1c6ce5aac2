package assessment

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/evigrid/assess-console/pkg/errors"
)

func TestBuildPayload_SolarBasic(t *testing.T) {
	draft, err := NewDraft(1, Variant{Energy: EnergySolar, Flow: WorkflowAssessment})
	require.NoError(t, err)
	fillCommon(draft)

	payload, err := BuildPayload(draft, ShapeBasic)
	require.NoError(t, err)
	require.Equal(t, EnergySolar, payload.Energy)
	require.Equal(t, ShapeBasic, payload.Shape)
	require.InDelta(t, 40.7128, payload.Site.Latitude, 1e-9)
	require.InDelta(t, -74.0060, payload.Site.Longitude, 1e-9)
	require.Nil(t, payload.Site.Elevation)
	// The basic shape carries no park specification.
	require.Nil(t, payload.Solar)
	require.NotNil(t, payload.Period)
	require.Equal(t, "2024-01-01", payload.Period.StartDate)
	require.Equal(t, "2024-06-30", payload.Period.EndDate)
}

func TestBuildPayload_SolarPremium(t *testing.T) {
	draft, err := NewDraft(1, Variant{Energy: EnergySolar, Flow: WorkflowAssessment})
	require.NoError(t, err)
	fillCommon(draft)
	draft.Fields.Elevation = "120"
	draft.Fields.Solar = &SolarFields{
		Tilt:     "30",
		Azimuth:  "180",
		Tracking: TrackingFixed,
		Capacity: "2500",
	}

	payload, err := BuildPayload(draft, ShapePremium)
	require.NoError(t, err)
	require.NotNil(t, payload.Site.Elevation)
	require.InDelta(t, 120, *payload.Site.Elevation, 1e-9)
	require.NotNil(t, payload.Solar)
	require.InDelta(t, 30, payload.Solar.TiltDeg, 1e-9)
	require.InDelta(t, 180, payload.Solar.AzimuthDeg, 1e-9)
	require.Equal(t, TrackingFixed, payload.Solar.Tracking)
	require.InDelta(t, 2500, payload.Solar.CapacityKW, 1e-9)
}

func TestBuildPayload_StrictNumericParse(t *testing.T) {
	draft, err := NewDraft(1, Variant{Energy: EnergySolar, Flow: WorkflowAssessment})
	require.NoError(t, err)
	fillCommon(draft)
	draft.Fields.Latitude = "40,7128"

	_, err = BuildPayload(draft, ShapeBasic)
	require.Equal(t, "payload_invalid", apperrors.CodeOf(err))
	require.Contains(t, err.Error(), "latitude")

	draft.Fields.Latitude = "40.7128"
	draft.Fields.Elevation = "1,20"
	_, err = BuildPayload(draft, ShapeBasic)
	require.Equal(t, "payload_invalid", apperrors.CodeOf(err))
}

func TestBuildPayload_WindCustomCurve(t *testing.T) {
	draft, err := NewDraft(1, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)
	fillCommon(draft)
	draft.Fields.Wind.HubHeight = "80"
	draft.Fields.Wind.CurveModel = CurveCustom
	require.NoError(t, draft.BindFile(SlotPowerCurve, FileRef{Name: "curve.csv", StorageKey: "k1"}))

	// A custom curve without a token is a broken precondition.
	_, err = BuildPayload(draft, ShapePremium)
	require.Equal(t, "contract_violation", apperrors.CodeOf(err))

	slot := draft.Slots[SlotPowerCurve]
	require.NoError(t, slot.BeginValidation())
	slot.Complete(ValidationToken{FilePath: "curves/k1.csv", GUID: "g-1"})

	payload, err := BuildPayload(draft, ShapePremium)
	require.NoError(t, err)
	require.NotNil(t, payload.Wind)
	require.InDelta(t, 80, payload.Wind.HubHeightM, 1e-9)
	require.Equal(t, CurveCustom, payload.Wind.CurveModel)
	require.NotNil(t, payload.Wind.CurveToken)
	require.Equal(t, "curves/k1.csv", payload.Wind.CurveToken.FilePath)
}

func TestBuildPayload_WindPresetCurveCarriesNoToken(t *testing.T) {
	draft, err := NewDraft(1, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)
	fillCommon(draft)
	draft.Fields.Wind.HubHeight = "45"
	draft.Fields.Wind.CurveModel = CurveIEC3

	payload, err := BuildPayload(draft, ShapePremium)
	require.NoError(t, err)
	require.Equal(t, CurveIEC3, payload.Wind.CurveModel)
	require.Nil(t, payload.Wind.CurveToken)
}

func TestBuildPayload_TrainRequiresHistoryToken(t *testing.T) {
	draft, err := NewDraft(1, Variant{Energy: EnergyWind, Flow: WorkflowForecast, Mode: ForecastTrain})
	require.NoError(t, err)
	draft.Fields.Latitude = "52.52"
	draft.Fields.Longitude = "13.405"
	draft.Fields.Wind.HubHeight = "100"
	draft.Fields.Wind.CurveModel = CurveIEC1
	require.NoError(t, draft.BindFile(SlotHistory, FileRef{Name: "history.csv", StorageKey: "k2"}))

	_, err = BuildPayload(draft, ShapeTrain)
	require.Equal(t, "contract_violation", apperrors.CodeOf(err))

	slot := draft.Slots[SlotHistory]
	require.NoError(t, slot.BeginValidation())
	slot.Complete(ValidationToken{FilePath: "hist/k2.csv", GUID: "g-2"})

	payload, err := BuildPayload(draft, ShapeTrain)
	require.NoError(t, err)
	require.NotNil(t, payload.Train)
	require.Equal(t, "hist/k2.csv", payload.Train.HistoryToken.FilePath)
	// Forecast variants carry no assessment period.
	require.Nil(t, payload.Period)
}
