package assessment

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/evigrid/assess-console/pkg/errors"
)

func strPtr(s string) *string { return &s }

func TestNewDraft_VariantRules(t *testing.T) {
	draft, err := NewDraft(1, Variant{Energy: EnergySolar, Flow: WorkflowAssessment})
	require.NoError(t, err)
	require.NotNil(t, draft.Fields.Solar)
	require.Nil(t, draft.Fields.Wind)
	require.Empty(t, draft.Slots)
	require.Equal(t, SubmitIdle, draft.Guard)

	draft, err = NewDraft(1, Variant{Energy: EnergyWind, Flow: WorkflowForecast, Mode: ForecastTrain})
	require.NoError(t, err)
	require.NotNil(t, draft.Fields.Wind)
	require.NotNil(t, draft.Fields.Train)
	require.Contains(t, draft.Slots, SlotPowerCurve)
	require.Contains(t, draft.Slots, SlotHistory)

	_, err = NewDraft(1, Variant{Energy: "hydro", Flow: WorkflowAssessment})
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))

	_, err = NewDraft(1, Variant{Energy: EnergySolar, Flow: WorkflowAssessment, Mode: ForecastTrain})
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))

	_, err = NewDraft(1, Variant{Energy: EnergySolar, Flow: WorkflowForecast})
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))
}

func TestDraft_ApplyRejectsForeignFields(t *testing.T) {
	solar, err := NewDraft(1, Variant{Energy: EnergySolar, Flow: WorkflowAssessment})
	require.NoError(t, err)

	hub := "80"
	err = solar.Apply(FieldPatch{HubHeight: &hub})
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))

	forecast, err := NewDraft(1, Variant{Energy: EnergySolar, Flow: WorkflowForecast, Mode: ForecastStandard})
	require.NoError(t, err)
	err = forecast.Apply(FieldPatch{StartDate: strPtr("2024-01-01")})
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))

	tilt := "30"
	wind, err := NewDraft(1, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)
	err = wind.Apply(FieldPatch{Tilt: &tilt})
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))
}

func TestDraft_ApplyRejectsUnknownEnumValues(t *testing.T) {
	solar, err := NewDraft(1, Variant{Energy: EnergySolar, Flow: WorkflowAssessment})
	require.NoError(t, err)
	bogusTracking := TrackingMode("banana")
	err = solar.Apply(FieldPatch{Tracking: &bogusTracking})
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))
	require.Equal(t, TrackingUnset, solar.Fields.Solar.Tracking)

	wind, err := NewDraft(1, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)
	bogusModel := PowerCurveModel("banana")
	err = wind.Apply(FieldPatch{CurveModel: &bogusModel})
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))
	require.Equal(t, CurveUnset, wind.Fields.Wind.CurveModel)
}

func TestDraft_ApplyPartialUpdate(t *testing.T) {
	draft, err := NewDraft(1, Variant{Energy: EnergySolar, Flow: WorkflowAssessment})
	require.NoError(t, err)

	require.NoError(t, draft.Apply(FieldPatch{Latitude: strPtr("40.7128"), Longitude: strPtr("-74.0060")}))
	require.Equal(t, "40.7128", draft.Fields.Latitude)
	require.Equal(t, "-74.0060", draft.Fields.Longitude)

	// A later patch touching only one field leaves the rest alone.
	require.NoError(t, draft.Apply(FieldPatch{Latitude: strPtr("41")}))
	require.Equal(t, "41", draft.Fields.Latitude)
	require.Equal(t, "-74.0060", draft.Fields.Longitude)
}

func TestDraft_CurveModelChangeResetsSlot(t *testing.T) {
	draft, err := NewDraft(1, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)

	custom := CurveCustom
	require.NoError(t, draft.Apply(FieldPatch{CurveModel: &custom}))
	require.NoError(t, draft.BindFile(SlotPowerCurve, FileRef{Name: "curve.csv", StorageKey: "k1"}))

	slot := draft.Slots[SlotPowerCurve]
	require.NoError(t, slot.BeginValidation())
	slot.Complete(ValidationToken{FilePath: "curves/k1.csv"})
	require.True(t, slot.Validated())

	// Re-applying the same model is a no-op for the slot machine.
	require.NoError(t, draft.Apply(FieldPatch{CurveModel: &custom}))
	require.True(t, draft.Slots[SlotPowerCurve].Validated())

	iec := CurveIEC1
	require.NoError(t, draft.Apply(FieldPatch{CurveModel: &iec}))
	require.Equal(t, SlotIdle, draft.Slots[SlotPowerCurve].Phase)
	require.Nil(t, draft.Slots[SlotPowerCurve].Token)
}

func TestDraft_BindFileResetsSlot(t *testing.T) {
	draft, err := NewDraft(1, Variant{Energy: EnergyWind, Flow: WorkflowForecast, Mode: ForecastTrain})
	require.NoError(t, err)

	require.NoError(t, draft.BindFile(SlotHistory, FileRef{Name: "a.csv", StorageKey: "k1"}))
	slot := draft.Slots[SlotHistory]
	require.NoError(t, slot.BeginValidation())
	slot.Complete(ValidationToken{FilePath: "hist/k1.csv"})

	require.NoError(t, draft.BindFile(SlotHistory, FileRef{Name: "b.csv", StorageKey: "k2"}))
	require.Equal(t, SlotIdle, draft.Slots[SlotHistory].Phase)
	require.Equal(t, "k2", draft.FileFor(SlotHistory).StorageKey)

	err = draft.BindFile(SlotPowerCurve, FileRef{Name: "c.csv", StorageKey: "k3"})
	require.NoError(t, err) // wind drafts always carry the power-curve slot

	solar, err := NewDraft(1, Variant{Energy: EnergySolar, Flow: WorkflowAssessment})
	require.NoError(t, err)
	err = solar.BindFile(SlotPowerCurve, FileRef{Name: "c.csv", StorageKey: "k3"})
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))
}

func TestDraft_ResetForVariantDropsIncompatibleState(t *testing.T) {
	draft, err := NewDraft(1, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)
	require.NoError(t, draft.Apply(FieldPatch{
		Latitude:  strPtr("40.7128"),
		HubHeight: strPtr("80"),
	}))
	gen := draft.Generation

	require.NoError(t, draft.ResetForVariant(Variant{Energy: EnergySolar, Flow: WorkflowAssessment}))
	require.Nil(t, draft.Fields.Wind)
	require.NotNil(t, draft.Fields.Solar)
	require.Empty(t, draft.Fields.Latitude)
	require.Empty(t, draft.Slots)
	require.Equal(t, gen+1, draft.Generation)

	err = draft.ResetForVariant(Variant{Energy: "tidal", Flow: WorkflowAssessment})
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))
	// A rejected switch leaves the draft untouched.
	require.Equal(t, EnergySolar, draft.Variant.Energy)
}

func TestDraft_ClearKeepsVariant(t *testing.T) {
	draft, err := NewDraft(1, Variant{Energy: EnergyWind, Flow: WorkflowForecast, Mode: ForecastTrain})
	require.NoError(t, err)
	require.NoError(t, draft.Apply(FieldPatch{Latitude: strPtr("52.52"), HubHeight: strPtr("100")}))
	draft.Submitted = true
	gen := draft.Generation

	draft.Clear()
	require.Equal(t, EnergyWind, draft.Variant.Energy)
	require.Equal(t, ForecastTrain, draft.Variant.Mode)
	require.Empty(t, draft.Fields.Latitude)
	require.Empty(t, draft.Fields.Wind.HubHeight)
	require.False(t, draft.Submitted)
	require.Equal(t, gen+1, draft.Generation)
}

func TestDraft_RequiredSlots(t *testing.T) {
	wind, err := NewDraft(1, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)
	require.Empty(t, wind.requiredSlots())

	wind.Fields.Wind.CurveModel = CurveCustom
	require.Equal(t, []Slot{SlotPowerCurve}, wind.requiredSlots())

	train, err := NewDraft(1, Variant{Energy: EnergyWind, Flow: WorkflowForecast, Mode: ForecastTrain})
	require.NoError(t, err)
	train.Fields.Wind.CurveModel = CurveCustom
	require.Equal(t, []Slot{SlotPowerCurve, SlotHistory}, train.requiredSlots())

	solar, err := NewDraft(1, Variant{Energy: EnergySolar, Flow: WorkflowAssessment})
	require.NoError(t, err)
	require.Empty(t, solar.requiredSlots())
}
