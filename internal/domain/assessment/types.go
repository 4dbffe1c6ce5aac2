package assessment

import (
	"time"

	"github.com/google/uuid"
)

// EnergyType selects the resource model a request is evaluated against.
type EnergyType string

const (
	EnergySolar EnergyType = "solar"
	EnergyWind  EnergyType = "wind"
)

// Workflow distinguishes the two request families the console offers.
type Workflow string

const (
	WorkflowAssessment Workflow = "assessment"
	WorkflowForecast   Workflow = "forecast"
)

// ForecastMode refines the forecast workflow. Standard forecasts run against
// the provider's prebuilt models; train forecasts fit a model to uploaded
// production history first.
type ForecastMode string

const (
	ForecastStandard ForecastMode = "standard"
	ForecastTrain    ForecastMode = "train"
)

// Variant is the active tag of the form union. Exactly one variant is live
// per draft; switching it clears every field that does not carry over.
type Variant struct {
	Energy EnergyType   `json:"energy"`
	Flow   Workflow     `json:"workflow"`
	Mode   ForecastMode `json:"mode,omitempty"`
}

// Shape is the resolved outbound request variant. It is decided at submit
// time from which optional field group is populated, never chosen up front.
type Shape string

const (
	ShapeBasic    Shape = "basic"
	ShapePremium  Shape = "premium"
	ShapeStandard Shape = "standard"
	ShapeTrain    Shape = "train"
)

// TrackingMode enumerates solar mount tracking options. The zero value means
// the user has not made a choice yet.
type TrackingMode string

const (
	TrackingUnset      TrackingMode = ""
	TrackingFixed      TrackingMode = "fixed"
	TrackingSingleAxis TrackingMode = "single-axis"
	TrackingDualAxis   TrackingMode = "dual-axis"
)

// known reports whether the value is one of the selectable tracking modes.
// The zero value is known but does not count as a choice.
func (m TrackingMode) known() bool {
	switch m {
	case TrackingUnset, TrackingFixed, TrackingSingleAxis, TrackingDualAxis:
		return true
	}
	return false
}

// PowerCurveModel names a turbine power curve. CurveCustom means the user
// uploads their own curve file, which must pass server-side validation.
type PowerCurveModel string

const (
	CurveUnset  PowerCurveModel = ""
	CurveIEC1   PowerCurveModel = "iec-class-1"
	CurveIEC2   PowerCurveModel = "iec-class-2"
	CurveIEC3   PowerCurveModel = "iec-class-3"
	CurveCustom PowerCurveModel = "custom-upload"
)

// known reports whether the value names a selectable curve model.
func (m PowerCurveModel) known() bool {
	switch m {
	case CurveUnset, CurveIEC1, CurveIEC2, CurveIEC3, CurveCustom:
		return true
	}
	return false
}

// Slot identifies an upload position on a draft. The wind train flow uses
// both; every other variant uses at most the power-curve slot.
type Slot string

const (
	SlotPowerCurve Slot = "power-curve"
	SlotHistory    Slot = "history"
)

// FileRef points at an uploaded object. StorageKey is unique per upload, so
// comparing keys is sufficient to detect that the bound file changed.
type FileRef struct {
	Name       string `json:"name"`
	StorageKey string `json:"storageKey"`
	SizeBytes  int64  `json:"sizeBytes"`
}

// ValidationToken is the server-issued proof that an uploaded file passed
// validation. It is bound to the exact file and power-curve model it was
// issued against; any change to either discards it.
type ValidationToken struct {
	FilePath string    `json:"filePath"`
	GUID     string    `json:"guid"`
	Aux      string    `json:"aux"`
	IssuedAt time.Time `json:"issuedAt"`
}

// SolarFields holds the solar specialized group (group 2).
type SolarFields struct {
	Tilt     string       `json:"tilt"`
	Azimuth  string       `json:"azimuth"`
	Tracking TrackingMode `json:"tracking"`
	Capacity string       `json:"capacity"`
}

// WindFields holds the wind specialized group (group 2).
type WindFields struct {
	HubHeight  string          `json:"hubHeight"`
	CurveModel PowerCurveModel `json:"curveModel"`
	CurveFile  *FileRef        `json:"curveFile,omitempty"`
}

// TrainFields holds the extra inputs of the train forecast mode.
type TrainFields struct {
	HistoryFile *FileRef `json:"historyFile,omitempty"`
}

// FormFields is the variant-shaped field set of a draft. Only the sub-struct
// matching the active variant is non-nil; dates are present on assessment
// variants only. All raw inputs stay strings until payload assembly.
type FormFields struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Elevation string `json:"elevation,omitempty"`

	Solar *SolarFields `json:"solar,omitempty"`
	Wind  *WindFields  `json:"wind,omitempty"`
	Train *TrainFields `json:"train,omitempty"`
}

// SubmitState is the two-state submission guard.
type SubmitState string

const (
	SubmitIdle     SubmitState = "idle"
	SubmitInFlight SubmitState = "submitting"
)

// Draft is one live form instance. All mutation goes through the Service,
// which serializes access per draft.
type Draft struct {
	ID      uuid.UUID  `json:"id"`
	UserID  int64      `json:"userId"`
	Variant Variant    `json:"variant"`
	Fields  FormFields `json:"fields"`

	Slots map[Slot]*SlotStatus `json:"slots"`

	Guard     SubmitState `json:"guard"`
	Submitted bool        `json:"submitted"`

	// Generation increments on every reset or variant switch so results of
	// collaborator calls started against an older draft can be discarded.
	Generation uint64    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ValidityReport is returned to the UI after every edit so the submit
// affordance can be gated without a round trip per field.
type ValidityReport struct {
	CommonComplete      bool     `json:"commonComplete"`
	SpecializedComplete bool     `json:"specializedComplete"`
	SpecializedEmpty    bool     `json:"specializedEmpty"`
	FormValid           bool     `json:"formValid"`
	Shape               Shape    `json:"shape,omitempty"`
	FieldErrors         []string `json:"fieldErrors,omitempty"`
}

// SubmitResult reports the accepted submission back to the caller.
type SubmitResult struct {
	JobID   string    `json:"jobId"`
	Shape   Shape     `json:"shape"`
	OrderID string    `json:"orderId"`
	SentAt  time.Time `json:"sentAt"`
}
