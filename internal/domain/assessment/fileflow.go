package assessment

import (
	"time"

	apperrors "github.com/evigrid/assess-console/pkg/errors"
)

// SlotPhase is the state of one upload slot's validation machine.
type SlotPhase string

const (
	SlotIdle       SlotPhase = "idle"
	SlotValidating SlotPhase = "validating"
	SlotSuccess    SlotPhase = "success"
	SlotError      SlotPhase = "error"
)

// SlotStatus is a per-slot validation machine: idle → validating →
// success|error. The only way back to idle is an explicit reset, which is
// forced whenever the bound file, the curve model, or the variant changes, so
// a token can never outlive the exact inputs it was issued against.
type SlotStatus struct {
	Phase   SlotPhase        `json:"phase"`
	Token   *ValidationToken `json:"token,omitempty"`
	Message string           `json:"message,omitempty"`
}

// NewSlotStatus returns a fresh idle slot.
func NewSlotStatus() *SlotStatus {
	return &SlotStatus{Phase: SlotIdle}
}

// Reset discards any cached token and message and returns the slot to idle.
func (s *SlotStatus) Reset() {
	s.Phase = SlotIdle
	s.Token = nil
	s.Message = ""
}

// BeginValidation moves the slot into the validating phase. Starting from
// validating is refused so two validation calls cannot race on one slot.
func (s *SlotStatus) BeginValidation() error {
	if s.Phase == SlotValidating {
		return apperrors.Wrap(apperrors.CodeValidationInFlight, "file validation already running for this slot", nil)
	}
	s.Phase = SlotValidating
	s.Token = nil
	s.Message = ""
	return nil
}

// Complete records a successful validation and caches the issued token.
func (s *SlotStatus) Complete(token ValidationToken) {
	token.IssuedAt = time.Now().UTC()
	s.Phase = SlotSuccess
	s.Token = &token
	s.Message = ""
}

// Fail records a validation failure. Any previously cached token is dropped.
func (s *SlotStatus) Fail(message string) {
	if message == "" {
		message = "file validation failed"
	}
	s.Phase = SlotError
	s.Token = nil
	s.Message = message
}

// Validated reports whether the slot holds a live token.
func (s *SlotStatus) Validated() bool {
	return s.Phase == SlotSuccess && s.Token != nil
}
