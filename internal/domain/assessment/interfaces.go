package assessment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FileValidator is the server-side validation collaborator. It must be
// idempotent: validating the same file twice is safe and returns the same
// verdict.
type FileValidator interface {
	Validate(ctx context.Context, req FileValidationRequest) (FileValidationResult, error)
}

// FileValidationRequest identifies the uploaded file and the model context it
// must be checked against.
type FileValidationRequest struct {
	File   FileRef
	Energy EnergyType
	Model  PowerCurveModel
	Slot   Slot
}

// FileValidationResult mirrors the collaborator's wire response. A token is
// only usable when Valid is true and FilePath is non-empty.
type FileValidationResult struct {
	Valid    bool   `json:"valid"`
	FilePath string `json:"filePath,omitempty"`
	GUID     string `json:"guid,omitempty"`
	Aux      string `json:"aux,omitempty"`
	Message  string `json:"message,omitempty"`
}

// SubmissionClient delivers the assembled payload to the backend endpoint
// matching its (energy, shape) pair. Endpoint selection lives behind this
// interface; the orchestrator only decides the shape.
type SubmissionClient interface {
	Submit(ctx context.Context, payload SubmissionPayload) (SubmissionAck, error)
}

// SubmissionAck is the backend's acknowledgment of an accepted request.
type SubmissionAck struct {
	JobID   string `json:"jobId"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// DraftRepository persists form drafts for the lifetime of a session.
type DraftRepository interface {
	Create(ctx context.Context, draft *Draft) error
	Get(ctx context.Context, id uuid.UUID, userID int64) (*Draft, bool, error)
	Update(ctx context.Context, draft *Draft) error
	Delete(ctx context.Context, id uuid.UUID, userID int64) error
}

// FileStore holds uploaded files until the backend has consumed them.
type FileStore interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error)
	Delete(ctx context.Context, key string) error
}

// StoredObject captures persisted blob metadata.
type StoredObject struct {
	Key      string
	Size     int64
	MimeType string
	ETag     string
}

// TokenCache mirrors issued validation tokens with a TTL so a restarted
// console instance does not resurrect tokens past their useful life.
type TokenCache interface {
	Put(ctx context.Context, draftID uuid.UUID, slot Slot, token ValidationToken, ttl time.Duration) error
	Get(ctx context.Context, draftID uuid.UUID, slot Slot) (ValidationToken, bool, error)
	Drop(ctx context.Context, draftID uuid.UUID, slot Slot) error
}

// OrderRecorder appends an order record after an acknowledged submission.
type OrderRecorder interface {
	Record(ctx context.Context, rec OrderDraft) (string, error)
}

// OrderDraft carries what the order log needs to register a submission.
type OrderDraft struct {
	UserID int64
	Energy EnergyType
	Shape  Shape
	JobID  string
}
