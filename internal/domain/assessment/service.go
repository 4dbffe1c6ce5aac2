package assessment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/evigrid/assess-console/pkg/errors"
)

// Config drives upload limits and token lifetime.
type Config struct {
	MaxFileBytes int64
	TokenTTL     time.Duration
}

// Service owns every draft mutation and the submission pipeline. Access to a
// draft is serialized through a per-draft mutex; the submission guard is
// checked and set under that lock, so at most one submission per draft can
// ever be in flight.
type Service struct {
	cfg       Config
	drafts    DraftRepository
	engine    *RuleEngine
	files     FileStore
	checker   FileValidator
	submitter SubmissionClient
	orders    OrderRecorder
	tokens    TokenCache
	logger    *slog.Logger

	locks sync.Map // uuid.UUID -> *sync.Mutex
}

// NewService constructs the Service. tokens may be nil when no cache backend
// is configured.
func NewService(cfg Config, drafts DraftRepository, engine *RuleEngine, files FileStore, checker FileValidator, submitter SubmissionClient, orders OrderRecorder, tokens TokenCache, logger *slog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		drafts:    drafts,
		engine:    engine,
		files:     files,
		checker:   checker,
		submitter: submitter,
		orders:    orders,
		tokens:    tokens,
		logger:    logger.With("component", "assessment.service"),
	}
}

func (s *Service) lock(id uuid.UUID) func() {
	entry, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := entry.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CreateDraft opens a fresh form instance for the variant.
func (s *Service) CreateDraft(ctx context.Context, userID int64, variant Variant) (*Draft, error) {
	if userID == 0 {
		return nil, apperrors.Wrap(apperrors.CodeUnauthorized, "missing user", nil)
	}
	draft, err := NewDraft(userID, variant)
	if err != nil {
		return nil, err
	}
	if err := s.drafts.Create(ctx, draft); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to persist draft", err)
	}
	s.logger.Info("draft created", "draft_id", draft.ID, "energy", variant.Energy, "workflow", variant.Flow)
	return draft, nil
}

// GetDraft returns the draft and its current validity snapshot. Slots whose
// token is missing are rehydrated from the cache, or downgraded to idle when
// the cached copy has expired.
func (s *Service) GetDraft(ctx context.Context, userID int64, id uuid.UUID) (*Draft, ValidityReport, error) {
	unlock := s.lock(id)
	defer unlock()
	draft, found, err := s.drafts.Get(ctx, id, userID)
	if err != nil {
		return nil, ValidityReport{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to load draft", err)
	}
	if !found {
		return nil, ValidityReport{}, apperrors.Wrap(apperrors.CodeNotFound, "draft not found", nil)
	}
	if s.rehydrateTokens(ctx, draft) {
		if err := s.drafts.Update(ctx, draft); err != nil {
			return nil, ValidityReport{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to persist draft", err)
		}
	}
	return draft, s.engine.Report(draft), nil
}

// UpdateFields applies a partial edit and returns the recomputed validity.
// Coordinate pairs from the map picker flow through here unchanged.
func (s *Service) UpdateFields(ctx context.Context, userID int64, id uuid.UUID, patch FieldPatch) (ValidityReport, error) {
	unlock := s.lock(id)
	defer unlock()
	draft, found, err := s.drafts.Get(ctx, id, userID)
	if err != nil {
		return ValidityReport{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to load draft", err)
	}
	if !found {
		return ValidityReport{}, apperrors.Wrap(apperrors.CodeNotFound, "draft not found", nil)
	}
	if err := draft.Apply(patch); err != nil {
		return ValidityReport{}, err
	}
	s.dropStaleTokens(ctx, draft)
	if err := s.drafts.Update(ctx, draft); err != nil {
		return ValidityReport{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to persist draft", err)
	}
	return s.engine.Report(draft), nil
}

// SwitchVariant changes the active tag. All fields, slot machines, and
// tokens incompatible with the new variant are dropped in one place.
func (s *Service) SwitchVariant(ctx context.Context, userID int64, id uuid.UUID, variant Variant) (*Draft, error) {
	unlock := s.lock(id)
	defer unlock()
	draft, found, err := s.drafts.Get(ctx, id, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to load draft", err)
	}
	if !found {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, "draft not found", nil)
	}
	if err := draft.ResetForVariant(variant); err != nil {
		return nil, err
	}
	s.dropAllTokens(ctx, draft.ID)
	if err := s.drafts.Update(ctx, draft); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to persist draft", err)
	}
	s.logger.Info("draft variant switched", "draft_id", draft.ID, "energy", variant.Energy, "workflow", variant.Flow)
	return draft, nil
}

// ResetDraft clears every field of the current variant.
func (s *Service) ResetDraft(ctx context.Context, userID int64, id uuid.UUID) (*Draft, error) {
	unlock := s.lock(id)
	defer unlock()
	draft, found, err := s.drafts.Get(ctx, id, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to load draft", err)
	}
	if !found {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, "draft not found", nil)
	}
	draft.Clear()
	s.dropAllTokens(ctx, draft.ID)
	if err := s.drafts.Update(ctx, draft); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to persist draft", err)
	}
	return draft, nil
}

// DeleteDraft discards the form instance, mirroring a view unmount. Stored
// uploads are removed best-effort; a failed object delete never blocks the
// unmount.
func (s *Service) DeleteDraft(ctx context.Context, userID int64, id uuid.UUID) error {
	unlock := s.lock(id)
	defer unlock()
	draft, found, err := s.drafts.Get(ctx, id, userID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to load draft", err)
	}
	if found {
		for _, slot := range []Slot{SlotPowerCurve, SlotHistory} {
			file := draft.FileFor(slot)
			if file == nil {
				continue
			}
			if err := s.files.Delete(ctx, file.StorageKey); err != nil {
				s.logger.Warn("failed to delete stored file", "draft_id", id, "slot", slot, "error", err)
			}
		}
	}
	s.dropAllTokens(ctx, id)
	if err := s.drafts.Delete(ctx, id, userID); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to delete draft", err)
	}
	s.locks.Delete(id)
	return nil
}

// AttachFile stores the upload and binds it to the slot. Binding always
// resets the slot machine, so a token from the previous file cannot survive.
func (s *Service) AttachFile(ctx context.Context, userID int64, id uuid.UUID, slot Slot, filename, mimeType string, content []byte) (*FileRef, error) {
	if len(content) == 0 {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "file content cannot be empty", nil)
	}
	if s.cfg.MaxFileBytes > 0 && int64(len(content)) > s.cfg.MaxFileBytes {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "file exceeds maximum allowed size", nil)
	}
	unlock := s.lock(id)
	defer unlock()
	draft, found, err := s.drafts.Get(ctx, id, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to load draft", err)
	}
	if !found {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, "draft not found", nil)
	}
	if _, ok := draft.Slots[slot]; !ok {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "upload slot not available on this draft", nil)
	}
	key := fmt.Sprintf("uploads/%d/%s/%s/%s", userID, draft.ID, slot, sanitizeFilename(filename))
	obj, err := s.files.Put(ctx, key, content, mimeType)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to store file", err)
	}
	ref := FileRef{Name: filename, StorageKey: obj.Key, SizeBytes: obj.Size}
	if err := draft.BindFile(slot, ref); err != nil {
		return nil, err
	}
	s.dropToken(ctx, draft.ID, slot)
	if err := s.drafts.Update(ctx, draft); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to persist draft", err)
	}
	s.logger.Info("file bound", "draft_id", draft.ID, "slot", slot, "size", obj.Size)
	return &ref, nil
}

// ValidateSlot runs the slot machine once: idle|error → validating, then
// success or error depending on the collaborator verdict. The result is
// discarded when the bound file or curve model changed while the call was in
// flight.
func (s *Service) ValidateSlot(ctx context.Context, userID int64, id uuid.UUID, slot Slot) (SlotStatus, error) {
	unlock := s.lock(id)
	draft, found, err := s.drafts.Get(ctx, id, userID)
	if err != nil {
		unlock()
		return SlotStatus{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to load draft", err)
	}
	if !found {
		unlock()
		return SlotStatus{}, apperrors.Wrap(apperrors.CodeNotFound, "draft not found", nil)
	}
	status, ok := draft.Slots[slot]
	if !ok {
		unlock()
		return SlotStatus{}, apperrors.Wrap(apperrors.CodeInvalidInput, "upload slot not available on this draft", nil)
	}
	file := draft.FileFor(slot)
	if file == nil {
		// Fail locally, no network call.
		status.Fail(missingFileMessage(draft, slot))
		_ = s.drafts.Update(ctx, draft)
		snapshot := *status
		unlock()
		return snapshot, nil
	}
	if err := status.BeginValidation(); err != nil {
		unlock()
		return SlotStatus{}, err
	}
	model := CurveUnset
	if draft.Fields.Wind != nil {
		model = draft.Fields.Wind.CurveModel
	}
	req := FileValidationRequest{
		File:   *file,
		Energy: draft.Variant.Energy,
		Model:  model,
		Slot:   slot,
	}
	if err := s.drafts.Update(ctx, draft); err != nil {
		status.Reset()
		unlock()
		return SlotStatus{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to persist draft", err)
	}
	unlock()

	result, callErr := s.checker.Validate(ctx, req)

	unlock = s.lock(id)
	defer unlock()
	draft, found, err = s.drafts.Get(ctx, id, userID)
	if err != nil {
		return SlotStatus{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to load draft", err)
	}
	if !found {
		return SlotStatus{}, apperrors.Wrap(apperrors.CodeStaleResult, "draft no longer exists", nil)
	}
	status, ok = draft.Slots[slot]
	if !ok || status.Phase != SlotValidating || !sameValidationTarget(draft, slot, req) {
		// The file, model, or variant changed underneath the call.
		s.logger.Debug("discarding stale validation result", "draft_id", id, "slot", slot)
		return SlotStatus{}, apperrors.Wrap(apperrors.CodeStaleResult, "draft changed during validation", nil)
	}
	switch {
	case callErr != nil:
		status.Fail("file validation failed: " + callErr.Error())
		s.dropToken(ctx, draft.ID, slot)
	case !result.Valid || strings.TrimSpace(result.FilePath) == "":
		status.Fail(result.Message)
		s.dropToken(ctx, draft.ID, slot)
	default:
		token := ValidationToken{FilePath: result.FilePath, GUID: result.GUID, Aux: result.Aux}
		status.Complete(token)
		s.cacheToken(ctx, draft.ID, slot, *status.Token)
	}
	if err := s.drafts.Update(ctx, draft); err != nil {
		return SlotStatus{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to persist draft", err)
	}
	return *status, nil
}

// Submit runs the full pre-check pipeline and delivers the payload. The
// guard makes duplicate submits a no-op: exactly one call can reach the
// submission collaborator per draft at a time.
func (s *Service) Submit(ctx context.Context, userID int64, id uuid.UUID) (SubmitResult, error) {
	unlock := s.lock(id)
	draft, found, err := s.drafts.Get(ctx, id, userID)
	if err != nil {
		unlock()
		return SubmitResult{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to load draft", err)
	}
	if !found {
		unlock()
		return SubmitResult{}, apperrors.Wrap(apperrors.CodeNotFound, "draft not found", nil)
	}
	if draft.Guard == SubmitInFlight {
		unlock()
		return SubmitResult{}, apperrors.Wrap(apperrors.CodeSubmissionInFlight, "a submission is already running", nil)
	}
	if draft.Submitted {
		unlock()
		return SubmitResult{}, apperrors.Wrap(apperrors.CodeAlreadySubmitted, "draft was already submitted", nil)
	}
	// Users can bypass the disabled submit button, so coordinates are
	// re-checked here before the guard is touched.
	if !IsValidLatitude(draft.Fields.Latitude) || !IsValidLongitude(draft.Fields.Longitude) {
		unlock()
		return SubmitResult{}, apperrors.Wrap(apperrors.CodeInvalidInput, "coordinates are missing or invalid", nil)
	}
	draft.Guard = SubmitInFlight
	generation := draft.Generation
	if err := s.drafts.Update(ctx, draft); err != nil {
		draft.Guard = SubmitIdle
		unlock()
		return SubmitResult{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to persist draft", err)
	}
	pending := pendingSlots(draft)
	unlock()

	// Required slots that have not been validated yet are validated inline
	// as part of the submit path.
	for _, slot := range pending {
		slotStatus, err := s.ValidateSlot(ctx, userID, id, slot)
		if err != nil {
			return SubmitResult{}, s.abortSubmit(ctx, userID, id, err)
		}
		if !slotStatus.Validated() {
			failure := apperrors.Wrap(apperrors.CodeFileValidationFailed, slotStatus.Message, nil)
			return SubmitResult{}, s.abortSubmit(ctx, userID, id, failure)
		}
	}

	unlock = s.lock(id)
	draft, found, err = s.drafts.Get(ctx, id, userID)
	if err != nil || !found || draft.Generation != generation {
		unlock()
		return SubmitResult{}, s.abortSubmit(ctx, userID, id, apperrors.Wrap(apperrors.CodeStaleResult, "draft changed during submission", err))
	}
	// Re-verify under the lock; a slot may have been reset between the
	// inline validation and now.
	for _, slot := range draft.requiredSlots() {
		if status, ok := draft.Slots[slot]; !ok || !status.Validated() {
			unlock()
			return SubmitResult{}, s.abortSubmit(ctx, userID, id, apperrors.Wrap(apperrors.CodeFileValidationFailed, "required file is not validated", nil))
		}
	}
	shape := s.engine.ResolveShape(draft)
	payload, err := BuildPayload(draft, shape)
	if err != nil {
		unlock()
		return SubmitResult{}, s.abortSubmit(ctx, userID, id, err)
	}
	unlock()

	ack, submitErr := s.submitter.Submit(ctx, payload)

	unlock = s.lock(id)
	defer unlock()
	draft, found, err = s.drafts.Get(ctx, id, userID)
	if err != nil {
		return SubmitResult{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to load draft", err)
	}
	if !found || draft.Generation != generation {
		// The form instance was reset or discarded while the call was in
		// flight; its result must not touch the newer state, but the guard
		// still has to come down so the newer state can submit.
		s.logger.Warn("discarding stale submission result", "draft_id", id)
		if found && draft.Guard == SubmitInFlight {
			draft.Guard = SubmitIdle
			if err := s.drafts.Update(ctx, draft); err != nil {
				s.logger.Error("failed to clear guard after stale submission", "draft_id", id, "error", err)
			}
		}
		return SubmitResult{}, apperrors.Wrap(apperrors.CodeStaleResult, "draft changed during submission", nil)
	}
	if submitErr != nil {
		draft.Guard = SubmitIdle
		if err := s.drafts.Update(ctx, draft); err != nil {
			s.logger.Error("failed to clear guard after submission failure", "draft_id", id, "error", err)
		}
		return SubmitResult{}, apperrors.Wrap(apperrors.CodeSubmissionFailed, "submission rejected", submitErr)
	}

	orderID, orderErr := s.orders.Record(ctx, OrderDraft{
		UserID: userID,
		Energy: draft.Variant.Energy,
		Shape:  shape,
		JobID:  ack.JobID,
	})
	if orderErr != nil {
		s.logger.Warn("order registration failed", "draft_id", id, "error", orderErr)
	}
	s.dropAllTokens(ctx, draft.ID)
	draft.Clear()
	draft.Submitted = true
	draft.Guard = SubmitIdle
	if err := s.drafts.Update(ctx, draft); err != nil {
		return SubmitResult{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to persist draft", err)
	}
	s.logger.Info("submission accepted", "draft_id", id, "shape", shape, "job_id", ack.JobID)
	return SubmitResult{
		JobID:   ack.JobID,
		Shape:   shape,
		OrderID: orderID,
		SentAt:  time.Now().UTC(),
	}, nil
}

// abortSubmit clears the guard after a failed pre-check or inline validation
// so the user can retry, then passes the original failure through.
func (s *Service) abortSubmit(ctx context.Context, userID int64, id uuid.UUID, cause error) error {
	unlock := s.lock(id)
	defer unlock()
	draft, found, err := s.drafts.Get(ctx, id, userID)
	if err != nil || !found {
		return cause
	}
	if draft.Guard == SubmitInFlight {
		draft.Guard = SubmitIdle
		if err := s.drafts.Update(ctx, draft); err != nil {
			s.logger.Error("failed to clear guard", "draft_id", id, "error", err)
		}
	}
	return cause
}

// pendingSlots lists required slots that still need a validation run.
func pendingSlots(d *Draft) []Slot {
	var out []Slot
	for _, slot := range d.requiredSlots() {
		if status, ok := d.Slots[slot]; ok && !status.Validated() {
			out = append(out, slot)
		}
	}
	return out
}

func sameValidationTarget(d *Draft, slot Slot, req FileValidationRequest) bool {
	file := d.FileFor(slot)
	if file == nil || file.StorageKey != req.File.StorageKey {
		return false
	}
	if slot == SlotPowerCurve {
		if d.Fields.Wind == nil || d.Fields.Wind.CurveModel != req.Model {
			return false
		}
	}
	return d.Variant.Energy == req.Energy
}

func missingFileMessage(d *Draft, slot Slot) string {
	if slot == SlotPowerCurve && d.Fields.Wind != nil && d.Fields.Wind.CurveModel == CurveCustom {
		return "select a power curve file before validating"
	}
	if slot == SlotHistory {
		return "select a historical data file before validating"
	}
	return "no file bound to this slot"
}

func (s *Service) cacheToken(ctx context.Context, draftID uuid.UUID, slot Slot, token ValidationToken) {
	if s.tokens == nil {
		return
	}
	if err := s.tokens.Put(ctx, draftID, slot, token, s.cfg.TokenTTL); err != nil {
		s.logger.Warn("token cache write failed", "draft_id", draftID, "slot", slot, "error", err)
	}
}

func (s *Service) dropToken(ctx context.Context, draftID uuid.UUID, slot Slot) {
	if s.tokens == nil {
		return
	}
	if err := s.tokens.Drop(ctx, draftID, slot); err != nil {
		s.logger.Warn("token cache drop failed", "draft_id", draftID, "slot", slot, "error", err)
	}
}

func (s *Service) dropAllTokens(ctx context.Context, draftID uuid.UUID) {
	s.dropToken(ctx, draftID, SlotPowerCurve)
	s.dropToken(ctx, draftID, SlotHistory)
}

// rehydrateTokens restores tokens for successful slots that lost their copy,
// e.g. after a restart of a persisted session. A slot whose cached token has
// expired falls back to idle and must be re-validated. Reports whether the
// draft changed.
func (s *Service) rehydrateTokens(ctx context.Context, d *Draft) bool {
	if s.tokens == nil {
		return false
	}
	changed := false
	for slot, status := range d.Slots {
		if status.Phase != SlotSuccess || status.Token != nil {
			continue
		}
		token, found, err := s.tokens.Get(ctx, d.ID, slot)
		if err != nil {
			s.logger.Warn("token cache read failed", "draft_id", d.ID, "slot", slot, "error", err)
			continue
		}
		if found {
			status.Token = &token
		} else {
			status.Reset()
		}
		changed = true
	}
	return changed
}

// dropStaleTokens clears cached tokens for slots that were reset by an edit.
func (s *Service) dropStaleTokens(ctx context.Context, d *Draft) {
	for slot, status := range d.Slots {
		if status.Phase == SlotIdle {
			s.dropToken(ctx, d.ID, slot)
		}
	}
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "/", "_")
	if name == "" {
		return "file"
	}
	return name
}
