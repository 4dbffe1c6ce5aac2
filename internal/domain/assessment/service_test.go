package assessment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	apperrors "github.com/evigrid/assess-console/pkg/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryDrafts is the in-package repository used by service tests.
type memoryDrafts struct {
	mu     sync.Mutex
	drafts map[uuid.UUID]*Draft
}

func newMemoryDrafts() *memoryDrafts {
	return &memoryDrafts{drafts: make(map[uuid.UUID]*Draft)}
}

func (m *memoryDrafts) Create(_ context.Context, draft *Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[draft.ID] = draft
	return nil
}

func (m *memoryDrafts) Get(_ context.Context, id uuid.UUID, userID int64) (*Draft, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft, ok := m.drafts[id]
	if !ok || draft.UserID != userID {
		return nil, false, nil
	}
	return draft, true, nil
}

func (m *memoryDrafts) Update(_ context.Context, draft *Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[draft.ID] = draft
	return nil
}

func (m *memoryDrafts) Delete(_ context.Context, id uuid.UUID, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, id)
	return nil
}

type stubFiles struct {
	deleted []string
}

func (s *stubFiles) Put(_ context.Context, key string, data []byte, mimeType string) (StoredObject, error) {
	return StoredObject{Key: key, Size: int64(len(data)), MimeType: mimeType}, nil
}

func (s *stubFiles) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

// stubTokens is an in-memory TokenCache without expiry; tests drop entries
// explicitly to simulate a TTL lapse.
type stubTokens struct {
	items map[string]ValidationToken
}

func newStubTokens() *stubTokens {
	return &stubTokens{items: make(map[string]ValidationToken)}
}

func tokenKey(draftID uuid.UUID, slot Slot) string {
	return draftID.String() + "/" + string(slot)
}

func (s *stubTokens) Put(_ context.Context, draftID uuid.UUID, slot Slot, token ValidationToken, _ time.Duration) error {
	s.items[tokenKey(draftID, slot)] = token
	return nil
}

func (s *stubTokens) Get(_ context.Context, draftID uuid.UUID, slot Slot) (ValidationToken, bool, error) {
	token, ok := s.items[tokenKey(draftID, slot)]
	return token, ok, nil
}

func (s *stubTokens) Drop(_ context.Context, draftID uuid.UUID, slot Slot) error {
	delete(s.items, tokenKey(draftID, slot))
	return nil
}

type stubChecker struct {
	fn    func(ctx context.Context, req FileValidationRequest) (FileValidationResult, error)
	calls int
}

func (s *stubChecker) Validate(ctx context.Context, req FileValidationRequest) (FileValidationResult, error) {
	s.calls++
	if s.fn == nil {
		return FileValidationResult{Valid: true, FilePath: "validated/" + req.File.StorageKey, GUID: "guid-1"}, nil
	}
	return s.fn(ctx, req)
}

type stubSubmitter struct {
	fn    func(ctx context.Context, payload SubmissionPayload) (SubmissionAck, error)
	calls int
	last  SubmissionPayload
}

func (s *stubSubmitter) Submit(ctx context.Context, payload SubmissionPayload) (SubmissionAck, error) {
	s.calls++
	s.last = payload
	if s.fn == nil {
		return SubmissionAck{JobID: "job-1", Status: 200}, nil
	}
	return s.fn(ctx, payload)
}

type stubOrders struct {
	recorded []OrderDraft
}

func (s *stubOrders) Record(_ context.Context, rec OrderDraft) (string, error) {
	s.recorded = append(s.recorded, rec)
	return "order-1", nil
}

type serviceFixture struct {
	svc       *Service
	drafts    *memoryDrafts
	files     *stubFiles
	checker   *stubChecker
	submitter *stubSubmitter
	orders    *stubOrders
	tokens    *stubTokens
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		drafts:    newMemoryDrafts(),
		files:     &stubFiles{},
		checker:   &stubChecker{},
		submitter: &stubSubmitter{},
		orders:    &stubOrders{},
		tokens:    newStubTokens(),
	}
	f.svc = NewService(
		Config{MaxFileBytes: 1 << 20, TokenTTL: time.Minute},
		f.drafts,
		NewRuleEngine(testNow),
		f.files,
		f.checker,
		f.submitter,
		f.orders,
		f.tokens,
		newTestLogger(),
	)
	return f
}

func (f *serviceFixture) solarDraft(t *testing.T) *Draft {
	t.Helper()
	draft, err := f.svc.CreateDraft(context.Background(), 7, Variant{Energy: EnergySolar, Flow: WorkflowAssessment})
	require.NoError(t, err)
	_, err = f.svc.UpdateFields(context.Background(), 7, draft.ID, FieldPatch{
		Latitude:  strPtr("40.7128"),
		Longitude: strPtr("-74.0060"),
		StartDate: strPtr("2024-01-01"),
		EndDate:   strPtr("2024-06-30"),
	})
	require.NoError(t, err)
	return draft
}

func TestService_CreateAndGet(t *testing.T) {
	f := newServiceFixture()
	draft := f.solarDraft(t)

	got, report, err := f.svc.GetDraft(context.Background(), 7, draft.ID)
	require.NoError(t, err)
	require.Equal(t, draft.ID, got.ID)
	require.True(t, report.FormValid)
	require.Equal(t, ShapeBasic, report.Shape)

	// Another user cannot see the draft.
	_, _, err = f.svc.GetDraft(context.Background(), 8, draft.ID)
	require.Equal(t, "not_found", apperrors.CodeOf(err))
}

func TestService_SubmitSolarBasic(t *testing.T) {
	f := newServiceFixture()
	draft := f.solarDraft(t)

	result, err := f.svc.Submit(context.Background(), 7, draft.ID)
	require.NoError(t, err)
	require.Equal(t, "job-1", result.JobID)
	require.Equal(t, ShapeBasic, result.Shape)
	require.Equal(t, "order-1", result.OrderID)

	require.Equal(t, 1, f.submitter.calls)
	require.Nil(t, f.submitter.last.Solar)
	require.Equal(t, ShapeBasic, f.submitter.last.Shape)

	require.Len(t, f.orders.recorded, 1)
	require.Equal(t, EnergySolar, f.orders.recorded[0].Energy)
	require.Equal(t, "job-1", f.orders.recorded[0].JobID)

	// The draft is cleared and marked submitted; a second submit is refused.
	stored, _, err := f.drafts.Get(context.Background(), draft.ID, 7)
	require.NoError(t, err)
	require.True(t, stored.Submitted)
	require.Empty(t, stored.Fields.Latitude)

	_, err = f.svc.Submit(context.Background(), 7, draft.ID)
	require.Equal(t, "already_submitted", apperrors.CodeOf(err))
}

func TestService_SubmitGuardBlocksConcurrentCall(t *testing.T) {
	f := newServiceFixture()
	draft := f.solarDraft(t)

	draft.Guard = SubmitInFlight
	require.NoError(t, f.drafts.Update(context.Background(), draft))

	_, err := f.svc.Submit(context.Background(), 7, draft.ID)
	require.Equal(t, "submission_in_flight", apperrors.CodeOf(err))
	require.Zero(t, f.submitter.calls)
}

func TestService_SubmitRechecksCoordinates(t *testing.T) {
	f := newServiceFixture()
	draft, err := f.svc.CreateDraft(context.Background(), 7, Variant{Energy: EnergySolar, Flow: WorkflowAssessment})
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), 7, draft.ID)
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))
	require.Zero(t, f.submitter.calls)

	// A failed pre-check must not leave the guard stuck.
	stored, _, err := f.drafts.Get(context.Background(), draft.ID, 7)
	require.NoError(t, err)
	require.Equal(t, SubmitIdle, stored.Guard)
}

func TestService_SubmitFailureClearsGuard(t *testing.T) {
	f := newServiceFixture()
	f.submitter.fn = func(context.Context, SubmissionPayload) (SubmissionAck, error) {
		return SubmissionAck{}, errors.New("backend down")
	}
	draft := f.solarDraft(t)

	_, err := f.svc.Submit(context.Background(), 7, draft.ID)
	require.Equal(t, "submission_failed", apperrors.CodeOf(err))
	require.Empty(t, f.orders.recorded)

	stored, _, err := f.drafts.Get(context.Background(), draft.ID, 7)
	require.NoError(t, err)
	require.Equal(t, SubmitIdle, stored.Guard)
	require.False(t, stored.Submitted)
	// Fields survive so the user can retry.
	require.Equal(t, "40.7128", stored.Fields.Latitude)

	f.submitter.fn = nil
	result, err := f.svc.Submit(context.Background(), 7, draft.ID)
	require.NoError(t, err)
	require.Equal(t, "job-1", result.JobID)
}

func TestService_SubmitDiscardsStaleResult(t *testing.T) {
	f := newServiceFixture()
	draft := f.solarDraft(t)

	// The draft is reset while the submission call is in flight; its result
	// must not mark the newer state submitted.
	f.submitter.fn = func(context.Context, SubmissionPayload) (SubmissionAck, error) {
		stored, _, _ := f.drafts.Get(context.Background(), draft.ID, 7)
		stored.Clear()
		return SubmissionAck{JobID: "job-stale", Status: 200}, nil
	}

	_, err := f.svc.Submit(context.Background(), 7, draft.ID)
	require.Equal(t, "stale_result", apperrors.CodeOf(err))
	require.Empty(t, f.orders.recorded)

	stored, _, err := f.drafts.Get(context.Background(), draft.ID, 7)
	require.NoError(t, err)
	require.False(t, stored.Submitted)
	require.Equal(t, SubmitIdle, stored.Guard)

	// The cleared draft stays usable: refill and submit again.
	f.submitter.fn = nil
	_, err = f.svc.UpdateFields(context.Background(), 7, draft.ID, FieldPatch{
		Latitude:  strPtr("40.7128"),
		Longitude: strPtr("-74.0060"),
		StartDate: strPtr("2024-01-01"),
		EndDate:   strPtr("2024-06-30"),
	})
	require.NoError(t, err)
	result, err := f.svc.Submit(context.Background(), 7, draft.ID)
	require.NoError(t, err)
	require.Equal(t, "job-1", result.JobID)
}

func TestService_SubmitValidatesPendingSlotsInline(t *testing.T) {
	f := newServiceFixture()
	draft, err := f.svc.CreateDraft(context.Background(), 7, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)

	custom := CurveCustom
	_, err = f.svc.UpdateFields(context.Background(), 7, draft.ID, FieldPatch{
		Latitude:   strPtr("40.7128"),
		Longitude:  strPtr("-74.0060"),
		StartDate:  strPtr("2024-01-01"),
		EndDate:    strPtr("2024-06-30"),
		HubHeight:  strPtr("80"),
		CurveModel: &custom,
	})
	require.NoError(t, err)
	_, err = f.svc.AttachFile(context.Background(), 7, draft.ID, SlotPowerCurve, "curve.csv", "text/csv", []byte("ws,kw\n3,10\n"))
	require.NoError(t, err)

	// No explicit ValidateSlot call; submit runs it inline.
	result, err := f.svc.Submit(context.Background(), 7, draft.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.checker.calls)
	require.Equal(t, ShapePremium, result.Shape)
	require.NotNil(t, f.submitter.last.Wind)
	require.NotNil(t, f.submitter.last.Wind.CurveToken)
}

func TestService_SubmitAbortsOnInlineValidationFailure(t *testing.T) {
	f := newServiceFixture()
	f.checker.fn = func(context.Context, FileValidationRequest) (FileValidationResult, error) {
		return FileValidationResult{Valid: false, Message: "curve has gaps"}, nil
	}
	draft, err := f.svc.CreateDraft(context.Background(), 7, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)
	custom := CurveCustom
	_, err = f.svc.UpdateFields(context.Background(), 7, draft.ID, FieldPatch{
		Latitude:   strPtr("40.7128"),
		Longitude:  strPtr("-74.0060"),
		StartDate:  strPtr("2024-01-01"),
		EndDate:    strPtr("2024-06-30"),
		HubHeight:  strPtr("80"),
		CurveModel: &custom,
	})
	require.NoError(t, err)
	_, err = f.svc.AttachFile(context.Background(), 7, draft.ID, SlotPowerCurve, "curve.csv", "text/csv", []byte("x"))
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), 7, draft.ID)
	require.Equal(t, "file_validation_failed", apperrors.CodeOf(err))
	require.Zero(t, f.submitter.calls)

	stored, _, err := f.drafts.Get(context.Background(), draft.ID, 7)
	require.NoError(t, err)
	require.Equal(t, SubmitIdle, stored.Guard)
	require.Equal(t, SlotError, stored.Slots[SlotPowerCurve].Phase)
	require.Equal(t, "curve has gaps", stored.Slots[SlotPowerCurve].Message)
}

func TestService_ValidateSlotWithoutFileFailsLocally(t *testing.T) {
	f := newServiceFixture()
	draft, err := f.svc.CreateDraft(context.Background(), 7, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)
	custom := CurveCustom
	_, err = f.svc.UpdateFields(context.Background(), 7, draft.ID, FieldPatch{CurveModel: &custom})
	require.NoError(t, err)

	status, err := f.svc.ValidateSlot(context.Background(), 7, draft.ID, SlotPowerCurve)
	require.NoError(t, err)
	require.Equal(t, SlotError, status.Phase)
	require.Contains(t, status.Message, "power curve")
	require.Zero(t, f.checker.calls)
}

func TestService_ValidateSlotSuccess(t *testing.T) {
	f := newServiceFixture()
	draft, err := f.svc.CreateDraft(context.Background(), 7, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)
	custom := CurveCustom
	_, err = f.svc.UpdateFields(context.Background(), 7, draft.ID, FieldPatch{CurveModel: &custom})
	require.NoError(t, err)
	ref, err := f.svc.AttachFile(context.Background(), 7, draft.ID, SlotPowerCurve, "my curve.csv", "text/csv", []byte("data"))
	require.NoError(t, err)
	require.NotContains(t, ref.StorageKey, " ")

	status, err := f.svc.ValidateSlot(context.Background(), 7, draft.ID, SlotPowerCurve)
	require.NoError(t, err)
	require.Equal(t, SlotSuccess, status.Phase)
	require.True(t, status.Validated())
	require.Equal(t, "validated/"+ref.StorageKey, status.Token.FilePath)
}

func TestService_ValidateSlotDiscardsStaleResult(t *testing.T) {
	f := newServiceFixture()
	draft, err := f.svc.CreateDraft(context.Background(), 7, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)
	custom := CurveCustom
	_, err = f.svc.UpdateFields(context.Background(), 7, draft.ID, FieldPatch{CurveModel: &custom})
	require.NoError(t, err)
	_, err = f.svc.AttachFile(context.Background(), 7, draft.ID, SlotPowerCurve, "curve.csv", "text/csv", []byte("v1"))
	require.NoError(t, err)

	// The curve model changes while the collaborator call is in flight.
	f.checker.fn = func(context.Context, FileValidationRequest) (FileValidationResult, error) {
		stored, _, _ := f.drafts.Get(context.Background(), draft.ID, 7)
		stored.Fields.Wind.CurveModel = CurveIEC1
		stored.Slots[SlotPowerCurve].Reset()
		return FileValidationResult{Valid: true, FilePath: "validated/v1"}, nil
	}

	_, err = f.svc.ValidateSlot(context.Background(), 7, draft.ID, SlotPowerCurve)
	require.Equal(t, "stale_result", apperrors.CodeOf(err))

	stored, _, err := f.drafts.Get(context.Background(), draft.ID, 7)
	require.NoError(t, err)
	require.Equal(t, SlotIdle, stored.Slots[SlotPowerCurve].Phase)
	require.Nil(t, stored.Slots[SlotPowerCurve].Token)
}

func TestService_AttachFileLimits(t *testing.T) {
	f := newServiceFixture()
	draft, err := f.svc.CreateDraft(context.Background(), 7, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)

	_, err = f.svc.AttachFile(context.Background(), 7, draft.ID, SlotPowerCurve, "empty.csv", "text/csv", nil)
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))

	big := make([]byte, (1<<20)+1)
	_, err = f.svc.AttachFile(context.Background(), 7, draft.ID, SlotPowerCurve, "big.csv", "text/csv", big)
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))

	_, err = f.svc.AttachFile(context.Background(), 7, draft.ID, SlotHistory, "h.csv", "text/csv", []byte("x"))
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))
}

func TestService_SwitchVariantResetsEverything(t *testing.T) {
	f := newServiceFixture()
	draft := f.solarDraft(t)

	switched, err := f.svc.SwitchVariant(context.Background(), 7, draft.ID, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)
	require.Equal(t, EnergyWind, switched.Variant.Energy)
	require.Empty(t, switched.Fields.Latitude)
	require.Nil(t, switched.Fields.Solar)
	require.Contains(t, switched.Slots, SlotPowerCurve)
}

func TestService_DeleteDraft(t *testing.T) {
	f := newServiceFixture()
	draft := f.solarDraft(t)

	require.NoError(t, f.svc.DeleteDraft(context.Background(), 7, draft.ID))
	_, _, err := f.svc.GetDraft(context.Background(), 7, draft.ID)
	require.Equal(t, "not_found", apperrors.CodeOf(err))
}

func TestService_DeleteDraftRemovesStoredFiles(t *testing.T) {
	f := newServiceFixture()
	draft, err := f.svc.CreateDraft(context.Background(), 7, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)
	custom := CurveCustom
	_, err = f.svc.UpdateFields(context.Background(), 7, draft.ID, FieldPatch{CurveModel: &custom})
	require.NoError(t, err)
	ref, err := f.svc.AttachFile(context.Background(), 7, draft.ID, SlotPowerCurve, "curve.csv", "text/csv", []byte("data"))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteDraft(context.Background(), 7, draft.ID))
	require.Equal(t, []string{ref.StorageKey}, f.files.deleted)
}

func TestService_UpdateFieldsRejectsUnknownEnums(t *testing.T) {
	f := newServiceFixture()
	draft := f.solarDraft(t)

	bogus := TrackingMode("banana")
	_, err := f.svc.UpdateFields(context.Background(), 7, draft.ID, FieldPatch{
		Tilt:     strPtr("30"),
		Azimuth:  strPtr("180"),
		Capacity: strPtr("5000"),
		Tracking: &bogus,
	})
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))

	// The rejected patch must not have widened the shape.
	_, report, err := f.svc.GetDraft(context.Background(), 7, draft.ID)
	require.NoError(t, err)
	require.Equal(t, ShapeBasic, report.Shape)

	wind, err := f.svc.CreateDraft(context.Background(), 7, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)
	badModel := PowerCurveModel("banana")
	_, err = f.svc.UpdateFields(context.Background(), 7, wind.ID, FieldPatch{CurveModel: &badModel})
	require.Equal(t, "invalid_input", apperrors.CodeOf(err))
}

func TestService_GetDraftRehydratesTokenFromCache(t *testing.T) {
	f := newServiceFixture()
	draft, err := f.svc.CreateDraft(context.Background(), 7, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)
	custom := CurveCustom
	_, err = f.svc.UpdateFields(context.Background(), 7, draft.ID, FieldPatch{CurveModel: &custom})
	require.NoError(t, err)
	ref, err := f.svc.AttachFile(context.Background(), 7, draft.ID, SlotPowerCurve, "curve.csv", "text/csv", []byte("data"))
	require.NoError(t, err)
	_, err = f.svc.ValidateSlot(context.Background(), 7, draft.ID, SlotPowerCurve)
	require.NoError(t, err)

	// A reload keeps the slot phase but loses the in-memory token.
	stored, _, err := f.drafts.Get(context.Background(), draft.ID, 7)
	require.NoError(t, err)
	stored.Slots[SlotPowerCurve].Token = nil

	got, _, err := f.svc.GetDraft(context.Background(), 7, draft.ID)
	require.NoError(t, err)
	require.Equal(t, SlotSuccess, got.Slots[SlotPowerCurve].Phase)
	require.NotNil(t, got.Slots[SlotPowerCurve].Token)
	require.Equal(t, "validated/"+ref.StorageKey, got.Slots[SlotPowerCurve].Token.FilePath)
}

func TestService_GetDraftDowngradesExpiredToken(t *testing.T) {
	f := newServiceFixture()
	draft, err := f.svc.CreateDraft(context.Background(), 7, Variant{Energy: EnergyWind, Flow: WorkflowAssessment})
	require.NoError(t, err)
	custom := CurveCustom
	_, err = f.svc.UpdateFields(context.Background(), 7, draft.ID, FieldPatch{CurveModel: &custom})
	require.NoError(t, err)
	_, err = f.svc.AttachFile(context.Background(), 7, draft.ID, SlotPowerCurve, "curve.csv", "text/csv", []byte("data"))
	require.NoError(t, err)
	_, err = f.svc.ValidateSlot(context.Background(), 7, draft.ID, SlotPowerCurve)
	require.NoError(t, err)

	// The cached copy expires before the next load.
	require.NoError(t, f.tokens.Drop(context.Background(), draft.ID, SlotPowerCurve))
	stored, _, err := f.drafts.Get(context.Background(), draft.ID, 7)
	require.NoError(t, err)
	stored.Slots[SlotPowerCurve].Token = nil

	got, _, err := f.svc.GetDraft(context.Background(), 7, draft.ID)
	require.NoError(t, err)
	require.Equal(t, SlotIdle, got.Slots[SlotPowerCurve].Phase)
	require.Nil(t, got.Slots[SlotPowerCurve].Token)
}
