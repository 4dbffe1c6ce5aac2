package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evigrid/assess-console/internal/domain/assessment"
	"github.com/evigrid/assess-console/internal/domain/auth"
	"github.com/evigrid/assess-console/internal/domain/orders"
	"github.com/evigrid/assess-console/internal/infra/config"
	"github.com/evigrid/assess-console/internal/infra/draftrepo"
	"github.com/evigrid/assess-console/internal/infra/filestore"
	"github.com/evigrid/assess-console/internal/infra/orderrepo"
	"github.com/evigrid/assess-console/internal/infra/tokencache"
	"github.com/evigrid/assess-console/internal/infra/userrepo"
	"github.com/evigrid/assess-console/pkg/metrics"
)

func TestRouter_DraftLifecycle(t *testing.T) {
	server := newServerUnderTest(t, &stubValidator{}, &stubSubmitter{
		submitFn: func(ctx context.Context, payload assessment.SubmissionPayload) (assessment.SubmissionAck, error) {
			require.Equal(t, assessment.EnergySolar, payload.Energy)
			require.Equal(t, assessment.ShapeBasic, payload.Shape)
			return assessment.SubmissionAck{JobID: "job-1", Status: 200}, nil
		},
	})
	token := registerAndLogin(t, server)

	rec := performJSON(t, server, http.MethodPost, "/api/v1/drafts", `{"energy":"solar","workflow":"assessment"}`, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	var draft assessment.Draft
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draft))
	require.NotEmpty(t, draft.ID)

	patch := `{"latitude":"40.7128","longitude":"-74.0060","startDate":"2024-01-01","endDate":"2024-06-30"}`
	rec = performJSON(t, server, http.MethodPatch, "/api/v1/drafts/"+draft.ID.String()+"/fields", patch, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var patched struct {
		Validity assessment.ValidityReport `json:"validity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patched))
	require.True(t, patched.Validity.FormValid)
	require.Equal(t, assessment.ShapeBasic, patched.Validity.Shape)

	rec = performJSON(t, server, http.MethodPost, "/api/v1/drafts/"+draft.ID.String()+"/submit", "", token)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var result assessment.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, "job-1", result.JobID)
	require.NotEmpty(t, result.OrderID)

	rec = performJSON(t, server, http.MethodGet, "/api/v1/orders", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Items []orders.Order `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Items, 1)
	require.Equal(t, orders.PlanBasic, listed.Items[0].Plan)
}

func TestRouter_WindUploadAndValidate(t *testing.T) {
	server := newServerUnderTest(t, &stubValidator{
		validateFn: func(ctx context.Context, req assessment.FileValidationRequest) (assessment.FileValidationResult, error) {
			require.Equal(t, assessment.EnergyWind, req.Energy)
			require.Equal(t, assessment.SlotPowerCurve, req.Slot)
			return assessment.FileValidationResult{Valid: true, FilePath: "curves/ok.csv", GUID: "guid-1"}, nil
		},
	}, &stubSubmitter{})
	token := registerAndLogin(t, server)

	rec := performJSON(t, server, http.MethodPost, "/api/v1/drafts", `{"energy":"wind","workflow":"assessment"}`, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	var draft assessment.Draft
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draft))

	patch := `{"hubHeight":"45","curveModel":"custom-upload"}`
	rec = performJSON(t, server, http.MethodPatch, "/api/v1/drafts/"+draft.ID.String()+"/fields", patch, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = performUpload(t, server, "/api/v1/drafts/"+draft.ID.String()+"/files/power-curve", "curve.csv", []byte("ws,kw\n3,10\n"), token)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = performJSON(t, server, http.MethodPost, "/api/v1/drafts/"+draft.ID.String()+"/files/power-curve/validate", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var status assessment.SlotStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, assessment.SlotSuccess, status.Phase)
	require.NotNil(t, status.Token)
	require.Equal(t, "curves/ok.csv", status.Token.FilePath)
}

func TestRouter_RequiresAuth(t *testing.T) {
	server := newServerUnderTest(t, &stubValidator{}, &stubSubmitter{})
	rec := performJSON(t, server, http.MethodPost, "/api/v1/drafts", `{"energy":"solar","workflow":"assessment"}`, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "unauthorized", errBody["error"]["code"])
}

func TestRouter_RejectsUnknownVariant(t *testing.T) {
	server := newServerUnderTest(t, &stubValidator{}, &stubSubmitter{})
	token := registerAndLogin(t, server)

	rec := performJSON(t, server, http.MethodPost, "/api/v1/drafts", `{"energy":"hydro","workflow":"assessment"}`, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
}

func registerAndLogin(t *testing.T, server *http.Server) string {
	t.Helper()
	rec := performJSON(t, server, http.MethodPost, "/api/v1/auth/register", `{"email":"analyst@example.com","password":"pass1234","displayName":"Analyst"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = performJSON(t, server, http.MethodPost, "/api/v1/auth/login", `{"email":"analyst@example.com","password":"pass1234"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp auth.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func performJSON(t *testing.T, server *http.Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func performUpload(t *testing.T, server *http.Server, path, filename string, content []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func newServerUnderTest(t *testing.T, checker assessment.FileValidator, submitter assessment.SubmissionClient) *http.Server {
	t.Helper()
	logger := newTestLogger()

	authSvc := auth.NewService(auth.Config{
		Secret:          "test-secret",
		TokenTTL:        time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}, userrepo.NewMemoryRepository(), logger)

	registry := orders.NewRegistry(orderrepo.NewMemoryRepository(), logger)

	assessSvc := assessment.NewService(
		assessment.Config{MaxFileBytes: 1 << 20, TokenTTL: time.Minute},
		draftrepo.NewMemoryRepository(),
		assessment.NewRuleEngine(nil),
		filestore.NewMemoryStore(),
		checker,
		submitter,
		orders.NewRecorder(registry),
		tokencache.NewMemoryCache(),
		logger,
	)

	handler := NewHandler(assessSvc, registry, authSvc, metrics.NewCounters(), logger)
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
	}
	return NewRouter(cfg, handler, authSvc)
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type stubValidator struct {
	validateFn func(ctx context.Context, req assessment.FileValidationRequest) (assessment.FileValidationResult, error)
}

func (s *stubValidator) Validate(ctx context.Context, req assessment.FileValidationRequest) (assessment.FileValidationResult, error) {
	if s.validateFn != nil {
		return s.validateFn(ctx, req)
	}
	return assessment.FileValidationResult{Valid: true, FilePath: "stub/path", GUID: "stub-guid"}, nil
}

type stubSubmitter struct {
	submitFn func(ctx context.Context, payload assessment.SubmissionPayload) (assessment.SubmissionAck, error)
}

func (s *stubSubmitter) Submit(ctx context.Context, payload assessment.SubmissionPayload) (assessment.SubmissionAck, error) {
	if s.submitFn != nil {
		return s.submitFn(ctx, payload)
	}
	return assessment.SubmissionAck{JobID: fmt.Sprintf("job-%d", time.Now().UnixNano()), Status: 200}, nil
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
