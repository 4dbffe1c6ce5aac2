package curvecheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/evigrid/assess-console/internal/domain/assessment"
)

const defaultBaseURL = "http://localhost:9090/validate"

// Client calls the provider's file-validation endpoint for power curve
// and production history uploads.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a validation API client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(url, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ assessment.FileValidator = (*Client)(nil)

type validateRequest struct {
	ObjectKey  string `json:"objectKey"`
	FileName   string `json:"fileName"`
	EnergyType string `json:"energyType"`
	CurveModel string `json:"curveModel,omitempty"`
	Slot       string `json:"slot"`
}

type validateResponse struct {
	Code     int            `json:"code"`
	ErrorMsg string         `json:"errorMsg"`
	Data     validateResult `json:"data"`
}

type validateResult struct {
	Valid    bool   `json:"valid"`
	FilePath string `json:"filePath"`
	GUID     string `json:"guid"`
	Aux      string `json:"aux"`
	Message  string `json:"message"`
}

// Validate submits the uploaded object for inspection and returns the
// provider's verdict, including the token fields needed at submission.
func (c *Client) Validate(ctx context.Context, req assessment.FileValidationRequest) (assessment.FileValidationResult, error) {
	body, err := json.Marshal(validateRequest{
		ObjectKey:  req.File.StorageKey,
		FileName:   req.File.Name,
		EnergyType: string(req.Energy),
		CurveModel: string(req.Model),
		Slot:       string(req.Slot),
	})
	if err != nil {
		return assessment.FileValidationResult{}, fmt.Errorf("encode validation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return assessment.FileValidationResult{}, fmt.Errorf("build validation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return assessment.FileValidationResult{}, fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return assessment.FileValidationResult{}, fmt.Errorf("validation request error: status=%d body=%s", resp.StatusCode, string(payload))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return assessment.FileValidationResult{}, fmt.Errorf("read validation response: %w", err)
	}

	var decoded validateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return assessment.FileValidationResult{}, fmt.Errorf("decode validation response: %w", err)
	}
	if decoded.Code != 0 {
		return assessment.FileValidationResult{}, fmt.Errorf("validation api error: %s", decoded.ErrorMsg)
	}

	return assessment.FileValidationResult{
		Valid:    decoded.Data.Valid,
		FilePath: decoded.Data.FilePath,
		GUID:     decoded.Data.GUID,
		Aux:      decoded.Data.Aux,
		Message:  decoded.Data.Message,
	}, nil
}
