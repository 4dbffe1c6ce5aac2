package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/evigrid/assess-console/internal/domain/assessment"
)

// Client posts finished assessment payloads to the provider. Each
// energy/shape pair maps to its own endpoint.
type Client struct {
	endpoints  map[string]string
	httpClient *http.Client
}

// NewClient builds a submission client from an energy-shape endpoint map
// keyed as "<energy>-<shape>", e.g. "solar-basic".
func NewClient(endpoints map[string]string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	routed := make(map[string]string, len(endpoints))
	for key, url := range endpoints {
		routed[key] = url
	}
	return &Client{
		endpoints: routed,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ assessment.SubmissionClient = (*Client)(nil)

type submitResponse struct {
	Code     int       `json:"code"`
	ErrorMsg string    `json:"errorMsg"`
	Data     submitAck `json:"data"`
}

type submitAck struct {
	JobID   string `json:"jobId"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Submit routes the payload to the endpoint for its energy/shape pair.
func (c *Client) Submit(ctx context.Context, payload assessment.SubmissionPayload) (assessment.SubmissionAck, error) {
	key := fmt.Sprintf("%s-%s", payload.Energy, payload.Shape)
	endpoint, ok := c.endpoints[key]
	if !ok {
		return assessment.SubmissionAck{}, fmt.Errorf("no submission endpoint configured for %s", key)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return assessment.SubmissionAck{}, fmt.Errorf("encode submission payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return assessment.SubmissionAck{}, fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return assessment.SubmissionAck{}, fmt.Errorf("submission request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return assessment.SubmissionAck{}, fmt.Errorf("submission request error: status=%d body=%s", resp.StatusCode, string(raw))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return assessment.SubmissionAck{}, fmt.Errorf("read submission response: %w", err)
	}

	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return assessment.SubmissionAck{}, fmt.Errorf("decode submission response: %w", err)
	}
	if decoded.Code != 0 {
		return assessment.SubmissionAck{}, fmt.Errorf("submission api error: %s", decoded.ErrorMsg)
	}

	return assessment.SubmissionAck{
		JobID:   decoded.Data.JobID,
		Status:  decoded.Data.Status,
		Message: decoded.Data.Message,
	}, nil
}
