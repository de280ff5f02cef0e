// Package steps runs the per-step automation behind the queue triggers:
// calling the intelligence service for a step, validating and merging its
// output, and advancing the workflow where no human gate applies.
package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/intentflow/intentflow/pkg/models"
	"github.com/intentflow/intentflow/pkg/retry"
)

// Intelligence produces a step's workflow_data fragment. Implementations
// call AI or research providers and are expected to be slow and flaky;
// callers wrap them in retry.
type Intelligence interface {
	GenerateStepData(ctx context.Context, status models.WorkflowStatus, workflow *models.Workflow) (map[string]any, error)
}

// HTTPIntelligence calls the intelligence service over HTTP. Responses with
// 5xx status are retryable, 4xx are permanent, both via retry.HTTPError.
type HTTPIntelligence struct {
	baseURL string
	client  *http.Client
}

// NewHTTPIntelligence creates a client for the given service base URL.
func NewHTTPIntelligence(baseURL string, client *http.Client) *HTTPIntelligence {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPIntelligence{baseURL: baseURL, client: client}
}

type generateRequest struct {
	WorkflowID   string         `json:"workflow_id"`
	Step         string         `json:"step"`
	WorkflowData map[string]any `json:"workflow_data,omitempty"`
}

func (i *HTTPIntelligence) GenerateStepData(ctx context.Context, status models.WorkflowStatus, workflow *models.Workflow) (map[string]any, error) {
	payload, err := json.Marshal(generateRequest{
		WorkflowID:   workflow.ID,
		Step:         string(status),
		WorkflowData: workflow.WorkflowData,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/generate/%s", i.baseURL, status)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("intelligence service: %w", retry.ErrRateLimited)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var fragment map[string]any
	if err := json.Unmarshal(body, &fragment); err != nil {
		return nil, err
	}

	return fragment, nil
}
