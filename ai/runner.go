// Package ai forwards metered feature requests to the external prompt runner.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-careerdesk/plan"
)

var ErrNotConfigured = errors.New("AI runner is not configured")

// Runner executes one AI flow. Inputs and outputs are opaque JSON.
type Runner interface {
	Run(ctx context.Context, feature plan.Feature, input json.RawMessage) (json.RawMessage, error)
}

// HTTPRunner posts the input to {BaseURL}/flows/{feature}.
type HTTPRunner struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPRunner(baseURL string) *HTTPRunner {
	return &HTTPRunner{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

const maxResponseBytes = 4 << 20

func (r *HTTPRunner) Run(ctx context.Context, feature plan.Feature, input json.RawMessage) (json.RawMessage, error) {
	if r == nil || r.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/flows/"+string(feature), bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("build runner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("runner request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read runner response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("runner returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("runner returned invalid JSON")
	}
	return json.RawMessage(body), nil
}
