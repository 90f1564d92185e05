package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TransportError covers connection failures, timeouts and malformed
// exchanges with the gateway. The engine maps it to a bad-upstream failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RejectedError is a non-2xx business answer from the gateway. The body is
// kept verbatim so callers can surface it unchanged.
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("gateway rejected request (%d): %s", e.StatusCode, e.Body)
}

// CreateRequest is the payload sent to the builder on a create call. Previous
// carries the prior generation's parsed result so the builder can diff against
// the state it produced last time.
type CreateRequest struct {
	ID         string                 `json:"id"`
	Client     map[string]interface{} `json:"client"`
	Datacenter map[string]interface{} `json:"datacenter"`
	Service    map[string]interface{} `json:"service"`
	Previous   map[string]interface{} `json:"previous"`
	PreviousID string                 `json:"previous_id,omitempty"`
}

// Client talks to the external provisioning builder.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Create asks the builder to provision a new generation.
func (c *Client) Create(ctx context.Context, req CreateRequest) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/service", req, true)
	return err
}

// Patch asks the builder to re-apply a previously errored generation.
func (c *Client) Patch(ctx context.Context, generationID string) error {
	_, err := c.doRequest(ctx, http.MethodPatch, "/service/"+generationID, nil, true)
	return err
}

// Teardown asks the builder to destroy a generation's resources.
func (c *Client) Teardown(ctx context.Context, generationID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/service/"+generationID, nil, true)
	return err
}

// Status probes the builder for a generation's current state. The body is
// returned whatever the status code, it is recorded as-is on reset.
func (c *Client) Status(ctx context.Context, generationID string) ([]byte, error) {
	return c.doRequest(ctx, http.MethodGet, "/service/"+generationID, nil, false)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, rejectNon2xx bool) ([]byte, error) {
	var bodyReader io.Reader

	if body != nil {
		data, err := json.Marshal(body)

		if err != nil {
			return nil, &TransportError{Err: fmt.Errorf("failed to marshal request: %w", err)}
		}

		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)

	if err != nil {
		return nil, &TransportError{Err: err}
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)

	if err != nil {
		return nil, &TransportError{Err: err}
	}

	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)

	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if rejectNon2xx && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return nil, &RejectedError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	return respBody, nil
}
