package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// LookupError covers transport failures and malformed answers from the
// directory service.
type LookupError struct {
	Err error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("directory lookup error: %v", e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Client resolves datacenters and clients through the directory service.
// Lookups are authenticated with the caller's token, not a service identity.
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

// Datacenter resolves a datacenter by name. Returns nil when unknown.
func (c *Client) Datacenter(ctx context.Context, token, name string) (map[string]interface{}, error) {
	path := "/datacenters/search?name=" + url.QueryEscape(name)
	return c.lookup(ctx, token, path)
}

// Client resolves a client by id. Returns nil when unknown.
func (c *Client) Client(ctx context.Context, token, clientID string) (map[string]interface{}, error) {
	return c.lookup(ctx, token, "/clients/"+url.PathEscape(clientID))
}

func (c *Client) lookup(ctx context.Context, token, path string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)

	if err != nil {
		return nil, &LookupError{Err: err}
	}

	req.Header.Set("X-AUTH-TOKEN", token)

	resp, err := c.httpClient.Do(req)

	if err != nil {
		return nil, &LookupError{Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &LookupError{Err: fmt.Errorf("directory returned status %d", resp.StatusCode)}
	}

	var entity map[string]interface{}

	err = json.NewDecoder(resp.Body).Decode(&entity)

	if err != nil {
		return nil, &LookupError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return entity, nil
}
