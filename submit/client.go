package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client posts inspection payloads to the server.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a Client for the given server base URL
// (e.g. "http://inspecao.example.com"). The overall deadline per attempt
// comes from the caller's context.
func NewClient(base string) *Client {
	return &Client{base: base, http: &http.Client{}}
}

// Submit posts one already-marshalled submission and returns the server id.
// Transport failures come back as-is; a non-2xx response becomes a
// *ServerError.
func (c *Client) Submit(ctx context.Context, payload []byte) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/api/salvar-inspecao", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("submit: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("submit: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &e)
		return 0, &ServerError{Status: resp.StatusCode, Message: e.Error}
	}

	var ok struct {
		Success bool  `json:"success"`
		ID      int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &ok); err != nil {
		return 0, fmt.Errorf("submit: decode response: %w", err)
	}
	return ok.ID, nil
}
