// Package whapi provides a client for the Whapi.cloud WhatsApp gateway API.
package whapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// ProviderName identifies this provider in failover metadata and health rows.
const ProviderName = "whapi"

// ErrMissingToken is returned when no API token is configured. Callers fail
// over immediately; the error is not retryable.
var ErrMissingToken = eris.New("whapi: token missing")

// Client defines the Whapi.cloud operations.
type Client interface {
	// CheckContact reports whether a phone number is registered on WhatsApp.
	// A registered=false answer is a valid response, not an error.
	CheckContact(ctx context.Context, phoneNumber string) (bool, error)
}

// StatusError reports a non-2xx HTTP response. Callers treat it as a
// transport-level failure and retry.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("whapi: unexpected status %d", e.Code)
}

// contactsRequest is the contact-lookup batch payload. The orchestrator only
// ever submits a single number per lookup.
type contactsRequest struct {
	Blocking string   `json:"blocking"`
	Contacts []string `json:"contacts"`
}

type contactsResponse struct {
	Contacts []contactStatus `json:"contacts"`
}

type contactStatus struct {
	Input  string `json:"input"`
	Status string `json:"status"`
	WaID   string `json:"wa_id,omitempty"`
}

// Option configures the Whapi client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Whapi.cloud client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: "https://gate.whapi.cloud",
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CheckContact(ctx context.Context, phoneNumber string) (bool, error) {
	if c.token == "" {
		return false, ErrMissingToken
	}

	payload, err := json.Marshal(contactsRequest{
		Blocking: "wait",
		Contacts: []string{phoneNumber},
	})
	if err != nil {
		return false, eris.Wrap(err, "whapi: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/contacts", bytes.NewReader(payload))
	if err != nil {
		return false, eris.Wrap(err, "whapi: build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, eris.Wrap(err, "whapi: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, eris.Wrap(err, "whapi: read body")
	}

	var cr contactsResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return false, eris.Wrap(err, "whapi: decode response")
	}

	if len(cr.Contacts) == 0 {
		return false, nil
	}
	return cr.Contacts[0].Status == "valid", nil
}
