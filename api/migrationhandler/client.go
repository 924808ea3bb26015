package migrationhandler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ruteri/delegate-upgrade-registry/api"
	"github.com/ruteri/delegate-upgrade-registry/cryptoutils"
	"github.com/ruteri/delegate-upgrade-registry/interfaces"
)

// ErrNamespaceMismatch is returned when a response echoes another namespace than requested.
var ErrNamespaceMismatch = errors.New("response namespace does not match request")

// StatusError is returned by the Client for any non-200 response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a registry server. It implements the same two operations as
// the server so it can be used wherever a key registry is expected.
type Client struct {
	URL    string
	Client *http.Client

	// DebugOriginHeader allows manually setting the attested origin header (base58).
	// This is primarily for testing and development, and should not be used in production.
	DebugOriginHeader string
}

// NewClient creates a client for the registry at url.
func NewClient(url string) *Client {
	return &Client{
		URL:    strings.TrimSuffix(url, "/"),
		Client: http.DefaultClient,
	}
}

// GetPreviousKey asks for the mapping recorded in ns.
func (c *Client) GetPreviousKey(ctx context.Context, ns interfaces.Namespace) (*api.PreviousKey, error) {
	resp, err := c.Do(ctx, api.Request{GetPreviousKey: &api.GetPreviousKeyRequest{Namespace: ns}})
	if err != nil {
		return nil, err
	}
	if resp.PreviousKey == nil {
		return nil, fmt.Errorf("unexpected response variant for GetPreviousKey")
	}
	if !resp.PreviousKey.Namespace.Equal(ns) {
		return nil, fmt.Errorf("%w: got %s, sent %s", ErrNamespaceMismatch, resp.PreviousKey.Namespace, ns)
	}
	return resp.PreviousKey, nil
}

// SetCurrentKey records rec in ns.
//
// If the server acknowledges a different namespace than the one sent, the
// write has already been applied: the acknowledgement is returned together
// with ErrNamespaceMismatch.
func (c *Client) SetCurrentKey(ctx context.Context, ns interfaces.Namespace, rec interfaces.MappingRecord) (*api.KeyUpdated, error) {
	resp, err := c.Do(ctx, api.Request{SetCurrentKey: &api.SetCurrentKeyRequest{
		Namespace:   ns,
		DelegateKey: rec.DelegateKey,
		CodeHash:    rec.CodeHash,
	}})
	if err != nil {
		return nil, err
	}
	if resp.KeyUpdated == nil {
		return nil, fmt.Errorf("unexpected response variant for SetCurrentKey")
	}
	if !resp.KeyUpdated.Namespace.Equal(ns) {
		return resp.KeyUpdated, fmt.Errorf("%w: got %s, sent %s", ErrNamespaceMismatch, resp.KeyUpdated.Namespace, ns)
	}
	return resp.KeyUpdated, nil
}

// Do sends a raw request envelope.
func (c *Client) Do(ctx context.Context, request api.Request) (api.Response, error) {
	payload, err := api.EncodeRequest(request)
	if err != nil {
		return api.Response{}, fmt.Errorf("could not encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+MigrationPath, bytes.NewReader(payload))
	if err != nil {
		return api.Response{}, fmt.Errorf("could not initialize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.DebugOriginHeader != "" {
		req.Header.Set(cryptoutils.AttestedOriginHeader, c.DebugOriginHeader)
	}

	if c.Client == nil {
		c.Client = http.DefaultClient
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return api.Response{}, fmt.Errorf("could not request registry: %w", err)
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return api.Response{}, fmt.Errorf("could not read registry response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return api.Response{}, &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	decoded, err := api.DecodeResponse(body)
	if err != nil {
		return api.Response{}, fmt.Errorf("could not parse registry response: %w", err)
	}
	return decoded, nil
}
