// Package remote implements the HTTP client for the authoritative sync
// server: the credential exchange and the record upload/download batches.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"palay-drying-backend/config"
)

// Token is the bearer token returned by a successful credential exchange.
// It lives only as long as the sync cycle that obtained it.
type Token string

// Client talks to the remote server. All calls block for at most the
// configured timeout.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a remote client from configuration.
func NewClient(cfg *config.RemoteConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Authenticate exchanges a credential pair for a bearer token. Expected
// failure statuses map to ErrAuthFailed; only unreachable-server conditions
// surface as a TransportError.
func (c *Client) Authenticate(ctx context.Context, username, password string) (Token, error) {
	body, err := json.Marshal(authRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("failed to marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &TransportError{Op: "authenticate", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Op: "authenticate", Err: err}
	}

	var auth authResponse
	if err := json.Unmarshal(raw, &auth); err != nil || auth.Token == "" {
		return "", fmt.Errorf("%w: malformed login response", ErrAuthFailed)
	}
	return Token(auth.Token), nil
}

// Upload pushes a batch of records. The endpoint is all-or-nothing: on any
// non-success status no record in the batch was accepted and the whole
// batch must be retried next cycle.
func (c *Client) Upload(ctx context.Context, token Token, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	body, err := json.Marshal(uploadRequest{Records: records})
	if err != nil {
		return fmt.Errorf("failed to marshal upload payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/records/sync", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+string(token))

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: "upload", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return &RejectionError{Op: "upload", Status: resp.StatusCode, Body: string(raw)}
	}
	return nil
}

// Download returns all remote records currently associated with the farmer.
// The result is the reconciliation source of truth for this cycle.
func (c *Client) Download(ctx context.Context, token Token, farmerUUID string) ([]Record, error) {
	url := fmt.Sprintf("%s/api/farmers/%s/records", c.baseURL, farmerUUID)
	raw, err := c.get(ctx, "download", token, url)
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &MalformedResponseError{Op: "download", Payload: raw, Err: err}
	}
	return records, nil
}

// FetchFarmer looks up a farmer account on the remote by username.
func (c *Client) FetchFarmer(ctx context.Context, token Token, username string) (*RemoteFarmer, error) {
	raw, err := c.get(ctx, "fetch farmer", token, c.baseURL+"/api/farmers/"+username)
	if err != nil {
		return nil, err
	}

	var farmer RemoteFarmer
	if err := json.Unmarshal(raw, &farmer); err != nil {
		return nil, &MalformedResponseError{Op: "fetch farmer", Payload: raw, Err: err}
	}
	if farmer.UUID == "" {
		return nil, &MalformedResponseError{Op: "fetch farmer", Payload: raw, Err: fmt.Errorf("missing farmer uuid")}
	}
	return &farmer, nil
}

// FetchLocalities pulls the barangay and municipality reference tables.
func (c *Client) FetchLocalities(ctx context.Context, token Token) ([]RemoteBarangay, []RemoteMunicipality, error) {
	rawB, err := c.get(ctx, "fetch barangays", token, c.baseURL+"/api/barangays")
	if err != nil {
		return nil, nil, err
	}
	var barangays []RemoteBarangay
	if err := json.Unmarshal(rawB, &barangays); err != nil {
		return nil, nil, &MalformedResponseError{Op: "fetch barangays", Payload: rawB, Err: err}
	}

	rawM, err := c.get(ctx, "fetch municipalities", token, c.baseURL+"/api/municipalities")
	if err != nil {
		return nil, nil, err
	}
	var municipalities []RemoteMunicipality
	if err := json.Unmarshal(rawM, &municipalities); err != nil {
		return nil, nil, &MalformedResponseError{Op: "fetch municipalities", Payload: rawM, Err: err}
	}
	return barangays, municipalities, nil
}

func (c *Client) get(ctx context.Context, op string, token Token, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+string(token))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RejectionError{Op: op, Status: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
