package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ruteri/confidential-move-client/api"
)

// MoveProvider plays moves through a move daemon.
type MoveProvider interface {
	Connect(ctx context.Context, identity string) (*api.SessionResponse, error)
	Disconnect(ctx context.Context, identity string) (*api.SessionResponse, error)
	Session(ctx context.Context, identity string) (*api.SessionResponse, error)
	Move(ctx context.Context, req *api.MoveRequest) (*api.MoveResponse, error)
}

var _ MoveProvider = (*MoveClient)(nil)

// MoveClient implements MoveProvider over HTTP.
type MoveClient struct {
	// ServerAddr is the base URL of the move daemon
	ServerAddr string

	// HTTPClient timeout must exceed the daemon's finalization budget.
	HTTPClient *http.Client
}

func NewMoveClient(serverAddr string) *MoveClient {
	return &MoveClient{
		ServerAddr: strings.TrimSuffix(serverAddr, "/"),
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *MoveClient) Connect(ctx context.Context, identity string) (*api.SessionResponse, error) {
	var resp api.SessionResponse
	err := c.do(ctx, http.MethodPost, api.ConnectPath, &api.ConnectRequest{Identity: identity}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *MoveClient) Disconnect(ctx context.Context, identity string) (*api.SessionResponse, error) {
	var resp api.SessionResponse
	err := c.do(ctx, http.MethodPost, api.DisconnectPath, &api.DisconnectRequest{Identity: identity}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *MoveClient) Session(ctx context.Context, identity string) (*api.SessionResponse, error) {
	var resp api.SessionResponse
	path := strings.Replace(api.SessionPath, "{identity}", identity, 1)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *MoveClient) Move(ctx context.Context, req *api.MoveRequest) (*api.MoveResponse, error) {
	var resp api.MoveResponse
	if err := c.do(ctx, http.MethodPost, api.MovePath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearKeys purges every stored key record on the daemon.
func (c *MoveClient) ClearKeys(ctx context.Context) error {
	var resp api.ClearKeysResponse
	return c.do(ctx, http.MethodPost, api.ClearKeysPath, nil, &resp)
}

func (c *MoveClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ServerAddr+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s returned non-200 response: %d", path, resp.StatusCode)
		}
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Error != "" {
			return &StatusError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(bodyBytes))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse %s response: %w", path, err)
	}
	return nil
}

// StatusError is a non-200 answer of the daemon.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("daemon returned error %d: %s", e.StatusCode, e.Message)
}
