// Package api is the client for the relay's one-shot HTTP endpoints: room
// lookup and creation, initial message history, the owner's presence
// bootstrap, and invite generation. Everything continuous goes over the
// socket instead.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"vanish-client/internal/config"
	"vanish-client/internal/models"
)

// ErrNoBaseURL is returned when the API base URL was never configured.
var ErrNoBaseURL = errors.New("API base URL is not configured")

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg config.APIConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.Key,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// apiResponse is the relay's uniform envelope.
type apiResponse[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// createServerResponse additionally carries the identity the relay minted
// for the room owner.
type createServerResponse struct {
	Message string            `json:"message"`
	Data    models.ServerInfo `json:"data"`
	User    struct {
		UserID   string `json:"userId"`
		Username string `json:"username"`
	} `json:"user"`
	Token string `json:"token"`
}

type inviteData struct {
	InviteCode string `json:"inviteCode"`
}

// GetServer looks up a room by ID.
func (c *Client) GetServer(ctx context.Context, serverID string) (*models.ServerInfo, error) {
	var out apiResponse[models.ServerInfo]
	if err := c.do(ctx, http.MethodGet, "/server/"+serverID, "", nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// CreateServer creates a room and returns it along with the owner identity.
func (c *Client) CreateServer(ctx context.Context, req models.CreateServerRequest) (*models.CreateServerResult, error) {
	var out createServerResponse
	if err := c.do(ctx, http.MethodPost, "/server", "", req, &out); err != nil {
		return nil, err
	}
	return &models.CreateServerResult{
		Server:   out.Data,
		UserID:   out.User.UserID,
		Username: out.User.Username,
		Token:    out.Token,
	}, nil
}

// Messages fetches the room's message history. Called once at session start.
func (c *Client) Messages(ctx context.Context, serverID, token string) ([]models.Message, error) {
	var out apiResponse[[]models.Message]
	if err := c.do(ctx, http.MethodGet, "/server/"+serverID+"/messages", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ActiveUsers fetches the current presence snapshot. Owner-only bootstrap;
// guests receive presence over the socket.
func (c *Client) ActiveUsers(ctx context.Context, serverID, token string) ([]models.PresenceRecord, error) {
	var out apiResponse[[]models.PresenceRecord]
	if err := c.do(ctx, http.MethodGet, "/server/"+serverID+"/active", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// GenerateInvite mints a single-use invite code for the room.
func (c *Client) GenerateInvite(ctx context.Context, serverID, token string) (string, error) {
	var out apiResponse[inviteData]
	if err := c.do(ctx, http.MethodPost, "/server/"+serverID+"/invite", token, nil, &out); err != nil {
		return "", err
	}
	return out.Data.InviteCode, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	if c.baseURL == "" {
		return ErrNoBaseURL
	}

	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Message != "" {
		return fmt.Errorf("%s (status %d)", payload.Message, resp.StatusCode)
	}
	return fmt.Errorf("unexpected status %d", resp.StatusCode)
}
