package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"crm-softphone/internal/session"
)

// Client is the HTTP consumer side of the ledger API, used by the softphone
// process. It implements session.Ledger; every method maps onto one REST
// endpoint with the {success, data, error} envelope.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, bearerToken string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   bearerToken,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (c *Client) Token(ctx context.Context) (session.Credentials, error) {
	var creds session.Credentials
	if err := c.do(ctx, http.MethodGet, "/api/telephony/auth/token", nil, &creds); err != nil {
		return session.Credentials{}, err
	}
	return creds, nil
}

func (c *Client) Initiate(ctx context.Context, req session.InitiateRequest) (string, error) {
	var out struct {
		CallID string `json:"callId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/calls/initiate", req, &out); err != nil {
		return "", err
	}
	return out.CallID, nil
}

func (c *Client) Connected(ctx context.Context, callID string, startTime time.Time) error {
	body := map[string]any{"callId": callID, "startTime": startTime.UTC().Format(time.RFC3339)}
	return c.do(ctx, http.MethodPost, "/api/calls/connected", body, nil)
}

func (c *Client) Ended(ctx context.Context, callID string, endTime time.Time, durationSeconds int) error {
	body := map[string]any{
		"callId":   callID,
		"endTime":  endTime.UTC().Format(time.RFC3339),
		"duration": durationSeconds,
	}
	return c.do(ctx, http.MethodPost, "/api/calls/ended", body, nil)
}

func (c *Client) SetMute(ctx context.Context, callID string, muted bool) error {
	return c.do(ctx, http.MethodPost, "/api/calls/"+callID+"/mute", map[string]any{"muted": muted}, nil)
}

func (c *Client) SetHold(ctx context.Context, callID string, onHold bool) error {
	return c.do(ctx, http.MethodPost, "/api/calls/"+callID+"/hold", map[string]any{"onHold": onHold}, nil)
}

func (c *Client) Transfer(ctx context.Context, callID, transferTo string) error {
	return c.do(ctx, http.MethodPost, "/api/calls/"+callID+"/transfer", map[string]any{"transferTo": transferTo}, nil)
}

func (c *Client) AddNote(ctx context.Context, callID, text string, at time.Time) error {
	body := map[string]any{"text": text, "timestamp": at.UTC().Format(time.RFC3339)}
	return c.do(ctx, http.MethodPost, "/api/calls/"+callID+"/notes", body, nil)
}

func (c *Client) SetRecording(ctx context.Context, callID string, start bool) error {
	action := "stop"
	if start {
		action = "start"
	}
	return c.do(ctx, http.MethodPost, "/api/calls/"+callID+"/recording", map[string]any{"action": action}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ledger client: marshal: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("ledger client: %s %s: decode: %w", method, path, err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("ledger client: %s %s: %s", method, path, msg)
	}
	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("ledger client: %s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}
