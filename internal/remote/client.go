// Package remote implements the agenda's Remote interface against the
// dayparty server API.
package remote

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

	"dayparty/internal/model"
)

var ErrUnauthorized = errors.New("remote: unauthorized")

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient talks to the server at baseURL, authenticating with a session
// bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) FetchTasks(ctx context.Context) ([]model.Task, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tasks", nil)
	if err != nil {
		return nil, err
	}
	var out []model.Task
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PushBatch(ctx context.Context, upserts []model.Task, deletes []model.Task) error {
	ids := make([]model.TaskID, 0, len(deletes))
	for _, t := range deletes {
		ids = append(ids, t.ID)
	}
	body, err := json.Marshal(syncRequest{Upserts: upserts, Deletes: ids})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/tasks/sync", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

type syncRequest struct {
	Upserts []model.Task   `json:"upserts"`
	Deletes []model.TaskID `json:"deletes"`
}

// RequestLoginLink asks the server to email a sign-in link.
func (c *Client) RequestLoginLink(ctx context.Context, email string) error {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/request-link", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// VerifyLoginLink redeems a link token for a session token.
func (c *Client) VerifyLoginLink(ctx context.Context, linkToken string) (string, error) {
	body, err := json.Marshal(map[string]string{"token": linkToken})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/verify", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		SessionToken string `json:"sessionToken"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.SessionToken == "" {
		return "", errors.New("remote: no session token in response")
	}
	return out.SessionToken, nil
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("remote: %s %s: %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
