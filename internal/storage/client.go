package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client is the agent-side Store talking to the server's documents API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for baseURL, e.g. "http://localhost:8080".
// token is the bearer credential used on writes.
func NewClient(baseURL, token string) *Client {
	return &Client{baseURL: baseURL, token: token, http: http.DefaultClient}
}

func (c *Client) Store(ctx context.Context, content string) (StoreResult, error) {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return StoreResult{}, &StorageError{Op: "store", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/documents", bytes.NewReader(body))
	if err != nil {
		return StoreResult{}, &StorageError{Op: "store", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return StoreResult{}, &StorageError{Op: "store", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return StoreResult{}, &StorageError{Op: "store", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var res StoreResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return StoreResult{}, &StorageError{Op: "store", Err: err}
	}
	return res, nil
}

func (c *Client) Fetch(ctx context.Context, id string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/documents/"+id, nil)
	if err != nil {
		return "", &StorageError{Op: "fetch", Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &StorageError{Op: "fetch", Err: err}
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", &StorageError{Op: "fetch", Err: ErrNotFound}
	default:
		return "", &StorageError{Op: "fetch", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &StorageError{Op: "fetch", Err: err}
	}
	return payload.Content, nil
}
