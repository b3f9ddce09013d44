package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Client is the agent-side Ledger talking to the server's ledger API. The
// owner of writes is whoever the bearer token identifies.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{baseURL: baseURL, token: token, http: http.DefaultClient}
}

// Create and Update share one PUT endpoint; the server decides whether the
// record exists. Both are kept on the contract so callers can express
// intent.
func (c *Client) Create(ctx context.Context, sessionID, contentID string) (Result, error) {
	return c.put(ctx, sessionID, contentID)
}

func (c *Client) Update(ctx context.Context, sessionID, contentID string) (Result, error) {
	return c.put(ctx, sessionID, contentID)
}

func (c *Client) put(ctx context.Context, sessionID, contentID string) (Result, error) {
	body, err := json.Marshal(map[string]string{"contentId": contentID})
	if err != nil {
		return Result{}, &LedgerError{Op: "put", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/api/ledger/"+url.PathEscape(sessionID), bytes.NewReader(body))
	if err != nil {
		return Result{}, &LedgerError{Op: "put", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, &LedgerError{Op: "put", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, &LedgerError{Op: "put", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, &LedgerError{Op: "put", Err: err}
	}
	return res, nil
}

func (c *Client) Get(ctx context.Context, sessionID string) (*Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/ledger/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, &LedgerError{Op: "get", Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &LedgerError{Op: "get", Err: err}
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, &LedgerError{Op: "get", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var rec Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, &LedgerError{Op: "get", Err: err}
	}
	return &rec, nil
}

func (c *Client) ListByOwner(ctx context.Context, owner string) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/ledger?owner="+url.QueryEscape(owner), nil)
	if err != nil {
		return nil, &LedgerError{Op: "list", Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &LedgerError{Op: "list", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &LedgerError{Op: "list", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, &LedgerError{Op: "list", Err: err}
	}
	return entries, nil
}
