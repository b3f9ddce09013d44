package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPIssuer acquires a credential from the server's login endpoint on
// behalf of a wallet address.
type HTTPIssuer struct {
	baseURL string
	address string
	http    *http.Client
}

func NewHTTPIssuer(baseURL, address string) *HTTPIssuer {
	return &HTTPIssuer{baseURL: baseURL, address: address, http: http.DefaultClient}
}

func (i *HTTPIssuer) AcquireCredential(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{"address": i.address})
	if err != nil {
		return "", &AuthError{Op: "acquire", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", &AuthError{Op: "acquire", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.http.Do(req)
	if err != nil {
		return "", &AuthError{Op: "acquire", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Op: "acquire", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &AuthError{Op: "acquire", Err: err}
	}
	return payload.Token, nil
}

// StaticIssuer hands back a pre-acquired token. Useful in tests and for
// callers that already hold one.
type StaticIssuer string

func (s StaticIssuer) AcquireCredential(context.Context) (string, error) {
	if s == "" {
		return "", &AuthError{Op: "acquire", Err: fmt.Errorf("no credential configured")}
	}
	return string(s), nil
}
