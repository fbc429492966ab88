package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
)

// TokenRequest holds the credentials exchanged for a bearer token.
type TokenRequest struct {
	URL      string
	Username string
	Password string
}

// TokenSource obtains the OAuth token used to open the warehouse connection.
type TokenSource interface {
	Token(ctx context.Context, req TokenRequest) (*oauth2.Token, error)
}

// HTTPTokenSource posts the credentials as JSON to the token endpoint and
// reads the "token" field of the response.
type HTTPTokenSource struct {
	client *http.Client
}

func NewHTTPTokenSource(client *http.Client) *HTTPTokenSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTokenSource{client: client}
}

var errTokenMissing = errors.New("Token not found in response")

func (s *HTTPTokenSource) Token(ctx context.Context, req TokenRequest) (*oauth2.Token, error) {
	body, err := json.Marshal(map[string]string{
		"username": req.Username,
		"password": req.Password,
	})
	if err != nil {
		return nil, withKind(ErrToken, err)
	}

	slog.InfoContext(ctx, "Requesting OAuth token", "url", req.URL, "username", req.Username)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return nil, withKind(ErrToken, fmt.Errorf("failed to build token request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, withKind(ErrToken, fmt.Errorf("token request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, withKind(ErrToken, fmt.Errorf("failed to read token response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.ErrorContext(ctx, "Token endpoint returned an error", "status", resp.StatusCode, "body", string(raw))
		return nil, withKind(ErrToken, fmt.Errorf("Request failed with status code %d: %s", resp.StatusCode, bytes.TrimSpace(raw)))
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Token == "" {
		return nil, withKind(ErrToken, errTokenMissing)
	}

	slog.InfoContext(ctx, "Token obtained successfully")
	return &oauth2.Token{AccessToken: payload.Token, TokenType: "Bearer"}, nil
}
