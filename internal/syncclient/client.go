package syncclient

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

	"github.com/oncetrange/memcard/internal/cards"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 30 * time.Second

var (
	errMissingBaseURL = errors.New("syncclient: base url required")

	// ErrUnauthorized indicates a missing, expired or revoked token.
	ErrUnauthorized = errors.New("syncclient: unauthorized")
	// ErrInvalidCredentials indicates a rejected login.
	ErrInvalidCredentials = errors.New("syncclient: invalid credentials")
	// ErrUsernameTaken indicates registration of an existing username.
	ErrUsernameTaken = errors.New("syncclient: username taken")
)

// RemoteError is any other non-success answer from the API.
type RemoteError struct {
	Status int
	Code   string
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("syncclient: remote returned status %d", e.Status)
	}
	return fmt.Sprintf("syncclient: remote returned status %d (%s)", e.Status, e.Code)
}

type Config struct {
	BaseURL string
	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the memcard API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Session is a logged-in token.
type Session struct {
	Token     string
	Username  string
	ExpiresIn time.Duration
}

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginPayload struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresIn int64  `json:"expires_in"`
	TokenType string `json:"token_type"`
}

type errorPayload struct {
	Error string `json:"error"`
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}, nil
}

func (c *Client) Register(ctx context.Context, username, password string) error {
	body := credentialsPayload{Username: username, Password: password}
	return c.do(ctx, http.MethodPost, "/api/register", "", body, nil)
}

func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	var payload loginPayload
	body := credentialsPayload{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/login", "", body, &payload); err != nil {
		return Session{}, err
	}
	if payload.Token == "" {
		return Session{}, errors.New("syncclient: login response missing token")
	}
	return Session{
		Token:     payload.Token,
		Username:  payload.Username,
		ExpiresIn: time.Duration(payload.ExpiresIn) * time.Second,
	}, nil
}

// Logout revokes the session token on the server.
func (c *Client) Logout(ctx context.Context, session Session) error {
	return c.do(ctx, http.MethodPost, "/api/logout", session.Token, nil, nil)
}

// Pull returns the remote collection of the session's account.
func (c *Client) Pull(ctx context.Context, session Session) ([]cards.Card, error) {
	var collection []cards.Card
	if err := c.do(ctx, http.MethodGet, "/api/cards", session.Token, nil, &collection); err != nil {
		return nil, err
	}
	if collection == nil {
		collection = []cards.Card{}
	}
	return collection, nil
}

// Push replaces the remote collection.
func (c *Client) Push(ctx context.Context, session Session, collection []cards.Card) error {
	if collection == nil {
		collection = []cards.Card{}
	}
	return c.do(ctx, http.MethodPost, "/api/cards", session.Token, collection, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("syncclient: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("syncclient: build request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("syncclient: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return c.remoteError(method, path, response)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("syncclient: decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) remoteError(method, path string, response *http.Response) error {
	var payload errorPayload
	_ = json.NewDecoder(io.LimitReader(response.Body, 4096)).Decode(&payload)
	c.logger.Debug("remote request failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", response.StatusCode),
		zap.String("code", payload.Error),
	)

	switch {
	case response.StatusCode == http.StatusUnauthorized && payload.Error == "invalid_credentials":
		return ErrInvalidCredentials
	case response.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case response.StatusCode == http.StatusConflict && payload.Error == "username_taken":
		return ErrUsernameTaken
	}
	return &RemoteError{Status: response.StatusCode, Code: payload.Error}
}
