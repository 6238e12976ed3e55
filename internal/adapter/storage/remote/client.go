// Package remote is the HTTP balance backend. It speaks the Luka Points
// REST envelope against a central balance service and adapts it to the
// same storage abstractions the embedded backend implements, so the
// transfer flow cannot tell the two apart.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"luka-points/internal/core/domain"
	"luka-points/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is where the balance service listens in a stock
// development setup.
const DefaultBaseURL = "http://localhost:5140"

const defaultTimeout = 10 * time.Second

// Client implements ports.BalanceStore and ports.TransferLog over HTTP.
// Every write here is a plain overwrite: the backend offers no
// conditional requests, so the storage contract's lost-update window
// applies in full.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// Config carries the remote backend settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// NewClient builds a Client. Zero-value config fields fall back to
// defaults.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "remote_store").Logger(),
	}
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"error_code"`
}

type balancePayload struct {
	Balance int64 `json:"balance"`
}

type setBalancePayload struct {
	Ref     string `json:"ref"`
	Balance int64  `json:"balance"`
}

type existsPayload struct {
	Exists bool `json:"exists"`
}

// GetBalance fetches the current balance for ref.
func (c *Client) GetBalance(ctx context.Context, ref domain.AccountRef) (int64, error) {
	var payload balancePayload
	path := "/api/v1/accounts/balance?ref=" + url.QueryEscape(ref.String())
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return 0, err
	}
	return payload.Balance, nil
}

// SetBalance overwrites the stored balance for ref.
func (c *Client) SetBalance(ctx context.Context, ref domain.AccountRef, balance int64) error {
	body := setBalancePayload{Ref: ref.String(), Balance: balance}
	return c.do(ctx, http.MethodPut, "/api/v1/accounts/balance", body, nil)
}

// AccountExists reports whether ref resolves to an account on the
// backend.
func (c *Client) AccountExists(ctx context.Context, ref domain.AccountRef) (bool, error) {
	var payload existsPayload
	path := "/api/v1/accounts/exists/" + url.PathEscape(ref.String())
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		if apperror.HasCode(err, "ACC_001") {
			return false, nil
		}
		return false, err
	}
	return payload.Exists, nil
}

// Append records a completed transfer on the backend.
func (c *Client) Append(ctx context.Context, t *domain.Transfer) error {
	return c.do(ctx, http.MethodPost, "/api/v1/transfers/records", t, nil)
}

// ListByAccount returns the transfers involving ref, newest first.
func (c *Client) ListByAccount(ctx context.Context, ref domain.AccountRef) ([]domain.Transfer, error) {
	var transfers []domain.Transfer
	path := "/api/v1/transfers/account/" + url.PathEscape(ref.String())
	if err := c.do(ctx, http.MethodGet, path, nil, &transfers); err != nil {
		return nil, err
	}
	return transfers, nil
}

// GetByID returns a single transfer record, or (nil, nil) when the
// backend has no such record.
func (c *Client) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	var transfer domain.Transfer
	err := c.do(ctx, http.MethodGet, "/api/v1/transfers/"+id.String(), nil, &transfer)
	if err != nil {
		if apperror.HasCode(err, "TRF_006") {
			return nil, nil
		}
		return nil, err
	}
	return &transfer, nil
}

// Ping implements ports.HealthChecker. The health endpoint is not
// enveloped, so only the status code is inspected.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.ErrNetwork(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return apperror.ErrNetwork(fmt.Errorf("health endpoint returned status %d", resp.StatusCode))
	}
	return nil
}

// Name implements ports.HealthChecker.
func (c *Client) Name() string { return "remote_balance_backend" }

// do performs one request and decodes the success envelope into out.
// Transport failures surface as NET_001; error envelopes are rebuilt
// into the AppError they were serialized from.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("marshal request body: %w", err))
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("path", path).Msg("balance backend unreachable")
		return apperror.ErrNetwork(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperror.ErrNetwork(err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apperror.ErrNetwork(fmt.Errorf("unexpected response body: %w", err))
	}

	if resp.StatusCode >= 400 || !env.Success {
		if env.ErrorCode != "" {
			return apperror.New(env.ErrorCode, env.Message, resp.StatusCode)
		}
		return apperror.ErrNetwork(fmt.Errorf("backend returned status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperror.ErrNetwork(fmt.Errorf("decode response data: %w", err))
	}
	return nil
}
