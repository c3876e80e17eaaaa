package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/holiman/uint256"

	"github.com/croplabs/farmd/internal/domain"
)

const defaultCallTimeout = 10 * time.Second

// HTTPClient implements TokenClient and ItemClient against a registry's
// HTTP API. Amounts travel as decimal strings; they do not fit in JSON
// numbers.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a registry client for baseURL. A zero timeout uses
// the default.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type creditRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	Account        string `json:"account"`
	Amount         string `json:"amount"`
	Memo           string `json:"memo,omitempty"`
}

type transferItemRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	Account        string `json:"account"`
	ItemID         string `json:"item_id"`
	Memo           string `json:"memo,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Credit implements TokenClient.
func (c *HTTPClient) Credit(ctx context.Context, key, account string, amount *uint256.Int) error {
	return c.post(ctx, "/credit", creditRequest{IdempotencyKey: key, Account: account, Amount: amount.Dec(), Memo: "farming"})
}

// DebitTransfer implements TokenClient.
func (c *HTTPClient) DebitTransfer(ctx context.Context, key, account string, amount *uint256.Int) error {
	return c.post(ctx, "/debit-transfer", creditRequest{IdempotencyKey: key, Account: account, Amount: amount.Dec(), Memo: "unstaking"})
}

// Transfer implements ItemClient.
func (c *HTTPClient) Transfer(ctx context.Context, key, account, itemID string) error {
	return c.post(ctx, "/transfer", transferItemRequest{IdempotencyKey: key, Account: account, ItemID: itemID, Memo: "unstaking"})
}

func (c *HTTPClient) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode registry request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build registry request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Timeouts and transport errors are indistinguishable from a lost
		// call: the remote effect may or may not have happened, and the
		// ledger treats both as failure.
		return fmt.Errorf("%w: %s %s: %v", domain.ErrRemoteCallFailed, path, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var remote errorResponse
	msg := resp.Status
	if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096)); readErr == nil {
		if json.Unmarshal(data, &remote) == nil && remote.Error != "" {
			msg = remote.Error
		}
	}
	return fmt.Errorf("%w: %s %s: %s", domain.ErrRemoteCallFailed, path, c.baseURL, msg)
}
