package payout

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// HTTPDispatcher posts release requests to an external transaction
// submitter. The submitter owns signing and broadcasting; this side only
// hands over the order and records the outcome.
type HTTPDispatcher struct {
	baseURL string
	client  *http.Client
}

func NewHTTPDispatcher(baseURL string) *HTTPDispatcher {
	return &HTTPDispatcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type httpExecuteRequest struct {
	EscrowID       string `json:"escrow_id"`
	IdempotencyKey string `json:"idempotency_key"`
	Recipient      string `json:"recipient"`
	Amount         int64  `json:"amount"`
}

type httpExecuteResponse struct {
	Success bool   `json:"success"`
	Ref     string `json:"ref"`
	Reason  string `json:"reason"`
}

func (d *HTTPDispatcher) Execute(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(httpExecuteRequest{
		EscrowID:       req.EscrowID.String(),
		IdempotencyKey: req.IdempotencyKey,
		Recipient:      req.Recipient,
		Amount:         req.Amount,
	})
	if err != nil {
		return Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Success: false, Reason: fmt.Sprintf("submitter returned %d", resp.StatusCode)}, nil
	}

	var out httpExecuteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, err
	}
	return Result{Success: out.Success, Ref: out.Ref, Reason: out.Reason}, nil
}
