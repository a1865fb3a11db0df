// Package payout defines the dispatcher boundary: the only collaborator
// allowed to actually move funds. The escrow service calls Execute at most
// once per release attempt and treats the result as authoritative.
package payout

import (
	"context"
	"fmt"

	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
)

// Request identifies one release attempt. IdempotencyKey is stable for a
// given (escrow, attempt) pair so a dispatcher can dedupe retried attempts.
type Request struct {
	EscrowID       idwrap.IDWrap
	IdempotencyKey string
	Recipient      string
	Amount         int64
}

// Result reports what the dispatcher did. Ref is the external transfer
// reference recorded on the escrow when Success is true; Reason explains a
// failure.
type Result struct {
	Success bool
	Ref     string
	Reason  string
}

type Dispatcher interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// AttemptKey builds the idempotency key for a release attempt.
func AttemptKey(escrowID idwrap.IDWrap, attempt int64) string {
	return fmt.Sprintf("%s:%d", escrowID.String(), attempt)
}
