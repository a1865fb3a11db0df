//nolint:revive // exported
package mescrow

import (
	"time"

	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
)

type Status uint8

const (
	StatusUnknown   Status = 0
	StatusDraft     Status = 1
	StatusPending   Status = 2
	StatusApproved  Status = 3
	StatusReady     Status = 4
	StatusReleased  Status = 5
	StatusRejected  Status = 6
	StatusCancelled Status = 7
	StatusExpired   Status = 8
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusPending:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusReady:
		return "ready"
	case StatusReleased:
		return "released"
	case StatusRejected:
		return "rejected"
	case StatusCancelled:
		return "cancelled"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal statuses make the escrow record immutable.
func (s Status) Terminal() bool {
	switch s {
	case StatusReleased, StatusRejected, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// Cancellable is true while an explicit cancel is still allowed. Once the
// escrow is Ready (timelock satisfied) cancellation is no longer possible.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusApproved
}

type Escrow struct {
	ID                 idwrap.IDWrap
	VaultID            idwrap.IDWrap
	PolicyID           idwrap.IDWrap
	Amount             int64
	Recipient          string
	Deadline           time.Time
	Status             Status
	ReleaseRequestedAt *time.Time
	ReleaseAttempts    int64
	PayoutRef          *string
	CreatedBy          idwrap.IDWrap
	CreatedAt          time.Time
}

// TimelockSatisfied reports whether the mandatory wait after threshold
// satisfaction has elapsed. False until ReleaseRequestedAt is stamped.
func (e Escrow) TimelockSatisfied(timelock time.Duration, now time.Time) bool {
	if e.ReleaseRequestedAt == nil {
		return false
	}
	return !now.Before(e.ReleaseRequestedAt.Add(timelock))
}

// DeadlinePassed is evaluated lazily on read; there is no background
// scheduler flipping escrows to expired.
func (e Escrow) DeadlinePassed(now time.Time) bool {
	return now.After(e.Deadline)
}
