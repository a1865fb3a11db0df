//nolint:revive // exported
package mpolicy

import (
	"time"

	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
)

type Status uint8

const (
	StatusUnknown  Status = 0
	StatusDraft    Status = 1
	StatusActive   Status = 2
	StatusDisabled Status = 3
	StatusArchived Status = 4
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusActive:
		return "active"
	case StatusDisabled:
		return "disabled"
	case StatusArchived:
		return "archived"
	default:
		return "unknown"
	}
}

// CanTransitionTo encodes the policy state machine:
// draft -> active <-> disabled, active|disabled -> archived, draft -> archived.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusActive || next == StatusArchived
	case StatusActive:
		return next == StatusDisabled || next == StatusArchived
	case StatusDisabled:
		return next == StatusActive || next == StatusArchived
	default:
		return false
	}
}

// Params are the gating knobs a policy revision carries.
type Params struct {
	Threshold       int64 `json:"threshold"`
	TimelockSeconds int64 `json:"timelock_seconds"`
	MaxAmount       int64 `json:"max_amount"`
	CooldownSeconds int64 `json:"cooldown_seconds"`
	// ExpireReady controls whether a deadline can still void a Ready escrow.
	ExpireReady bool `json:"expire_ready"`
}

func (p Params) Validate() bool {
	return p.Threshold > 0 && p.MaxAmount > 0 && p.TimelockSeconds >= 0 && p.CooldownSeconds >= 0
}

type Policy struct {
	ID               idwrap.IDWrap
	VaultID          idwrap.IDWrap
	Threshold        int64
	TimelockSeconds  int64
	MaxAmount        int64
	CooldownSeconds  int64
	RolesCommitment  []byte
	OwnersCommitment []byte
	Status           Status
	ExpireReady      bool
	RevisionOf       *idwrap.IDWrap
	LastEditedAt     time.Time
	CreatedAt        time.Time
}

func (p Policy) Params() Params {
	return Params{
		Threshold:       p.Threshold,
		TimelockSeconds: p.TimelockSeconds,
		MaxAmount:       p.MaxAmount,
		CooldownSeconds: p.CooldownSeconds,
		ExpireReady:     p.ExpireReady,
	}
}

// ScheduledChange is a pending revision attached to a policy. At most one
// exists per policy; applying it goes through the normal update path.
type ScheduledChange struct {
	PolicyID    idwrap.IDWrap
	Params      Params
	EffectiveAt time.Time
	CreatedBy   idwrap.IDWrap
	CreatedAt   time.Time
}
