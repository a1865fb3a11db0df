//nolint:revive // exported
package mapproval

import (
	"time"

	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
)

type Decision uint8

const (
	DecisionUnknown Decision = 0
	DecisionApprove Decision = 1
	DecisionReject  Decision = 2
)

func (d Decision) String() string {
	switch d {
	case DecisionApprove:
		return "approve"
	case DecisionReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Approval is one member's decision on one escrow. The (EscrowID, MemberID)
// pair is unique; a resubmission replaces the prior decision.
type Approval struct {
	EscrowID    idwrap.IDWrap
	MemberID    idwrap.IDWrap
	Decision    Decision
	Weight      int64
	Proof       []byte
	SubmittedAt time.Time
}

// Totals is the weighted tally over one escrow's approvals.
type Totals struct {
	Approve int64
	Reject  int64
}

// Sum tallies decisions with exact integer arithmetic.
func Sum(approvals []Approval) Totals {
	var t Totals
	for _, a := range approvals {
		switch a.Decision {
		case DecisionApprove:
			t.Approve += a.Weight
		case DecisionReject:
			t.Reject += a.Weight
		}
	}
	return t
}
