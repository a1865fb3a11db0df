//nolint:revive // exported
package maudit

import (
	"time"

	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
)

// Kind names the audited action. Emergency policy edits get their own kind
// so they stay distinguishable from normal edits forever.
type Kind string

const (
	KindEscrowSubmitted   Kind = "escrow.submitted"
	KindEscrowApproved    Kind = "escrow.approved"
	KindEscrowReady       Kind = "escrow.ready"
	KindEscrowReleased    Kind = "escrow.released"
	KindEscrowRejected    Kind = "escrow.rejected"
	KindEscrowCancelled   Kind = "escrow.cancelled"
	KindEscrowExpired     Kind = "escrow.expired"
	KindEscrowDispatchErr Kind = "escrow.dispatch_failed"
	KindApprovalDecision  Kind = "approval.decision"
	KindPolicyCreated     Kind = "policy.created"
	KindPolicyActivated   Kind = "policy.activated"
	KindPolicyUpdated     Kind = "policy.updated"
	KindPolicyScheduled   Kind = "policy.scheduled"
	KindPolicyEmergency   Kind = "policy.emergency_updated"
	KindPolicyDisabled    Kind = "policy.disabled"
	KindPolicyEnabled     Kind = "policy.enabled"
	KindPolicyArchived    Kind = "policy.archived"
	KindPaymentRecorded   Kind = "collection.payment_recorded"
	KindWalletLinked      Kind = "collection.wallet_linked"
)

type Event struct {
	ID        idwrap.IDWrap
	UUID      string
	Kind      Kind
	VaultID   idwrap.IDWrap
	EntityID  idwrap.IDWrap
	ActorID   *idwrap.IDWrap
	Reason    string
	Detail    string
	CreatedAt time.Time
}
