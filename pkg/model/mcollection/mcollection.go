//nolint:revive // exported
package mcollection

import (
	"time"

	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
)

type Collection struct {
	ID        idwrap.IDWrap
	VaultID   idwrap.IDWrap
	Name      string
	Deadline  *time.Time
	CreatedBy idwrap.IDWrap
	CreatedAt time.Time
}

type ParticipantStatus uint8

const (
	ParticipantStatusUnknown ParticipantStatus = 0
	ParticipantStatusPending ParticipantStatus = 1
	ParticipantStatusPartial ParticipantStatus = 2
	ParticipantStatusPaid    ParticipantStatus = 3
)

func (s ParticipantStatus) String() string {
	switch s {
	case ParticipantStatusPending:
		return "pending"
	case ParticipantStatusPartial:
		return "partial"
	case ParticipantStatusPaid:
		return "paid"
	default:
		return "unknown"
	}
}

type Participant struct {
	ID              idwrap.IDWrap
	CollectionID    idwrap.IDWrap
	DisplayName     string
	AllocatedAmount int64
	WalletAddress   *string
	Status          ParticipantStatus
	PaymentTxRef    *string
}

// Transfer is one confirmed payment toward a participant's allocation.
// An allocation satisfied by more than one transfer passes through partial.
type Transfer struct {
	ID            idwrap.IDWrap
	ParticipantID idwrap.IDWrap
	Ref           string
	Amount        int64
	RecordedAt    time.Time
}
