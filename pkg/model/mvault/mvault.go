//nolint:revive // exported
package mvault

import (
	"time"

	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
)

type Vault struct {
	ID             idwrap.IDWrap
	Name           string
	ActivePolicyID *idwrap.IDWrap
	CreatedAt      time.Time
}

func (v Vault) GetCreatedTime() time.Time {
	return v.ID.Time()
}
