//nolint:revive // exported
package mvault

import "github.com/bypptech/group-wallet-organizer/pkg/idwrap"

type Role uint16

const (
	RoleUnknown   Role = 0
	RoleOwner     Role = 1
	RoleGuardian  Role = 2
	RoleRequester Role = 3
	RoleViewer    Role = 4
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleGuardian:
		return "guardian"
	case RoleRequester:
		return "requester"
	case RoleViewer:
		return "viewer"
	default:
		return "unknown"
	}
}

// ParseRole maps the wire name back to a role. Unknown names parse to
// RoleUnknown, which no operation accepts.
func ParseRole(s string) Role {
	switch s {
	case "owner":
		return RoleOwner
	case "guardian":
		return RoleGuardian
	case "requester":
		return RoleRequester
	case "viewer":
		return RoleViewer
	default:
		return RoleUnknown
	}
}

// CanApprove reports whether the role carries approval power at all.
// Viewers always have weight 0 and never approve.
func (r Role) CanApprove() bool {
	return r == RoleOwner || r == RoleGuardian || r == RoleRequester
}

type Member struct {
	ID          idwrap.IDWrap
	VaultID     idwrap.IDWrap
	DisplayName string
	Role        Role
	Weight      int64
}
