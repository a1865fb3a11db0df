package commitment

import (
	"encoding/binary"

	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mvault"
)

// MemberProof is the self-describing authorization evidence a client submits
// with an approval: the role and weight the member claims were committed,
// plus the inclusion path for that leaf. Keeping the claim inside the proof
// lets the ledger tell a forged proof (unauthorized) apart from a proof that
// is genuine but no longer matches the registry (stale role).
type MemberProof struct {
	Role   mvault.Role
	Weight int64
	Path   []byte
}

func (p MemberProof) Marshal() []byte {
	out := make([]byte, 16+len(p.Path))
	binary.BigEndian.PutUint64(out[0:8], uint64(p.Role))
	binary.BigEndian.PutUint64(out[8:16], uint64(p.Weight))
	copy(out[16:], p.Path)
	return out
}

func ParseMemberProof(data []byte) (MemberProof, error) {
	if len(data) < 16 {
		return MemberProof{}, ErrMalformedProof
	}
	return MemberProof{
		Role:   mvault.Role(binary.BigEndian.Uint64(data[0:8])),
		Weight: int64(binary.BigEndian.Uint64(data[8:16])),
		Path:   data[16:],
	}, nil
}

// VerifyMember checks a member proof against a commitment.
func VerifyMember(v Verifier, commit []byte, memberID idwrap.IDWrap, p MemberProof) error {
	leaf := Leaf{MemberID: memberID, Role: p.Role, Weight: p.Weight}
	return v.Verify(commit, leaf, p.Path)
}
