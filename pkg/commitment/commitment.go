// Package commitment implements the roles/owners commitment that approvals
// are verified against. The commitment is an opaque byte string from the
// state machine's point of view; Verifier lets the concrete scheme be
// swapped without touching escrow logic.
package commitment

import (
	"encoding/binary"

	"github.com/zeebo/blake3"

	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/model/mvault"
)

// Leaf is the committed fact about one member: who they are, what role they
// hold, and what approval weight that role carries.
type Leaf struct {
	MemberID idwrap.IDWrap
	Role     mvault.Role
	Weight   int64
}

const leafDomain = "gwo.commitment.leaf.v1"
const nodeDomain = "gwo.commitment.node.v1"

// Hash produces the leaf digest. Leaves and interior nodes use distinct
// domain prefixes so a leaf can never be proven as a node.
func (l Leaf) Hash() []byte {
	h := blake3.New()
	h.Write([]byte(leafDomain))
	h.Write(l.MemberID.Bytes())

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(l.Role))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(l.Weight))
	h.Write(buf[:])
	return h.Sum(nil)
}

func hashNode(left, right []byte) []byte {
	h := blake3.New()
	h.Write([]byte(nodeDomain))
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// Verifier checks an opaque proof against an opaque commitment.
type Verifier interface {
	Verify(commitment []byte, leaf Leaf, proof []byte) error
}
