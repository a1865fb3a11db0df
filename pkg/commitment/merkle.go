package commitment

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"

	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
)

var (
	ErrMemberNotCommitted = errors.New("commitment: member not in committed set")
	ErrMalformedProof     = errors.New("commitment: malformed proof")
	ErrProofMismatch      = errors.New("commitment: proof does not match commitment")
)

const hashSize = 32

// Tree is a Merkle tree over the member set. Leaves are sorted by member id
// so the same roster always produces the same root. An odd node at the end
// of a level is promoted unchanged.
type Tree struct {
	leaves []Leaf
	levels [][][]byte
}

func Build(leaves []Leaf) *Tree {
	sorted := make([]Leaf, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MemberID.Compare(sorted[j].MemberID) < 0
	})

	level := make([][]byte, 0, len(sorted))
	for _, l := range sorted {
		level = append(level, l.Hash())
	}

	levels := [][][]byte{level}
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashNode(level[i], level[i+1]))
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{leaves: sorted, levels: levels}
}

// Root is the commitment value stored on the policy.
func (t *Tree) Root() []byte {
	if len(t.leaves) == 0 {
		return nil
	}
	top := t.levels[len(t.levels)-1]
	out := make([]byte, hashSize)
	copy(out, top[0])
	return out
}

// Prove serializes an inclusion proof for the given member. The encoding is
// the leaf index (8 bytes big-endian) followed by the sibling hashes bottom
// up, with a zero-length marker byte where a level had no sibling.
func (t *Tree) Prove(memberID idwrap.IDWrap) ([]byte, error) {
	idx := -1
	for i, l := range t.leaves {
		if l.MemberID.Compare(memberID) == 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrMemberNotCommitted
	}

	var buf bytes.Buffer
	var idxBytes [8]byte
	binary.BigEndian.PutUint64(idxBytes[:], uint64(idx))
	buf.Write(idxBytes[:])

	pos := idx
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := pos ^ 1
		if sibling < len(level) {
			buf.WriteByte(1)
			buf.Write(level[sibling])
		} else {
			buf.WriteByte(0)
		}
		pos /= 2
	}
	return buf.Bytes(), nil
}

// MerkleVerifier verifies proofs produced by Tree.Prove.
type MerkleVerifier struct{}

func NewMerkleVerifier() MerkleVerifier {
	return MerkleVerifier{}
}

func (MerkleVerifier) Verify(commitment []byte, leaf Leaf, proof []byte) error {
	if len(proof) < 8 {
		return ErrMalformedProof
	}
	pos := int(binary.BigEndian.Uint64(proof[:8]))
	rest := proof[8:]

	hash := leaf.Hash()
	for len(rest) > 0 {
		marker := rest[0]
		rest = rest[1:]
		switch marker {
		case 0:
			// odd node promoted unchanged
		case 1:
			if len(rest) < hashSize {
				return ErrMalformedProof
			}
			sibling := rest[:hashSize]
			rest = rest[hashSize:]
			if pos%2 == 0 {
				hash = hashNode(hash, sibling)
			} else {
				hash = hashNode(sibling, hash)
			}
		default:
			return ErrMalformedProof
		}
		pos /= 2
	}

	if !bytes.Equal(hash, commitment) {
		return ErrProofMismatch
	}
	return nil
}
