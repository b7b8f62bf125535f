package accumulator

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/zeebo/blake3"
)

// NonceSize is the length of a proof nonce.
const NonceSize = 16

const nonceRandomSize = 8

// Nonce is the single-use freshness value bound into every proof tag.
type Nonce [NonceSize]byte

// ParseNonce decodes a nonce from its raw bytes.
func ParseNonce(b []byte) (Nonce, error) {
	var n Nonce
	if len(b) != NonceSize {
		return n, fmt.Errorf("%w: nonce must be %d bytes, got %d", ErrInvalidEncoding, NonceSize, len(b))
	}
	copy(n[:], b)
	return n, nil
}

func (n Nonce) String() string {
	return hex.EncodeToString(n[:])
}

// MembershipProof is a membership witness packaged with the claimed element
// scalar, the accumulator value it was computed against, the epoch (element
// count) at issuance and a tag binding all of them to a nonce.
type MembershipProof struct {
	Witness     bls12381.G1Affine
	Element     fr.Element
	Tag         fr.Element
	Accumulator bls12381.G1Affine
	Epoch       uint64
}

// NonMembershipProof is the non-membership counterpart of MembershipProof.
type NonMembershipProof struct {
	Witness     bls12381.G1Affine
	Element     fr.Element
	Remainder   fr.Element
	Tag         fr.Element
	Accumulator bls12381.G1Affine
	Epoch       uint64
}

const (
	membershipTagContext    = "crypto-accumulator 2024 bls12-381 membership tag v1"
	nonMembershipTagContext = "crypto-accumulator 2024 bls12-381 non-membership tag v1"
)

// MembershipProof builds a proof for the element behind digest and returns
// it with the fresh nonce the verifier must be given. Non-members get a
// well-formed proof that fails verification.
func (acc *Accumulator) MembershipProof(digest []byte) (*MembershipProof, Nonce, error) {
	w, err := acc.MembershipWitness(digest)
	if err != nil {
		return nil, Nonce{}, err
	}
	nonce, err := acc.freshNonce(rand.Reader)
	if err != nil {
		return nil, Nonce{}, err
	}
	proof := &MembershipProof{
		Witness:     w.W,
		Element:     w.Element,
		Accumulator: acc.value,
		Epoch:       uint64(len(acc.elements)),
	}
	proof.Tag = membershipTag(&proof.Witness, &proof.Element, &proof.Accumulator, proof.Epoch, nonce)
	return proof, nonce, nil
}

// NonMembershipProof builds a non-membership proof for the element behind
// digest. Members get a well-formed proof that fails verification.
func (acc *Accumulator) NonMembershipProof(digest []byte) (*NonMembershipProof, Nonce, error) {
	w, err := acc.NonMembershipWitness(digest)
	if err != nil {
		return nil, Nonce{}, err
	}
	nonce, err := acc.freshNonce(rand.Reader)
	if err != nil {
		return nil, Nonce{}, err
	}
	proof := &NonMembershipProof{
		Witness:     w.D,
		Element:     w.Element,
		Remainder:   w.V,
		Accumulator: acc.value,
		Epoch:       uint64(len(acc.elements)),
	}
	proof.Tag = nonMembershipTag(&proof.Witness, &proof.Element, &proof.Remainder, &proof.Accumulator, proof.Epoch, nonce)
	return proof, nonce, nil
}

// freshNonce returns 8 random bytes followed by the big-endian count of
// nonces this instance has issued, so no nonce repeats within the instance.
func (acc *Accumulator) freshNonce(r io.Reader) (Nonce, error) {
	if acc.issued == math.MaxUint64 {
		return Nonce{}, fmt.Errorf("%w: nonce counter exhausted", ErrEntropyUnavailable)
	}
	var n Nonce
	if _, err := io.ReadFull(r, n[:nonceRandomSize]); err != nil {
		return Nonce{}, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	binary.BigEndian.PutUint64(n[nonceRandomSize:], acc.issued)
	acc.issued++
	return n, nil
}

func membershipTag(w *bls12381.G1Affine, x *fr.Element, a *bls12381.G1Affine, epoch uint64, nonce Nonce) fr.Element {
	h := blake3.NewDeriveKey(membershipTagContext)
	writePoint(h, w)
	writeScalar(h, x)
	writePoint(h, a)
	writeEpoch(h, epoch)
	h.Write(nonce[:])
	return challenge(DomainMembershipChallenge, h)
}

func nonMembershipTag(d *bls12381.G1Affine, y, v *fr.Element, a *bls12381.G1Affine, epoch uint64, nonce Nonce) fr.Element {
	h := blake3.NewDeriveKey(nonMembershipTagContext)
	writePoint(h, d)
	writeScalar(h, y)
	writeScalar(h, v)
	writePoint(h, a)
	writeEpoch(h, epoch)
	h.Write(nonce[:])
	return challenge(DomainNonMembershipChallenge, h)
}

func challenge(domain Domain, h *blake3.Hasher) fr.Element {
	tag, err := MapToScalar(domain, h.Sum(nil))
	if err != nil {
		// A BLAKE3 sum is always DigestSize bytes.
		panic(err)
	}
	return tag
}

func writePoint(w io.Writer, p *bls12381.G1Affine) {
	b := p.Bytes()
	w.Write(b[:])
}

func writeScalar(w io.Writer, x *fr.Element) {
	b := x.Bytes()
	w.Write(b[:])
}

func writeEpoch(w io.Writer, epoch uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], epoch)
	w.Write(b[:])
}
