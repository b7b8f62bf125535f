package accumulator

import (
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// MembershipWitness is W = G1^{prod_{x_j != x}(x_j + s)} for a claimed
// element x. It satisfies e(W, G2^x * G2^s) = e(A, G2) iff x was added.
type MembershipWitness struct {
	Element fr.Element
	W       bls12381.G1Affine
}

// NonMembershipWitness is the pair (D, v) with A = G1^v * D^{y+s} and
// v = prod(x_j - y). v is zero iff y was added.
type NonMembershipWitness struct {
	Element fr.Element
	D       bls12381.G1Affine
	V       fr.Element
}

// MembershipWitness computes the witness for the element behind digest from
// the current state. A witness is returned whether or not the element is a
// member; only verification decides.
func (acc *Accumulator) MembershipWitness(digest []byte) (*MembershipWitness, error) {
	if acc.sk == nil {
		return nil, fmt.Errorf("%w: accumulator is closed", ErrMalformedInput)
	}
	x, err := MapToScalar(DomainElement, digest)
	if err != nil {
		return nil, err
	}
	return acc.membershipWitness(&x), nil
}

func (acc *Accumulator) membershipWitness(x *fr.Element) *MembershipWitness {
	w := &MembershipWitness{Element: *x, W: acc.value}
	if !acc.contains(x) {
		// Nothing to exclude: the product over all stored scalars is A itself.
		return w
	}

	// A^{1/(x+s)} removes exactly the factor of x from the exponent.
	var e fr.Element
	e.Add(x, &acc.sk.s)
	e.Inverse(&e)
	defer e.SetZero()
	exp := e.BigInt(new(big.Int))
	defer wipe(exp)

	w.W.ScalarMultiplication(&acc.value, exp)
	return w
}

// NonMembershipWitness computes (D, v) for the element behind digest.
func (acc *Accumulator) NonMembershipWitness(digest []byte) (*NonMembershipWitness, error) {
	if acc.sk == nil {
		return nil, fmt.Errorf("%w: accumulator is closed", ErrMalformedInput)
	}
	y, err := MapToScalar(DomainElement, digest)
	if err != nil {
		return nil, err
	}
	return acc.nonMembershipWitness(&y)
}

func (acc *Accumulator) nonMembershipWitness(y *fr.Element) (*NonMembershipWitness, error) {
	// f(X) = prod(x_j + X); f(s) - f(-y) is divisible by (s + y).
	var v, t fr.Element
	v.SetOne()
	for i := range acc.elements {
		t.Sub(&acc.elements[i], y)
		v.Mul(&v, &t)
	}

	var e fr.Element
	e.Add(y, &acc.sk.s)
	defer e.SetZero()
	if e.IsZero() {
		return nil, fmt.Errorf("%w: element cannot be witnessed", ErrMalformedInput)
	}
	e.Inverse(&e)

	var gv, base bls12381.G1Affine
	gv.ScalarMultiplication(&acc.params.G1, v.BigInt(new(big.Int)))
	base.Sub(&acc.value, &gv)

	exp := e.BigInt(new(big.Int))
	defer wipe(exp)

	w := &NonMembershipWitness{Element: *y, V: v}
	w.D.ScalarMultiplication(&base, exp)
	return w, nil
}

// VerifyMembershipWitness checks a bare witness against an export.
func VerifyMembershipWitness(export *PublicExport, w *MembershipWitness) (bool, error) {
	if export == nil || w == nil {
		return false, fmt.Errorf("%w: missing export or witness", ErrMalformedInput)
	}
	return pairingMembership(export, &w.W, &w.Element)
}

// VerifyNonMembershipWitness checks a bare non-membership witness against an
// export.
func VerifyNonMembershipWitness(export *PublicExport, w *NonMembershipWitness) (bool, error) {
	if export == nil || w == nil {
		return false, fmt.Errorf("%w: missing export or witness", ErrMalformedInput)
	}
	return pairingNonMembership(export, &w.D, &w.Element, &w.V)
}
