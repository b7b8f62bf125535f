package accumulator

import (
	"crypto/subtle"
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// VerifyMembership checks proof against the public export and the nonce that
// was handed out with it. A false result with a nil error means the check
// ran and rejected the proof; an error means it could not run.
//
// A proof is bound to the exact accumulator value it was issued against: it
// fails against any export taken after a later AddElement.
//
// The claimed element is the scalar carried in the proof. Callers that hold
// the element digest should use VerifyMembershipOf.
func VerifyMembership(export *PublicExport, proof *MembershipProof, nonce Nonce) (bool, error) {
	if export == nil || proof == nil {
		return false, fmt.Errorf("%w: missing export or proof", ErrMalformedInput)
	}
	tag := membershipTag(&proof.Witness, &proof.Element, &proof.Accumulator, proof.Epoch, nonce)
	if !scalarsEqual(&tag, &proof.Tag) {
		return false, nil
	}
	if !proof.Accumulator.Equal(&export.Value) {
		// Issued against another accumulator state.
		return false, nil
	}
	return pairingMembership(export, &proof.Witness, &proof.Element)
}

// VerifyMembershipOf is VerifyMembership for a caller that re-hashed the
// claimed value into digest. A proof for any other element is rejected.
func VerifyMembershipOf(export *PublicExport, proof *MembershipProof, nonce Nonce, digest []byte) (bool, error) {
	if proof == nil {
		return false, fmt.Errorf("%w: missing proof", ErrMalformedInput)
	}
	x, err := MapToScalar(DomainElement, digest)
	if err != nil {
		return false, err
	}
	if !x.Equal(&proof.Element) {
		return false, nil
	}
	return VerifyMembership(export, proof, nonce)
}

// VerifyNonMembership checks a non-membership proof. Proofs with v = 0, which
// the engine produces for members, are rejected. Like membership proofs, it
// only verifies against the export state it was issued against.
func VerifyNonMembership(export *PublicExport, proof *NonMembershipProof, nonce Nonce) (bool, error) {
	if export == nil || proof == nil {
		return false, fmt.Errorf("%w: missing export or proof", ErrMalformedInput)
	}
	tag := nonMembershipTag(&proof.Witness, &proof.Element, &proof.Remainder, &proof.Accumulator, proof.Epoch, nonce)
	if !scalarsEqual(&tag, &proof.Tag) {
		return false, nil
	}
	if !proof.Accumulator.Equal(&export.Value) {
		return false, nil
	}
	return pairingNonMembership(export, &proof.Witness, &proof.Element, &proof.Remainder)
}

// VerifyNonMembershipOf is VerifyNonMembership bound to the caller's digest.
func VerifyNonMembershipOf(export *PublicExport, proof *NonMembershipProof, nonce Nonce, digest []byte) (bool, error) {
	if proof == nil {
		return false, fmt.Errorf("%w: missing proof", ErrMalformedInput)
	}
	y, err := MapToScalar(DomainElement, digest)
	if err != nil {
		return false, err
	}
	if !y.Equal(&proof.Element) {
		return false, nil
	}
	return VerifyNonMembership(export, proof, nonce)
}

// pairingMembership evaluates e(W, G2^x * G2^s) * e(-A, G2) == 1.
func pairingMembership(export *PublicExport, w *bls12381.G1Affine, x *fr.Element) (bool, error) {
	q := shiftedKey(export, x)

	var negA bls12381.G1Affine
	negA.Neg(&export.Value)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{*w, negA},
		[]bls12381.G2Affine{q, export.G2},
	)
	if err != nil {
		return false, fmt.Errorf("pairing check: %w", err)
	}
	return ok, nil
}

// pairingNonMembership evaluates e(D, G2^y * G2^s) * e(G1^v, G2) * e(-A, G2) == 1
// with v != 0.
func pairingNonMembership(export *PublicExport, d *bls12381.G1Affine, y, v *fr.Element) (bool, error) {
	if v.IsZero() {
		return false, nil
	}
	q := shiftedKey(export, y)

	var gv, negA bls12381.G1Affine
	gv.ScalarMultiplication(&export.G1, v.BigInt(new(big.Int)))
	negA.Neg(&export.Value)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{*d, gv, negA},
		[]bls12381.G2Affine{q, export.G2, export.G2},
	)
	if err != nil {
		return false, fmt.Errorf("pairing check: %w", err)
	}
	return ok, nil
}

// shiftedKey returns G2^x * G2^s.
func shiftedKey(export *PublicExport, x *fr.Element) bls12381.G2Affine {
	var q bls12381.G2Affine
	q.ScalarMultiplication(&export.G2, x.BigInt(new(big.Int)))
	q.Add(&q, &export.PublicKey)
	return q
}

func scalarsEqual(a, b *fr.Element) bool {
	ab, bb := a.Bytes(), b.Bytes()
	return subtle.ConstantTimeCompare(ab[:], bb[:]) == 1
}
