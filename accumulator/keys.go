package accumulator

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// SecretKeySize is the length of an encoded secret key.
const SecretKeySize = fr.Bytes

// SecretKey is the trapdoor scalar s. Its String method never prints the
// scalar, so a key that ends up in a log line or an error stays hidden.
type SecretKey struct {
	s fr.Element
}

// PublicKey is the G2 half of a key pair: the generator and G2^s.
type PublicKey struct {
	G2 bls12381.G2Affine
	S  bls12381.G2Affine
}

// GenerateKey draws a uniformly random non-zero scalar from crypto/rand.
func GenerateKey() (*SecretKey, error) {
	return generateKey(rand.Reader)
}

func generateKey(r io.Reader) (*SecretKey, error) {
	var buf [SecretKeySize]byte
	defer clear(buf[:])

	sk := new(SecretKey)
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
		}
		// r < 2^255: drop the top bit, then reject anything >= r.
		buf[0] &= 0x7f
		if err := sk.s.SetBytesCanonical(buf[:]); err != nil {
			continue
		}
		if sk.s.IsZero() {
			continue
		}
		return sk, nil
	}
}

// SecretKeyFromBytes decodes a 32-byte big-endian scalar. The encoding must
// be canonical and non-zero.
func SecretKeyFromBytes(b []byte) (*SecretKey, error) {
	if len(b) != SecretKeySize {
		return nil, fmt.Errorf("%w: secret key must be %d bytes, got %d", ErrMalformedInput, SecretKeySize, len(b))
	}
	sk := new(SecretKey)
	if err := sk.s.SetBytesCanonical(b); err != nil {
		return nil, fmt.Errorf("%w: secret key is not a canonical scalar", ErrMalformedInput)
	}
	if sk.s.IsZero() {
		return nil, fmt.Errorf("%w: secret key is zero", ErrMalformedInput)
	}
	return sk, nil
}

// Bytes returns the big-endian encoding of the scalar.
func (sk *SecretKey) Bytes() [SecretKeySize]byte {
	return sk.s.Bytes()
}

// PublicKey derives (G2, G2^s).
func (sk *SecretKey) PublicKey() PublicKey {
	_, _, _, g2 := bls12381.Generators()
	exp := sk.s.BigInt(new(big.Int))
	defer wipe(exp)

	var pk PublicKey
	pk.G2 = g2
	pk.S.ScalarMultiplication(&g2, exp)
	return pk
}

// Equal reports whether two keys hold the same scalar.
func (sk *SecretKey) Equal(other *SecretKey) bool {
	return sk.s.Equal(&other.s)
}

// Zero overwrites the scalar. The key is unusable afterwards.
func (sk *SecretKey) Zero() {
	sk.s.SetZero()
}

func (sk *SecretKey) String() string {
	return "SecretKey(redacted)"
}

func (sk *SecretKey) GoString() string {
	return sk.String()
}

func (sk *SecretKey) clone() *SecretKey {
	return &SecretKey{s: sk.s}
}

// wipe clears the limbs backing a big.Int that held secret material.
func wipe(x *big.Int) {
	clear(x.Bits())
	x.SetInt64(0)
}
