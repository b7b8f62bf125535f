package accumulator

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// DigestSize is the length of the digests accepted by the engine. Hashing
// application data down to a digest is the caller's job.
const DigestSize = 32

// Domain separates the different uses of the scalar mapper.
type Domain string

const (
	DomainElement                Domain = "ELEMENT"
	DomainMembershipChallenge    Domain = "MEMBERSHIP-CHALLENGE"
	DomainNonMembershipChallenge Domain = "NON-MEMBERSHIP-CHALLENGE"
)

const dstPrefix = "CRYPTO-ACCUMULATOR-V01-BLS12381FR_XMD:SHA-256_"

func (d Domain) dst() []byte {
	return []byte(dstPrefix + string(d) + "_")
}

// MapToScalar maps a 32-byte digest to a scalar of the BLS12-381 group order.
//
// The digest is expanded with expand_message_xmd (RFC 9380) under a DST that
// embeds the domain, and the 48-byte output is reduced modulo r, so the
// result is statistically close to uniform.
func MapToScalar(domain Domain, digest []byte) (fr.Element, error) {
	if len(digest) != DigestSize {
		return fr.Element{}, fmt.Errorf("%w: digest must be %d bytes, got %d", ErrMalformedInput, DigestSize, len(digest))
	}
	elems, err := fr.Hash(digest, domain.dst(), 1)
	if err != nil {
		return fr.Element{}, fmt.Errorf("hash to field: %w", err)
	}
	return elems[0], nil
}
