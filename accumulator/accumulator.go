package accumulator

import (
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// DuplicatePolicy decides what AddElement does with an element that is
// already accumulated.
type DuplicatePolicy int

const (
	// RejectDuplicates makes AddElement fail with ErrDuplicateElement.
	RejectDuplicates DuplicatePolicy = iota
	// IgnoreDuplicates makes AddElement a no-op for known elements.
	IgnoreDuplicates
)

func (p DuplicatePolicy) String() string {
	switch p {
	case RejectDuplicates:
		return "reject"
	case IgnoreDuplicates:
		return "ignore"
	default:
		return fmt.Sprintf("DuplicatePolicy(%d)", int(p))
	}
}

// ParseDuplicatePolicy accepts "reject" or "ignore". The empty string means
// reject.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "reject":
		return RejectDuplicates, nil
	case "ignore":
		return IgnoreDuplicates, nil
	default:
		return 0, fmt.Errorf("unknown duplicate policy %q", s)
	}
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithDuplicatePolicy sets the duplicate policy. The default is
// RejectDuplicates.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(acc *Accumulator) {
		acc.duplicates = p
	}
}

// Accumulator is the owner side of the scheme: it holds the secret key, the
// running value A = G1^{prod(x_i + s)} and the scalars of every element
// added so far.
//
// An Accumulator is not safe for concurrent use. Callers must serialize
// AddElement, proof generation and Export on the same instance.
type Accumulator struct {
	params     *Params
	sk         *SecretKey
	pk         PublicKey
	value      bls12381.G1Affine
	elements   []fr.Element
	index      map[[fr.Bytes]byte]struct{}
	issued     uint64
	duplicates DuplicatePolicy
}

// New binds an empty accumulator to sk. The key is copied, so the caller may
// zero its own copy.
func New(sk *SecretKey, opts ...Option) (*Accumulator, error) {
	p, err := Parameters()
	if err != nil {
		return nil, err
	}
	if sk == nil || sk.s.IsZero() {
		return nil, fmt.Errorf("%w: missing secret key", ErrMalformedInput)
	}
	acc := &Accumulator{
		params: p,
		sk:     sk.clone(),
		value:  p.G1,
		index:  make(map[[fr.Bytes]byte]struct{}),
	}
	acc.pk = acc.sk.PublicKey()
	for _, opt := range opts {
		opt(acc)
	}
	return acc, nil
}

// AddElement folds the element behind digest into the accumulator:
// A := A^{x+s} with x the element scalar.
func (acc *Accumulator) AddElement(digest []byte) error {
	if acc.sk == nil {
		return fmt.Errorf("%w: accumulator is closed", ErrMalformedInput)
	}
	x, err := MapToScalar(DomainElement, digest)
	if err != nil {
		return err
	}
	if acc.contains(&x) {
		if acc.duplicates == IgnoreDuplicates {
			return nil
		}
		return ErrDuplicateElement
	}

	var e fr.Element
	e.Add(&x, &acc.sk.s)
	defer e.SetZero()
	if e.IsZero() {
		return fmt.Errorf("%w: element cannot be accumulated", ErrMalformedInput)
	}
	exp := e.BigInt(new(big.Int))
	defer wipe(exp)

	acc.value.ScalarMultiplication(&acc.value, exp)
	acc.elements = append(acc.elements, x)
	acc.index[x.Bytes()] = struct{}{}
	return nil
}

// Contains reports whether the element behind digest was added.
func (acc *Accumulator) Contains(digest []byte) (bool, error) {
	x, err := MapToScalar(DomainElement, digest)
	if err != nil {
		return false, err
	}
	return acc.contains(&x), nil
}

func (acc *Accumulator) contains(x *fr.Element) bool {
	_, ok := acc.index[x.Bytes()]
	return ok
}

// Len returns the number of accumulated elements.
func (acc *Accumulator) Len() int {
	return len(acc.elements)
}

// Value returns the current accumulator value A.
func (acc *Accumulator) Value() bls12381.G1Affine {
	return acc.value
}

// PublicKey returns (G2, G2^s) for the bound key.
func (acc *Accumulator) PublicKey() PublicKey {
	return acc.pk
}

// Export snapshots the public state. Later insertions do not affect the
// returned value.
func (acc *Accumulator) Export() *PublicExport {
	return &PublicExport{
		G1:        acc.params.G1,
		G2:        acc.params.G2,
		PublicKey: acc.pk.S,
		Value:     acc.value,
	}
}

// Close zeroes the secret key and forgets the element scalars.
func (acc *Accumulator) Close() {
	if acc.sk != nil {
		acc.sk.Zero()
		acc.sk = nil
	}
	clear(acc.elements)
	acc.elements = nil
	clear(acc.index)
}
