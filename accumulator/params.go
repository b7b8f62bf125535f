package accumulator

import (
	"sync"
	"sync/atomic"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// Params holds the fixed generators of the two pairing source groups.
type Params struct {
	G1 bls12381.G1Affine
	G2 bls12381.G2Affine
}

var (
	paramsOnce sync.Once
	params     atomic.Pointer[Params]
)

// Init sets up the process-wide public parameters. It is safe to call more
// than once; only the first call has an effect.
func Init() *Params {
	paramsOnce.Do(func() {
		_, _, g1, g2 := bls12381.Generators()
		params.Store(&Params{G1: g1, G2: g2})
	})
	return params.Load()
}

// Parameters returns the parameters set up by Init.
func Parameters() (*Params, error) {
	p := params.Load()
	if p == nil {
		return nil, ErrNotInitialized
	}
	return p, nil
}
