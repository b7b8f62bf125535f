package accumulator

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	sk1, err := GenerateKey()
	require.NoError(t, err)
	sk2, err := GenerateKey()
	require.NoError(t, err)

	assert.False(t, sk1.s.IsZero())
	assert.False(t, sk1.Equal(sk2))
}

func TestGenerateKeyEntropyFailure(t *testing.T) {
	_, err := generateKey(iotest.ErrReader(errors.New("no entropy")))
	require.ErrorIs(t, err, ErrEntropyUnavailable)

	acc := newTestAccumulator(t)
	_, err = acc.freshNonce(iotest.ErrReader(errors.New("no entropy")))
	require.ErrorIs(t, err, ErrEntropyUnavailable)
}

func TestGenerateKeySkipsZero(t *testing.T) {
	stream := make([]byte, 2*SecretKeySize)
	stream[len(stream)-1] = 7

	sk, err := generateKey(bytes.NewReader(stream))
	require.NoError(t, err)
	b := sk.Bytes()
	assert.Equal(t, byte(7), b[SecretKeySize-1])
}

func TestSecretKeyFromBytes(t *testing.T) {
	sk, err := GenerateKey()
	require.NoError(t, err)
	b := sk.Bytes()

	decoded, err := SecretKeyFromBytes(b[:])
	require.NoError(t, err)
	assert.True(t, sk.Equal(decoded))

	nonCanonical := bytes.Repeat([]byte{0xff}, SecretKeySize)
	for name, in := range map[string][]byte{
		"short":         b[:SecretKeySize-1],
		"zero":          make([]byte, SecretKeySize),
		"non-canonical": nonCanonical,
	} {
		_, err := SecretKeyFromBytes(in)
		assert.ErrorIs(t, err, ErrMalformedInput, name)
	}
}

func TestSecretKeyIsRedacted(t *testing.T) {
	sk, err := GenerateKey()
	require.NoError(t, err)
	b := sk.Bytes()

	for _, format := range []string{"%v", "%s", "%+v", "%#v"} {
		out := fmt.Sprintf(format, sk)
		assert.Equal(t, "SecretKey(redacted)", out, format)
	}
	assert.NotContains(t, fmt.Sprint(sk), fmt.Sprintf("%x", b[:]))
}

func TestSecretKeyZero(t *testing.T) {
	sk, err := GenerateKey()
	require.NoError(t, err)
	sk.Zero()
	assert.True(t, sk.s.IsZero())

	_, err = New(sk)
	require.ErrorIs(t, err, ErrMalformedInput)
}

func TestPublicKey(t *testing.T) {
	b := make([]byte, SecretKeySize)
	b[SecretKeySize-1] = 1
	sk, err := SecretKeyFromBytes(b)
	require.NoError(t, err)

	// s = 1 gives G2^s = G2.
	pk := sk.PublicKey()
	assert.True(t, pk.S.Equal(&pk.G2))
	assert.True(t, pk.G2.Equal(&Init().G2))
}

func TestMapToScalar(t *testing.T) {
	d := digest("d1")

	x1, err := MapToScalar(DomainElement, d)
	require.NoError(t, err)
	x2, err := MapToScalar(DomainElement, d)
	require.NoError(t, err)
	assert.True(t, x1.Equal(&x2))

	c, err := MapToScalar(DomainMembershipChallenge, d)
	require.NoError(t, err)
	assert.False(t, x1.Equal(&c))

	y, err := MapToScalar(DomainElement, digest("d2"))
	require.NoError(t, err)
	assert.False(t, x1.Equal(&y))

	_, err = MapToScalar(DomainElement, d[:16])
	require.ErrorIs(t, err, ErrMalformedInput)
}

func TestParametersAreStable(t *testing.T) {
	p1 := Init()
	p2, err := Parameters()
	require.NoError(t, err)
	assert.Same(t, p1, p2)
}
