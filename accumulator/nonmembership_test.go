package accumulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonMembershipProof(t *testing.T) {
	acc := newTestAccumulator(t)
	addAll(t, acc, "d1", "d2", "d3")
	export := acc.Export()

	proof, nonce, err := acc.NonMembershipProof(digest("d9"))
	require.NoError(t, err)

	ok, err := VerifyNonMembership(export, proof, nonce)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyNonMembershipOf(export, proof, nonce, digest("d9"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyNonMembershipOf(export, proof, nonce, digest("d8"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNonMembershipRejectsMember(t *testing.T) {
	acc := newTestAccumulator(t)
	addAll(t, acc, "d1", "d2")

	proof, nonce, err := acc.NonMembershipProof(digest("d2"))
	require.NoError(t, err)
	assert.True(t, proof.Remainder.IsZero())

	ok, err := VerifyNonMembership(acc.Export(), proof, nonce)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNonMembershipOnEmptyAccumulator(t *testing.T) {
	acc := newTestAccumulator(t)

	proof, nonce, err := acc.NonMembershipProof(digest("d1"))
	require.NoError(t, err)
	assert.True(t, proof.Witness.IsInfinity())

	ok, err := VerifyNonMembership(acc.Export(), proof, nonce)
	require.NoError(t, err)
	assert.True(t, ok)

	parsed, err := ParseNonMembershipProof(proof.Bytes())
	require.NoError(t, err)
	ok, err = VerifyNonMembership(acc.Export(), parsed, nonce)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNonMembershipWitness(t *testing.T) {
	acc := newTestAccumulator(t)
	addAll(t, acc, "d1", "d2")

	w, err := acc.NonMembershipWitness(digest("d3"))
	require.NoError(t, err)
	ok, err := VerifyNonMembershipWitness(acc.Export(), w)
	require.NoError(t, err)
	assert.True(t, ok)

	// Once d3 is added the old witness no longer matches the value.
	addAll(t, acc, "d3")
	ok, err = VerifyNonMembershipWitness(acc.Export(), w)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNonMembershipRejectsWrongNonce(t *testing.T) {
	acc := newTestAccumulator(t)
	addAll(t, acc, "d1")

	proof, nonce, err := acc.NonMembershipProof(digest("d2"))
	require.NoError(t, err)
	nonce[NonceSize-1] ^= 0x80

	ok, err := VerifyNonMembership(acc.Export(), proof, nonce)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNonMembershipStaleExport(t *testing.T) {
	acc := newTestAccumulator(t)
	addAll(t, acc, "d1")
	e1 := acc.Export()

	proof, nonce, err := acc.NonMembershipProof(digest("d2"))
	require.NoError(t, err)
	addAll(t, acc, "d2")

	ok, err := VerifyNonMembership(e1, proof, nonce)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyNonMembership(acc.Export(), proof, nonce)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNonMembershipMissingArguments(t *testing.T) {
	acc := newTestAccumulator(t)
	_, err := VerifyNonMembership(acc.Export(), nil, Nonce{})
	require.ErrorIs(t, err, ErrMalformedInput)
	_, _, err = acc.NonMembershipProof(make([]byte, 5))
	require.ErrorIs(t, err, ErrMalformedInput)
}
