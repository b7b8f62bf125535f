package server

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/archethic-foundation/crypto-accumulator/accumulator"
	"github.com/archethic-foundation/crypto-accumulator/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *accumulator.SecretKey {
	t.Helper()
	sk, err := accumulator.GenerateKey()
	require.NoError(t, err)
	return sk
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(4)
	h, err := r.Create(newKey(t))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	got, err := r.Get(h.ID)
	require.NoError(t, err)
	assert.Same(t, h, got)

	require.NoError(t, r.Drop(h.ID))
	assert.Equal(t, 0, r.Len())

	_, err = r.Get(h.ID)
	assert.ErrorIs(t, err, ErrUnknownHandle)
	assert.ErrorIs(t, r.Drop(h.ID), ErrUnknownHandle)

	// A caller that still holds the handle cannot use it.
	err = h.Do(func(*accumulator.Accumulator) error { return nil })
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestRegistryLimit(t *testing.T) {
	r := NewRegistry(2)
	for i := 0; i < 2; i++ {
		_, err := r.Create(newKey(t))
		require.NoError(t, err)
	}
	_, err := r.Create(newKey(t))
	assert.ErrorIs(t, err, ErrRegistryFull)

	r.DropAll()
	assert.Equal(t, 0, r.Len())
	_, err = r.Create(newKey(t))
	assert.NoError(t, err)
}

func TestRegistryWithoutCapacity(t *testing.T) {
	r := NewRegistry(0)
	_, err := r.Create(newKey(t))
	assert.ErrorIs(t, err, ErrRegistryFull)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryAppliesOptions(t *testing.T) {
	r := NewRegistry(4, accumulator.WithDuplicatePolicy(accumulator.IgnoreDuplicates))
	h, err := r.Create(newKey(t))
	require.NoError(t, err)

	d := sha256.Sum256([]byte("d1"))
	for i := 0; i < 2; i++ {
		err := h.Do(func(acc *accumulator.Accumulator) error { return acc.AddElement(d[:]) })
		require.NoError(t, err)
	}
}

func TestHandleSerializesAccess(t *testing.T) {
	r := NewRegistry(4)
	h, err := r.Create(newKey(t))
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := sha256.Sum256([]byte(fmt.Sprintf("element-%d", i)))
			errs <- h.Do(func(acc *accumulator.Accumulator) error {
				if err := acc.AddElement(d[:]); err != nil {
					return err
				}
				_, _, err := acc.MembershipProof(d[:])
				return err
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var size int
	var export *accumulator.PublicExport
	require.NoError(t, h.Do(func(acc *accumulator.Accumulator) error {
		size = acc.Len()
		export = acc.Export()
		return nil
	}))
	assert.Equal(t, workers, size)

	// Every element proves against the final export.
	for i := 0; i < workers; i++ {
		d := sha256.Sum256([]byte(fmt.Sprintf("element-%d", i)))
		require.NoError(t, h.Do(func(acc *accumulator.Accumulator) error {
			proof, nonce, err := acc.MembershipProof(d[:])
			if err != nil {
				return err
			}
			ok, err := accumulator.VerifyMembership(export, proof, nonce)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("proof rejected")
			}
			return nil
		}))
	}
}

func TestEngineErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("x: %w", accumulator.ErrMalformedInput), http.StatusBadRequest, "malformed_input"},
		{fmt.Errorf("x: %w", accumulator.ErrInvalidEncoding), http.StatusBadRequest, "invalid_encoding"},
		{accumulator.ErrDuplicateElement, http.StatusConflict, "duplicate_element"},
		{accumulator.ErrEntropyUnavailable, http.StatusServiceUnavailable, "entropy_unavailable"},
		{ErrUnknownHandle, http.StatusNotFound, "unknown_handle"},
		{ErrRegistryFull, http.StatusServiceUnavailable, "registry_full"},
		{store.ErrNotFound, http.StatusNotFound, "export_not_found"},
		{errors.New("boom"), http.StatusInternalServerError, "unexpected_error"},
	}
	for _, tt := range tests {
		e := engineError(tt.err)
		assert.Equal(t, tt.status, e.StatusCode, tt.code)
		assert.Equal(t, tt.code, e.Code)
	}
}
