package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	require.NoError(t, SetLevel("warn"))
	assert.Equal(t, zerolog.WarnLevel, Logger().GetLevel())

	assert.Error(t, SetLevel("loud"))
	assert.Equal(t, zerolog.WarnLevel, Logger().GetLevel())
}

func TestShortHex(t *testing.T) {
	assert.Equal(t, "00010203...", ShortHex([]byte{0, 1, 2, 3, 4, 5}))
	assert.Equal(t, "ab...", ShortHex([]byte{0xab}))
}
