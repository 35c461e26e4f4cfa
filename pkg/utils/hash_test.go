package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_StableAcrossMapOrder(t *testing.T) {
	a, err := Fingerprint("gpt", map[string]any{"b": 1, "a": 2})
	require.NoError(t, err)
	b, err := Fingerprint("gpt", map[string]any{"a": 2, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Fingerprint("other", map[string]any{"a": 2, "b": 1})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
