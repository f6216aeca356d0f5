package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicURLRoundTrip(t *testing.T) {
	base := "https://files.example.com/yard/"
	u := PublicURL(base, "slips/MH 12 AB/slip.pdf")
	assert.Equal(t, "https://files.example.com/yard/slips/MH%2012%20AB/slip.pdf", u)

	key, err := KeyFromURL(base, u)
	require.NoError(t, err)
	assert.Equal(t, "slips/MH 12 AB/slip.pdf", key)

	_, err = KeyFromURL(base, "https://elsewhere.example.com/yard/slip.pdf")
	assert.Error(t, err)
	_, err = KeyFromURL(base, "https://files.example.com/other/slip.pdf")
	assert.Error(t, err)
}
