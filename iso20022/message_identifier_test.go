package iso20022

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessageIdentifier_RoundTrip(t *testing.T) {
	ids := []string{
		"pain.001.001.09",
		"pain.001.001.10",
		"camt.053.001.08",
		"head.001.001.02",
	}
	for _, text := range ids {
		id, err := ParseMessageIdentifier(text)
		require.NoError(t, err)
		assert.Equal(t, text, id.String())

		back, variant, err := MessageIdentifierFromNamespace(id.Namespace())
		require.NoError(t, err)
		assert.Equal(t, id, back)
		assert.Equal(t, VariantStandalone, variant)
	}
}

func TestMessageIdentifierFromNamespace_SwiftAndCBPRPlus(t *testing.T) {
	id, variant, err := MessageIdentifierFromNamespace("urn:swift:xsd:pain.001.001.09")
	require.NoError(t, err)
	assert.Equal(t, "pain.001.001.09", id.String())
	assert.Equal(t, VariantSwift, variant)

	id, variant, err = MessageIdentifierFromNamespace("urn:iso:std:iso:20022:tech:xsd:pain.001.001.09$cbpr_plus")
	require.NoError(t, err)
	assert.Equal(t, "pain.001.001.09", id.String())
	assert.Equal(t, VariantCBPRPlus, variant)
}

func TestParseMessageIdentifier_Malformed(t *testing.T) {
	cases := []string{
		"pain.001.001",
		"PAIN.001.001.09",
		"pain.1.001.09",
		"pain.001.abc.09",
		"pain.001.001.",
	}
	for _, text := range cases {
		_, err := ParseMessageIdentifier(text)
		assert.Error(t, err, "expected %q to be rejected", text)
	}

	_, ok := TryParseMessageIdentifier("not-an-id")
	assert.False(t, ok)
}

func TestMessageIdentifier_IsZero(t *testing.T) {
	var zero MessageIdentifier
	assert.True(t, zero.IsZero())

	id, err := ParseMessageIdentifier("pain.001.001.09")
	require.NoError(t, err)
	assert.False(t, id.IsZero())
}
