package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCachedEnrichments_Tagged(t *testing.T) {
	raw := json.RawMessage(`[{"_classification":"feuerwehr","reason":"FW Bremerhaven"}]`)

	list, err := DecodeCachedEnrichments(raw)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ClassificationFeuerwehr, list[0].Classification)
	assert.True(t, list[0].IsRemoval())
}

func TestDecodeCachedEnrichments_LegacyCrime(t *testing.T) {
	// Pre-discriminator cache entry: extraction fields, no tag.
	raw := json.RawMessage(`[{"clean_title":"Messerangriff in Frankfurt","crime":{"pks_code":"2200"}}]`)

	list, err := DecodeCachedEnrichments(raw)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ClassificationCrime, list[0].Classification)
	assert.False(t, list[0].IsRemoval())
}

func TestDecodeCachedEnrichments_LegacyJunkSentinel(t *testing.T) {
	raw := json.RawMessage(`[{"reason":"Verkehrshinweis"}]`)

	list, err := DecodeCachedEnrichments(raw)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ClassificationJunk, list[0].Classification)
}

func TestEnrichment_UpdateWithoutFactsIsRemoval(t *testing.T) {
	e := Enrichment{Classification: ClassificationUpdate, Reason: "kein neuer Sachstand"}
	assert.True(t, e.IsRemoval())

	e.Location = &Location{City: "Aalen"}
	assert.False(t, e.IsRemoval())
}
