package api

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeTransformer_Success(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "200", map[string]string{"id": "bm_123"})
	require.NoError(t, err)

	envelope, ok := result.(APIEnvelope)
	require.True(t, ok)

	assert.Equal(t, EnvelopeVersion, envelope.Version)
	assert.True(t, envelope.Success)
	assert.NotNil(t, envelope.Data)
	assert.Nil(t, envelope.Error)
}

func TestEnvelopeTransformer_SuccessNilData(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "204", nil)
	require.NoError(t, err)

	envelope, ok := result.(APIEnvelope)
	require.True(t, ok)

	assert.True(t, envelope.Success)
	assert.Nil(t, envelope.Data)

	// omitempty keeps nil data off the wire.
	raw, err := json.Marshal(envelope)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"data"`)
}

func TestEnvelopeTransformer_APIError(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "409", &APIError{
		Code:    "CONFLICT",
		Message: "bookmark version is outdated and read-only",
		Details: map[string]string{"id": "bm_123"},
	})
	require.NoError(t, err)

	envelope, ok := result.(APIEnvelope)
	require.True(t, ok)

	assert.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "CONFLICT", envelope.Error.Code)
	assert.Equal(t, "bookmark version is outdated and read-only", envelope.Error.Message)
	assert.NotNil(t, envelope.Error.Details)
	assert.Nil(t, envelope.Data)
}

func TestEnvelopeTransformer_PlainError(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "500", errors.New("boom"))
	require.NoError(t, err)

	envelope, ok := result.(APIEnvelope)
	require.True(t, ok)

	assert.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "boom", envelope.Error.Message)
	assert.Empty(t, envelope.Error.Code)
}

func TestEnvelopeTransformer_AlreadyWrapped(t *testing.T) {
	wrapped := APIEnvelope{Version: EnvelopeVersion, Success: true, Data: "x"}

	result, err := EnvelopeTransformer(nil, "200", wrapped)
	require.NoError(t, err)
	assert.Equal(t, wrapped, result)
}

// The version field must be named exactly "v"; clients check it before
// parsing the rest of the payload.
func TestEnvelope_VersionFieldName(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "200", "data")
	require.NoError(t, err)

	raw, err := json.Marshal(result)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))

	assert.Contains(t, out, "v")
	assert.NotContains(t, out, "version")
}
