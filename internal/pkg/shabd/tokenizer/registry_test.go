package tokenizer

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryHasBPE(t *testing.T) {
	assert.True(t, IsRegistered("bpe"))
	assert.Contains(t, ListBackends(), "bpe")
}

func TestNewBPEBackend(t *testing.T) {
	tok, err := New("bpe", Config{Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NotNil(t, tok)

	require.NoError(t, tok.Train("aaab", 5))
	assert.Equal(t, 5, tok.VocabSize())
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New("sentencepiece", Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}
