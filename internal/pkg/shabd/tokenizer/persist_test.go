package tokenizer

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.json")

	trained := newTestBPE(t)
	require.NoError(t, trained.Train("नमस्ते जग नमस्ते hello 12", 30))
	require.NoError(t, trained.Save(path))

	loaded := newTestBPE(t)
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, trained.vocab, loaded.vocab)
	assert.Equal(t, trained.inverse, loaded.inverse)
	assert.Equal(t, trained.merges, loaded.merges)
	assert.Equal(t, trained.ranks, loaded.ranks)
	assert.Equal(t, trained.merged, loaded.merged)

	// Encoding through the loaded instance matches the trained one.
	want, err := trained.Encode("नमस्ते hello")
	require.NoError(t, err)
	got, err := loaded.Encode("नमस्ते hello")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// load → save → load must be a fixed point, byte for byte.
func TestSaveLoadIdempotent(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")

	tok := newTestBPE(t)
	require.NoError(t, tok.Train("aaab", 5))
	require.NoError(t, tok.Save(first))

	reloaded := newTestBPE(t)
	require.NoError(t, reloaded.Load(first))
	require.NoError(t, reloaded.Save(second))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSaveWireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.json")

	tok := newTestBPE(t)
	require.NoError(t, tok.Train("aaab", 5))
	require.NoError(t, tok.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var f struct {
		Vocab  map[string]string `json:"vocab"`
		Merges [][]int           `json:"bpe_merges"`
	}
	require.NoError(t, json.Unmarshal(data, &f))

	assert.Equal(t, map[string]string{"0": "a", "1": "b", "2": "aa", "3": "aaa", "4": "aaab"}, f.Vocab)
	assert.Equal(t, [][]int{{0, 0}, {2, 0}, {3, 1}}, f.Merges)
}

func TestLoadMissingFile(t *testing.T) {
	tok := newTestBPE(t)
	err := tok.Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errLike string
	}{
		{"not json", "{", "failed to parse"},
		{"missing vocab", `{"bpe_merges":[]}`, `missing the "vocab" field`},
		{"missing merges", `{"vocab":{"0":"a"}}`, `missing the "bpe_merges" field`},
		{"non-integer id", `{"vocab":{"x":"a"},"bpe_merges":[]}`, "not an integer"},
		{"duplicate token", `{"vocab":{"0":"a","1":"a"},"bpe_merges":[]}`, "appears under ids"},
		{"merge wrong arity", `{"vocab":{"0":"a"},"bpe_merges":[[0,0,0]]}`, "has 3 elements"},
		{"merge unknown id", `{"vocab":{"0":"a","1":"b"},"bpe_merges":[[0,5]]}`, "unknown token id 5"},
		{"merge without merged token", `{"vocab":{"0":"a","1":"b"},"bpe_merges":[[0,1]]}`, "no vocabulary entry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "vocab.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			tok := newTestBPE(t)
			err := tok.Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errLike)
		})
	}
}

// A failed Load must not disturb existing state.
func TestLoadFailureKeepsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"vocab":{"x":"a"},"bpe_merges":[]}`), 0o644))

	tok := newTestBPE(t)
	require.NoError(t, tok.Train("aaab", 5))
	require.Error(t, tok.Load(path))

	assert.Equal(t, 5, tok.VocabSize())
	ids, err := tok.Encode("aaab")
	require.NoError(t, err)
	assert.Equal(t, []int{4}, ids)
}

// The rank index is rebuilt from the persisted merge order, never
// stored, so loaded ranks follow list position exactly.
func TestLoadRebuildsRanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.json")
	content := `{
  "vocab": {"0": "a", "1": "b", "2": "aa", "3": "aab"},
  "bpe_merges": [[0, 0], [2, 1]]
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tok := newTestBPE(t)
	require.NoError(t, tok.Load(path))

	assert.Equal(t, map[pair]int{{0, 0}: 0, {2, 1}: 1}, tok.ranks)
	assert.Equal(t, map[pair]int{{0, 0}: 2, {2, 1}: 3}, tok.merged)
}
